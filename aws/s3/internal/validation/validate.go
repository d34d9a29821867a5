// Package validation checks bucket names and object keys before they are sent to
// the object store. Object keys double as local paths in this module, so the key
// checks also guarantee a key cannot escape the working directory.
package validation

import (
	"path"
	"strings"
	"unicode"

	"github.com/bonnerlab/datasets/aws/s3/errors"
)

// ValidateBucketName validates that a bucket name is DNS-compliant according to AWS S3 rules.
// Returns ErrInvalidBucketName if the bucket name is invalid.
func ValidateBucketName(bucket string) error {
	invalid := func(msg string) error {
		return errors.NewBucketError("validateBucketName", bucket, errors.ErrInvalidBucketName).
			WithMessage(msg)
	}

	if bucket == "" {
		return invalid("bucket name cannot be empty")
	}
	if len(bucket) < 3 || len(bucket) > 63 {
		return invalid("bucket name must be between 3 and 63 characters long")
	}
	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return invalid("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}
	first, last := bucket[0], bucket[len(bucket)-1]
	if first == '-' || first == '.' || last == '-' || last == '.' {
		return invalid("bucket name cannot start or end with a hyphen or dot")
	}
	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") {
		return invalid("bucket name cannot contain two adjacent periods or hyphens")
	}
	return nil
}

// ValidateObjectKey validates that an object key is valid according to AWS S3 rules.
// This includes preventing path traversal and ensuring valid characters.
func ValidateObjectKey(key string) error {
	invalid := func(msg string) error {
		return errors.NewObjectError("validateObjectKey", "", key, errors.ErrInvalidObjectKey).
			WithMessage(msg)
	}

	if key == "" {
		return invalid("object key cannot be empty")
	}
	if hasPathTraversal(key) {
		return invalid("object key cannot contain path traversal sequences")
	}
	// S3 supports up to 1024 bytes
	if len(key) > 1024 {
		return invalid("object key cannot exceed 1024 characters")
	}
	if hasControlCharacters(key) {
		return invalid("object key cannot contain control characters")
	}
	return nil
}

func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

func hasPathTraversal(key string) bool {
	if strings.Contains(key, "..") {
		return true
	}
	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return true
	}
	// Windows-style absolute paths
	if len(key) >= 3 && key[1] == ':' && (key[2] == '\\' || key[2] == '/') {
		return true
	}
	return strings.HasPrefix(path.Clean(key), "..")
}

func hasControlCharacters(key string) bool {
	for _, char := range key {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
