// Package errors classifies object-store failures. The sentinels are shared by
// the AWS S3 client and the MinIO store, so the fetch and packaging stages can
// tell a missing dataset file from a denied or malformed request whichever
// backend served it.
package errors

import (
	"errors"
	"fmt"
)

// Error is a failed object-store call. Bucket and Key are empty when the
// failure happened before an object was addressed.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("s3.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	case e.Key != "":
		return fmt.Sprintf("s3.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithMessage prefixes the wrapped error with message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError records a failure that is not tied to a bucket, such as loading
// credentials.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// NewBucketError records a failure addressing bucket.
func NewBucketError(op, bucket string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Err: err}
}

// NewObjectError records a failure addressing bucket/key.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

var (
	ErrObjectNotFound    = errors.New("s3: object not found")
	ErrBucketNotFound    = errors.New("s3: bucket not found")
	ErrAccessDenied      = errors.New("s3: access denied")
	ErrInvalidInput      = errors.New("s3: invalid input")
	ErrInvalidBucketName = errors.New("s3: invalid bucket name")
	ErrInvalidObjectKey  = errors.New("s3: invalid object key")

	// ErrShortRead means the body ended before the advertised content length.
	ErrShortRead = errors.New("s3: object body shorter than content length")
)

// IsMissing reports whether err means the object, or the bucket holding it,
// does not exist.
func IsMissing(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrBucketNotFound)
}

func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidInput covers every rejected argument, including malformed bucket
// names and object keys.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidBucketName) ||
		errors.Is(err, ErrInvalidObjectKey)
}
