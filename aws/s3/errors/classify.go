package errors

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Classify maps an SDK error onto the package sentinels. The returned error wraps
// both the sentinel and the original error, so errors.Is works for either. Errors
// that do not carry a recognised API error code are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	var sentinel error
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		sentinel = ErrObjectNotFound
	case "NoSuchBucket":
		sentinel = ErrBucketNotFound
	case "AccessDenied", "Forbidden", "AllAccessDisabled":
		sentinel = ErrAccessDenied
	case "InvalidBucketName":
		sentinel = ErrInvalidBucketName
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
