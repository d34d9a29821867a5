package fetch

import (
	s3errors "github.com/bonnerlab/datasets/aws/s3/errors"
	"github.com/bonnerlab/datasets/errors"
)

// classify maps object-store failures onto module error codes.
func classify(err error) errors.ErrorCode {
	switch {
	case s3errors.IsMissing(err):
		return errors.CodeNotFound
	case s3errors.IsAccessDenied(err):
		return errors.CodeForbidden
	case s3errors.IsInvalidInput(err):
		return errors.CodeInvalidInput
	}
	return errors.CodeNetwork
}
