// Package errors is the error vocabulary of the dataset tools. Every stage
// failure carries a code, so callers can tell a remote key that does not
// exist apart from a metadata token that breaks its naming convention.
package errors

// ErrorCode classifies a failure. Codes are strings so they read well in logs.
type ErrorCode string

// Resolution failures.
const (
	CodeNotFound  ErrorCode = "NOT_FOUND"
	CodeForbidden ErrorCode = "FORBIDDEN"
	CodeNetwork   ErrorCode = "NETWORK_ERROR"
)

// Caller mistakes.
const (
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig is a descriptor or run configuration that cannot work,
	// such as an NSD run without a bucket.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeSchemaFailed is a descriptor rejected by the CUE schema.
	CodeSchemaFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"
)

// Data failures.
const (
	// CodeIntegrity is a file name, metadata token or decoded value that does
	// not match the dataset's conventions.
	CodeIntegrity ErrorCode = "INTEGRITY_ERROR"

	// CodeDecode is an HDF5, MAT or CSV file that could not be read at all.
	CodeDecode ErrorCode = "DECODE_ERROR"
)

// Local failures.
const (
	// CodeStorage covers the working directory and the catalog database.
	CodeStorage  ErrorCode = "STORAGE_ERROR"
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeUnknown  ErrorCode = "UNKNOWN"
)
