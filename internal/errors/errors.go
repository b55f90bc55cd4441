// Package errors provides structured error types for lakeingest.
// All errors include a category, code, message, and retryable flag so that
// the CLI can map them to exit behaviour and the logs stay greppable.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the stage of a run that produced them.
type ErrorCategory string

const (
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategorySource   ErrorCategory = "SOURCE"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryInit     ErrorCategory = "INIT"
	ErrCategoryAppend   ErrorCategory = "APPEND"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeInvalidChunkSize   = "INVALID_CHUNK_SIZE"
	CodeInvalidWorkerCount = "INVALID_WORKER_COUNT"
	CodeInvalidTarget      = "INVALID_TARGET"
	CodeInvalidConfig      = "INVALID_CONFIG"

	// Source codes
	CodeFileNotFound          = "FILE_NOT_FOUND"
	CodeParseFailed           = "PARSE_FAILED"
	CodeSchemaInferenceFailed = "SCHEMA_INFERENCE_FAILED"

	// Catalog codes
	CodeNamespaceExists = "NAMESPACE_EXISTS"
	CodeTableNotFound   = "TABLE_NOT_FOUND"
	CodeTableExists     = "TABLE_EXISTS"
	CodeCommitConflict  = "COMMIT_CONFLICT"
	CodeTransportFailed = "TRANSPORT_FAILED"
	CodeCatalogRejected = "CATALOG_REJECTED"
	CodeConnectFailed   = "CONNECT_FAILED"

	// Init codes
	CodeLoadFailed   = "LOAD_FAILED"
	CodeCreateFailed = "CREATE_FAILED"

	// Append codes
	CodeAppendFailed  = "APPEND_FAILED"
	CodeConvertFailed = "CONVERT_FAILED"
	CodeNotAttempted  = "NOT_ATTEMPTED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// IngestError is the structured error type used throughout the system.
type IngestError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *IngestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *IngestError) Is(target error) bool {
	var t *IngestError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// Wrap creates a new IngestError wrapping cause, which may be nil.
func Wrap(category ErrorCategory, code, message string, cause error) *IngestError {
	return &IngestError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *IngestError) WithDetails(details map[string]interface{}) *IngestError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetDetails extracts the details of the first IngestError in the chain, or nil.
func GetDetails(err error) map[string]interface{} {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Details
	}
	return nil
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an IngestError.
func GetCategory(err error) ErrorCategory {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an IngestError.
func GetCode(err error) string {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// isRetryable marks the failures a caller could reasonably try again.
// The dispatcher itself never retries.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryCatalog && code == CodeCommitConflict:
		return true
	case category == ErrCategoryCatalog && code == CodeTransportFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *IngestError {
	return Wrap(ErrCategoryConfig, code, message, nil)
}

func NewSourceError(code, message string, cause error) *IngestError {
	return Wrap(ErrCategorySource, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *IngestError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewInitError(code, message string, cause error) *IngestError {
	return Wrap(ErrCategoryInit, code, message, cause)
}

func NewAppendError(code, message string, cause error) *IngestError {
	return Wrap(ErrCategoryAppend, code, message, cause)
}

func NewInternalError(message string, cause error) *IngestError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
