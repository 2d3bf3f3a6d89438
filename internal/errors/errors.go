package errors

import (
	"errors"
	"fmt"
)

// SyncError is the structured error type for syncignore.
// It provides rich context for error handling, logging, and user presentation.
type SyncError struct {
	// Code is the unique error code (e.g., "ERR_103_INVALID_ROOT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Watch, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SyncError.
func (e *SyncError) Is(target error) bool {
	if t, ok := target.(*SyncError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SyncError) WithDetail(key, value string) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SyncError) WithSuggestion(suggestion string) *SyncError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SyncError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SyncError {
	return &SyncError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SyncError from an existing error.
// The error's message becomes the SyncError message.
func Wrap(code string, err error) *SyncError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinel values for errors.Is checks. They carry only the code.
var (
	ErrInvalidRoot          = &SyncError{Code: ErrCodeInvalidRoot}
	ErrIgnoreFileParse      = &SyncError{Code: ErrCodeIgnoreFileParse}
	ErrOutOfScopePath       = &SyncError{Code: ErrCodeOutOfScopePath}
	ErrNotificationOverflow = &SyncError{Code: ErrCodeNotificationOverflow}
	ErrInstanceLocked       = &SyncError{Code: ErrCodeInstanceLocked}
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SyncError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InvalidRootError reports a watch root that is missing or not a directory.
func InvalidRootError(root string, cause error) *SyncError {
	return New(ErrCodeInvalidRoot, fmt.Sprintf("watch root is not a usable directory: %s", root), cause).
		WithDetail("root", root).
		WithSuggestion("Pass an existing directory, e.g. 'syncignore watch ~/Dropbox'")
}

// ParseError reports an ignore file that could not be read or compiled.
// Callers recover by treating the file as an empty rule set.
func ParseError(path string, cause error) *SyncError {
	msg := fmt.Sprintf("cannot parse ignore file %s", path)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return New(ErrCodeIgnoreFileParse, msg, cause).WithDetail("path", path)
}

// OutOfScopePath reports a queried path that is not under the watch root.
func OutOfScopePath(path, root string) *SyncError {
	return New(ErrCodeOutOfScopePath, fmt.Sprintf("path %s is outside watch root %s", path, root), nil).
		WithDetail("path", path).
		WithDetail("root", root)
}

// NotificationOverflow reports dropped or coalesced change notifications.
func NotificationOverflow(cause error) *SyncError {
	return New(ErrCodeNotificationOverflow, "file system notifications were dropped", cause).
		WithSuggestion("Raise fs.inotify.max_queued_events or reduce activity in the watched tree")
}

// AttributeError reports a failure to apply the ignored flag to a path.
func AttributeError(path string, cause error) *SyncError {
	return New(ErrCodeAttributeApply, fmt.Sprintf("cannot set ignore attribute on %s", path), cause).
		WithDetail("path", path)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SyncError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SyncError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain contains a SyncError with Retryable set.
func IsRetryable(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SyncError.
// Returns empty string if not a SyncError.
func GetCode(err error) string {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SyncError.
// Returns empty string if not a SyncError.
func GetCategory(err error) Category {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}
