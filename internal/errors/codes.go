// Package errors provides structured error handling for syncignore.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration and startup errors
//   - 2XX: IO errors (ignore files, attributes)
//   - 3XX: Watch errors (notification source)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration or startup errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and attribute I/O errors.
	CategoryIO Category = "IO"
	// CategoryWatch indicates errors raised by the notification source.
	CategoryWatch Category = "WATCH"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeInvalidRoot    = "ERR_103_INVALID_ROOT"
	ErrCodeInstanceLocked = "ERR_104_INSTANCE_LOCKED"

	// IO errors (200-299)
	ErrCodeIgnoreFileParse = "ERR_201_IGNORE_FILE_PARSE"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeAttributeApply  = "ERR_203_ATTRIBUTE_APPLY"

	// Watch errors (300-399)
	ErrCodeNotificationOverflow = "ERR_301_NOTIFICATION_OVERFLOW"
	ErrCodeWatchFailed          = "ERR_302_WATCH_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeOutOfScopePath = "ERR_402_OUT_OF_SCOPE_PATH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	numStr := code[4:7]

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryWatch
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeInvalidRoot, ErrCodeInstanceLocked:
		return SeverityFatal
	case ErrCodeIgnoreFileParse, ErrCodeNotificationOverflow, ErrCodeAttributeApply:
		// Recovered locally; the watch loop keeps running.
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNotificationOverflow, ErrCodeFilePermission:
		return true
	default:
		return false
	}
}
