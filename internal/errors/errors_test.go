package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("permission denied")

	// When: wrapping with SyncError
	se := New(ErrCodeFilePermission, "cannot read .gitignore", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, se)
	assert.Equal(t, originalErr, errors.Unwrap(se))
	assert.True(t, errors.Is(se, originalErr))
}

func TestSyncError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "bad debounce",
			expected: "[ERR_102_CONFIG_INVALID] bad debounce",
		},
		{
			name:     "parse error",
			code:     ErrCodeIgnoreFileParse,
			message:  "binary content",
			expected: "[ERR_201_IGNORE_FILE_PARSE] binary content",
		},
		{
			name:     "overflow",
			code:     ErrCodeNotificationOverflow,
			message:  "queue overflow",
			expected: "[ERR_301_NOTIFICATION_OVERFLOW] queue overflow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSyncError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := OutOfScopePath("/tmp/a", "/root")
	err2 := OutOfScopePath("/etc/b", "/root")

	// Then: they match by code, and match the sentinel
	assert.True(t, errors.Is(err1, err2))
	assert.True(t, errors.Is(err1, ErrOutOfScopePath))
	assert.False(t, errors.Is(err1, ErrInvalidRoot))
}

func TestSyncError_Is_ThroughFmtWrapping(t *testing.T) {
	// Given: a SyncError wrapped by fmt.Errorf
	err := fmt.Errorf("register: %w", ParseError("/r/.gitignore", errors.New("binary")))

	// Then: errors.Is still finds it by code
	assert.True(t, errors.Is(err, ErrIgnoreFileParse))
	assert.Equal(t, ErrCodeIgnoreFileParse, GetCode(err))
	assert.Equal(t, CategoryIO, GetCategory(err))
}

func TestSyncError_WithDetailsAndSuggestion(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad path", nil).
		WithDetail("path", "x").
		WithDetail("reason", "empty").
		WithSuggestion("pass an absolute path")

	assert.Equal(t, "x", err.Details["path"])
	assert.Equal(t, "empty", err.Details["reason"])
	assert.Equal(t, "pass an absolute path", err.Suggestion)
}

func TestSyncError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeInvalidRoot, CategoryConfig},
		{ErrCodeIgnoreFileParse, CategoryIO},
		{ErrCodeAttributeApply, CategoryIO},
		{ErrCodeNotificationOverflow, CategoryWatch},
		{ErrCodeOutOfScopePath, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"bad", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, categoryFromCode(tt.code))
		})
	}
}

func TestSyncError_SeverityFromCode(t *testing.T) {
	assert.Equal(t, SeverityFatal, New(ErrCodeInvalidRoot, "", nil).Severity)
	assert.Equal(t, SeverityFatal, New(ErrCodeInstanceLocked, "", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeIgnoreFileParse, "", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeNotificationOverflow, "", nil).Severity)
	assert.Equal(t, SeverityError, New(ErrCodeOutOfScopePath, "", nil).Severity)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))

	se := Wrap(ErrCodeInternal, errors.New("boom"))
	require.NotNil(t, se)
	assert.Equal(t, "boom", se.Message)
}

func TestConstructors(t *testing.T) {
	cause := errors.New("not a directory")

	root := InvalidRootError("/nope", cause)
	assert.Equal(t, ErrCodeInvalidRoot, root.Code)
	assert.Equal(t, "/nope", root.Details["root"])
	assert.NotEmpty(t, root.Suggestion)
	assert.True(t, IsFatal(root))

	parse := ParseError("/r/.gitignore", cause)
	assert.Contains(t, parse.Message, "/r/.gitignore")
	assert.Contains(t, parse.Message, "not a directory")
	assert.False(t, IsFatal(parse))

	overflow := NotificationOverflow(cause)
	assert.True(t, IsRetryable(overflow))
	assert.ErrorIs(t, overflow, ErrNotificationOverflow)

	attr := AttributeError("/r/a", cause)
	assert.Equal(t, "/r/a", attr.Details["path"])
}

func TestIsRetryable_And_IsFatal_PlainErrors(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("x")))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(errors.New("x")))
	assert.Equal(t, "", GetCode(errors.New("x")))
}
