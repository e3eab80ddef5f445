// Package errors provides the standardized error taxonomy shared by the crew engine, its tools and the CLI.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMissingCredentials      ErrorCode = "MISSING_CREDENTIALS"
	ErrCodeInvalidInput            ErrorCode = "INVALID_INPUT"
	ErrCodeMissingTemplateVariable ErrorCode = "MISSING_TEMPLATE_VARIABLE"
	ErrCodeInvalidCrewConfig       ErrorCode = "INVALID_CREW_CONFIG"

	ErrCodeLLMTimeout       ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMRequestFailed ErrorCode = "LLM_REQUEST_FAILED"

	ErrCodeWebSearchTimeout ErrorCode = "WEB_SEARCH_TIMEOUT"
	ErrCodeWebSearchFailed  ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodePageFetchFailed  ErrorCode = "PAGE_FETCH_FAILED"

	ErrCodeToolNotFound         ErrorCode = "TOOL_NOT_FOUND"
	ErrCodeToolArgumentsInvalid ErrorCode = "TOOL_ARGUMENTS_INVALID"

	ErrCodeOutputWriteFailed      ErrorCode = "OUTPUT_WRITE_FAILED"
	ErrCodeHistoryFailed          ErrorCode = "HISTORY_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInterrupted ErrorCode = "INTERRUPTED"
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so errors.Is(err, &StandardError{Code: X}) works.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewMissingCredentialsError lists every missing credential name.
func NewMissingCredentialsError(names []string) *StandardError {
	return newError(ErrCodeMissingCredentials, "Missing required environment variables",
		strings.Join(names, ", "), false, nil).WithMetadata("missing", names)
}

func NewInvalidInputError(field string) *StandardError {
	return newError(ErrCodeInvalidInput, fmt.Sprintf("%s cannot be empty", field), "", false, nil).
		WithMetadata("field", field)
}

func NewMissingTemplateVariableError(name, where string) *StandardError {
	return newError(ErrCodeMissingTemplateVariable, "Template variable has no input value",
		fmt.Sprintf("variable: %s, in: %s", name, where), false, nil)
}

func NewInvalidCrewConfigError(details string) *StandardError {
	return newError(ErrCodeInvalidCrewConfig, "Invalid crew configuration", details, false, nil)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model request timed out", errDetails(err), true, err)
}

// NewInterruptedError reports a run the user cancelled, e.g. with Ctrl+C.
func NewInterruptedError(err error) *StandardError {
	return newError(ErrCodeInterrupted, "Interrupted", errDetails(err), false, err)
}

func NewLLMRequestFailedError(err error) *StandardError {
	return newError(ErrCodeLLMRequestFailed, "Language model request failed", errDetails(err), true, err)
}

func NewWebSearchTimeoutError(query string) *StandardError {
	return newError(ErrCodeWebSearchTimeout, "Web search timed out", fmt.Sprintf("query: %s", query), true, nil)
}

func NewWebSearchFailedError(err error) *StandardError {
	return newError(ErrCodeWebSearchFailed, "Web search failed", errDetails(err), true, err)
}

func NewPageFetchFailedError(url string, err error) *StandardError {
	return newError(ErrCodePageFetchFailed, "Could not read job page",
		fmt.Sprintf("url: %s, error: %s", url, errDetails(err)), true, err)
}

func NewToolNotFoundError(name string) *StandardError {
	return newError(ErrCodeToolNotFound, "Tool not available to this agent", fmt.Sprintf("tool: %s", name), false, nil)
}

func NewToolArgumentsInvalidError(tool, details string) *StandardError {
	return newError(ErrCodeToolArgumentsInvalid, "Tool arguments do not match schema",
		fmt.Sprintf("tool: %s, %s", tool, details), false, nil)
}

func NewOutputWriteFailedError(path string, err error) *StandardError {
	return newError(ErrCodeOutputWriteFailed, "Could not write task output file",
		fmt.Sprintf("path: %s, error: %s", path, errDetails(err)), false, err)
}

func NewHistoryFailedError(op string, err error) *StandardError {
	return newError(ErrCodeHistoryFailed, "Run history operation failed",
		fmt.Sprintf("op: %s, error: %s", op, errDetails(err)), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Report notification failed",
		fmt.Sprintf("channel: %s, error: %s", channel, errDetails(err)), true, err)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Classification Helpers
// ==========================

// AsStandardError finds a StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err's chain carries a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &StandardError{Code: code})
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeLLMRequestFailed,
		ErrCodeWebSearchFailed,
		ErrCodePageFetchFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeWebSearchTimeout,
		ErrCodeHistoryFailed:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CREDENTIALS"):
		return "CREDENTIALS"
	case strings.Contains(codeStr, "INPUT") || strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "CREW_CONFIG"):
		return "VALIDATION"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "PAGE"):
		return "SEARCH"
	case strings.Contains(codeStr, "TOOL"):
		return "TOOL"
	case strings.Contains(codeStr, "OUTPUT") || strings.Contains(codeStr, "HISTORY"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
