package errors

import (
	"fmt"
	"strings"
)

// Reporter logs a failed run with its classification and renders the
// message shown to the user by the top-level catch-all.
type Reporter struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewReporter(logger Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Report logs err and returns the one-line user-facing message.
func (r *Reporter) Report(operation string, err error) string {
	stdErr := normalizeError(err)

	r.logger.Error("operation failed", map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"error":         err.Error(),
	})

	return fmt.Sprintf("An error occurred during the %s: %s", operation, UserMessage(err))
}

// UserMessage is the human readable part of err without codes.
func UserMessage(err error) string {
	stdErr, ok := AsStandardError(err)
	if !ok {
		return err.Error()
	}
	msg := stdErr.Message
	if stdErr.Details != "" {
		msg += " (" + stdErr.Details + ")"
	}
	// Keep the outer context added with fmt.Errorf("...: %w").
	outer := err.Error()
	if idx := strings.Index(outer, stdErr.Error()); idx > 0 {
		return outer[:idx] + msg
	}
	return msg
}

func normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}
