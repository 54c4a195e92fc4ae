package llm

import "fmt"

// ErrorCategory classifies a failure for the presentation layer.
type ErrorCategory string

const (
	// CategoryConfig marks invalid model settings, paths or references.
	// Always fatal, surfaced before any generation attempt.
	CategoryConfig ErrorCategory = "config"

	// CategoryTemplate marks missing template fields or unresolved tokens.
	// Fatal at template load time.
	CategoryTemplate ErrorCategory = "template"

	// CategorySystem marks runtime faults inside a backend call. Fatal for
	// the in-flight call only.
	CategorySystem ErrorCategory = "system"
)

// Error is a categorized failure. The core never retries and never maps
// categories to user-facing text; the CLI does that at its boundary.
type Error struct {
	Category ErrorCategory
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf creates a categorized error with a formatted message.
func Errorf(category ErrorCategory, format string, args ...any) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a category to an underlying error.
func WrapError(category ErrorCategory, err error, message string) *Error {
	return &Error{Category: category, Message: message, Err: err}
}
