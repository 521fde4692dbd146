package exam

import (
	"errors"
	"fmt"
)

var (
	ErrCourseNotFound    = errors.New("course not found")
	ErrExamNotConfigured = errors.New("exam not configured for course")
	ErrPurchaseRequired  = errors.New("course purchase required")
	ErrAttemptLimit      = errors.New("attempt limit exceeded")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptNotActive  = errors.New("attempt is not in progress")
	ErrAttemptForbidden  = errors.New("attempt belongs to another user")
)

// ValidationError reports malformed exam content or a malformed
// submission. It is a distinct kind so callers can map it to a 4xx
// rejection rather than a server fault.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
