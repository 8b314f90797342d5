package loan

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a loan ID does not resolve to a non-deleted
// record.
var ErrNotFound = errors.New("loan not found")

// ValidationError reports a rejected lifecycle input. Validation failures
// are never persisted; the loan is left exactly as it was.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
