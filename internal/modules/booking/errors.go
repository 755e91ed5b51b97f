package booking

import "errors"

var (
	ErrValidation       = errors.New("validation error")
	ErrUnrecognizedList = errors.New("unrecognized booking list shape")
)

// MaxStayNights caps a stay booked online. Longer stays overflow the total
// price on the backend.
const MaxStayNights = 365

// ValidationError is a local, pre-flight rejection of booking input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
