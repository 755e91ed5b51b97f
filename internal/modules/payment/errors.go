package payment

import "errors"

var (
	// ErrConfirmationRequired is returned when a self-report arrives without
	// the explicit second confirmation step.
	ErrConfirmationRequired = errors.New("payment confirmation must be acknowledged")
	ErrInvalidTransition    = errors.New("payment action is not available in the current state")
	ErrForbidden            = errors.New("administrator role required")
	ErrReasonRequired       = errors.New("a reason is required to reject a payment")
	ErrMissingBooking       = errors.New("booking id is required")
)
