package gateway

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindConflict       Kind = "conflict"
	KindNotFound       Kind = "not_found"
	KindServer         Kind = "server"
	KindTransport      Kind = "transport"
	KindCanceled       Kind = "canceled"
)

// Messages shown to the user when the backend gives none.
const (
	MsgSessionExpired = "Your session has expired, please log in again"
	MsgForbidden      = "You do not have permission to perform this action"
	MsgInvalidData    = "Invalid data"
	MsgGeneric        = "Something went wrong, please try again later"
	MsgUnreachable    = "Cannot reach the server, please check your network connection"
	MsgPriceOverflow  = "The total price for this stay is too large, please choose a shorter stay"
)

// LoginPath is where an authentication failure sends the user.
const LoginPath = "/login"

// Error is a failed backend call.
type Error struct {
	Kind     Kind
	Status   int
	Code     string
	Message  string
	Redirect string
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a gateway error, or "" for anything else.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func codeFor(kind Kind) string {
	switch kind {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindAuthentication:
		return "UNAUTHORIZED"
	case KindAuthorization:
		return "FORBIDDEN"
	case KindConflict:
		return "CONFLICT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindTransport:
		return "NETWORK_ERROR"
	case KindCanceled:
		return "CANCELED"
	default:
		return "SERVER_ERROR"
	}
}
