package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid payment status transition")

type PaymentEvent string

const (
	EventSelfReport PaymentEvent = "self_report"
	EventApprove    PaymentEvent = "approve"
	EventReject     PaymentEvent = "reject"
)

// NextPaymentStatus is the payment state machine. Only an admin approval
// reaches PaymentPaid; a rejection goes back to PaymentUnpaid.
func NextPaymentStatus(current PaymentStatus, event PaymentEvent) (PaymentStatus, error) {
	switch {
	case event == EventSelfReport && current == PaymentUnpaid:
		return PaymentPendingVerification, nil
	case event == EventApprove && current == PaymentPendingVerification:
		return PaymentPaid, nil
	case event == EventReject && current == PaymentPendingVerification:
		return PaymentUnpaid, nil
	}
	return current, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, current)
}
