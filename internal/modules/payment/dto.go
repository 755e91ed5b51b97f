package payment

import (
	"homestay/internal/domain"
	"homestay/internal/view"
)

// DefaultApprovalNote is sent when an administrator approves without a note.
const DefaultApprovalNote = "Payment confirmed by admin"

// Acknowledgement is the user's self-report. Confirmed must be true: it is
// the second step of the confirm dialog.
type Acknowledgement struct {
	Confirmed bool   `json:"confirmed"`
	Notes     string `json:"notes,omitempty"`
}

// Decision is an administrator's verdict on a reported transfer.
type Decision struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

type confirmPayload struct {
	Notes string `json:"notes,omitempty"`
}

type verifyPayload struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

// Details is the transfer information shown next to a booking.
type Details struct {
	Payment domain.Payment `json:"payment"`
	Amount  string         `json:"amount"`
	Paid    bool           `json:"paid"`
}

func NewDetails(p domain.Payment) Details {
	return Details{
		Payment: p,
		Amount:  view.FormatMoney(p.TotalPrice),
		Paid:    p.PaymentStatus == domain.PaymentPaid,
	}
}
