// Package view derives what a booking screen shows from server state.
package view

import "homestay/internal/domain"

type Action string

const (
	ActionSelfReportPayment Action = "self_report_payment"
	ActionApprovePayment    Action = "approve_payment"
	ActionRejectPayment     Action = "reject_payment"
)

type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

type Badge struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

// Projection is everything a booking view renders about status.
type Projection struct {
	Booking Badge    `json:"booking"`
	Payment Badge    `json:"payment"`
	Actions []Action `json:"actions"`
	Notice  string   `json:"notice,omitempty"`
}

var bookingBadges = map[domain.BookingStatus]Badge{
	domain.BookingPending:   {Code: string(domain.BookingPending), Label: "Pending confirmation", Tone: ToneWarning},
	domain.BookingConfirmed: {Code: string(domain.BookingConfirmed), Label: "Confirmed", Tone: ToneSuccess},
	domain.BookingCancelled: {Code: string(domain.BookingCancelled), Label: "Cancelled", Tone: ToneDanger},
}

var paymentBadges = map[domain.PaymentStatus]Badge{
	domain.PaymentUnpaid:              {Code: string(domain.PaymentUnpaid), Label: "Unpaid", Tone: ToneDanger},
	domain.PaymentPendingVerification: {Code: string(domain.PaymentPendingVerification), Label: "Awaiting verification", Tone: ToneWarning},
	domain.PaymentPaid:                {Code: string(domain.PaymentPaid), Label: "Paid", Tone: ToneSuccess},
	domain.PaymentRefunded:            {Code: string(domain.PaymentRefunded), Label: "Refunded", Tone: ToneInfo},
}

func BookingBadge(s domain.BookingStatus) Badge {
	if b, ok := bookingBadges[s]; ok {
		return b
	}
	return Badge{Code: string(s), Label: string(s), Tone: ToneNeutral}
}

func PaymentBadge(s domain.PaymentStatus) Badge {
	if b, ok := paymentBadges[s]; ok {
		return b
	}
	return Badge{Code: string(s), Label: string(s), Tone: ToneNeutral}
}

// Project is the transition gate for the booking owner. A view must not offer
// an action that is missing from the result.
func Project(b domain.Booking) Projection {
	p := Projection{
		Booking: BookingBadge(b.Status),
		Payment: PaymentBadge(b.PaymentStatus),
		Actions: []Action{},
	}

	switch b.Status {
	case domain.BookingCancelled:
		p.Notice = "This booking was cancelled"
	case domain.BookingPending:
		if b.PaymentStatus == domain.PaymentUnpaid {
			p.Notice = "Waiting for the host to confirm your booking"
		}
	case domain.BookingConfirmed:
		switch b.PaymentStatus {
		case domain.PaymentUnpaid:
			p.Actions = append(p.Actions, ActionSelfReportPayment)
			p.Notice = "Transfer the total using the payment reference, then let us know you have paid"
		case domain.PaymentPendingVerification:
			p.Notice = "Your payment is being reviewed by an administrator"
		case domain.PaymentPaid:
			p.Notice = "Payment complete, enjoy your stay"
		case domain.PaymentRefunded:
			p.Notice = "This payment was refunded"
		}
	}
	return p
}

// ProjectForAdmin is the reviewer's view of the same booking.
func ProjectForAdmin(b domain.Booking) Projection {
	p := Project(b)
	p.Actions = []Action{}
	if b.PaymentStatus == domain.PaymentPendingVerification && b.Status != domain.BookingCancelled {
		p.Actions = append(p.Actions, ActionApprovePayment, ActionRejectPayment)
		p.Notice = "The guest reported a transfer; check it against the payment reference"
	}
	return p
}

func Allowed(b domain.Booking, action Action) bool {
	var actions []Action
	switch action {
	case ActionSelfReportPayment:
		actions = Project(b).Actions
	case ActionApprovePayment, ActionRejectPayment:
		actions = ProjectForAdmin(b).Actions
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
