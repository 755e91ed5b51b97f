package domain

import "time"

// Payment is the transfer-tracking record of a booking. It exists only after
// the first initiation call.
type Payment struct {
	BookingID          ID            `json:"bookingId,omitempty"`
	PaymentReference   string        `json:"paymentReference"`
	PaymentQRCode      string        `json:"paymentQrCode,omitempty"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	TotalPrice         Money         `json:"totalPrice"`
	PaymentConfirmedAt *time.Time    `json:"paymentConfirmedAt,omitempty"`
	Notes              string        `json:"notes,omitempty"`
}

func (p Payment) HasQRCode() bool {
	return p.PaymentQRCode != ""
}
