package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// ParseBookingStatus accepts any casing and the US spelling of cancelled.
// Unknown values are kept upper-cased so they still render, but Valid reports false.
func ParseBookingStatus(raw string) BookingStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "CANCELED" {
		return BookingCancelled
	}
	return BookingStatus(s)
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

// Active bookings block a new booking for the same homestay.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

func (s *BookingStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseBookingStatus(raw)
	return nil
}

// PaymentStatus is the single canonical payment enumeration.
type PaymentStatus string

const (
	PaymentUnpaid              PaymentStatus = "unpaid"
	PaymentPendingVerification PaymentStatus = "pending_verification"
	PaymentPaid                PaymentStatus = "paid"
	PaymentRefunded            PaymentStatus = "refunded"
)

// legacyPaymentStatuses maps the older upper-case names some backend
// responses still carry onto the canonical values.
var legacyPaymentStatuses = map[string]PaymentStatus{
	"PENDING":          PaymentUnpaid,
	"WAITING_APPROVAL": PaymentPendingVerification,
	"PAID":             PaymentPaid,
	"REFUNDED":         PaymentRefunded,
}

func ParsePaymentStatus(raw string) PaymentStatus {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PaymentUnpaid
	}
	if s, ok := legacyPaymentStatuses[raw]; ok {
		return s
	}
	return PaymentStatus(strings.ToLower(raw))
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPendingVerification, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

func (s *PaymentStatus) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = PaymentUnpaid
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParsePaymentStatus(raw)
	return nil
}

type BookingUser struct {
	ID       ID     `json:"id,omitempty"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
}

type HomestayRef struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Booking struct {
	ID                 ID            `json:"id"`
	HomestayID         ID            `json:"homestayId"`
	CheckInDate        Date          `json:"checkInDate"`
	CheckOutDate       Date          `json:"checkOutDate"`
	GuestCount         int           `json:"guestCount"`
	TotalPrice         Money         `json:"totalPrice"`
	Notes              string        `json:"notes,omitempty"`
	Status             BookingStatus `json:"status"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	PaymentReference   string        `json:"paymentReference,omitempty"`
	PaymentQRCode      string        `json:"paymentQrCode,omitempty"`
	PaymentConfirmedAt *time.Time    `json:"paymentConfirmedAt,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt,omitempty"`

	User     *BookingUser `json:"user,omitempty"`
	Homestay *HomestayRef `json:"homestay,omitempty"`
}

// Nights is the stay length in whole nights.
func (b Booking) Nights() int {
	return b.CheckInDate.NightsUntil(b.CheckOutDate)
}
