package booking

import (
	"time"

	"homestay/internal/domain"
	"homestay/internal/view"
)

type CreateBookingRequest struct {
	HomestayID   domain.ID `json:"homestayId"`
	CheckInDate  string    `json:"checkInDate"`
	CheckOutDate string    `json:"checkOutDate"`
	GuestCount   int       `json:"guestCount"`
	Notes        string    `json:"notes,omitempty"`
}

type createPayload struct {
	HomestayID   domain.ID   `json:"homestayId"`
	CheckInDate  domain.Date `json:"checkInDate"`
	CheckOutDate domain.Date `json:"checkOutDate"`
	GuestCount   int         `json:"guestCount"`
	Notes        string      `json:"notes,omitempty"`
}

// Existing answers whether the client already holds an active booking for a
// homestay. Error is set when the lookup failed; HasBooking is then false.
type Existing struct {
	HasBooking bool            `json:"hasBooking"`
	Booking    *domain.Booking `json:"booking,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Redirect is a delayed client-side navigation.
type Redirect struct {
	To      string        `json:"to"`
	After   time.Duration `json:"-"`
	Seconds int           `json:"seconds"`
}

type Verification struct {
	Booking  domain.Booking `json:"booking"`
	Message  string         `json:"message"`
	Redirect Redirect       `json:"redirect"`
}

type QuoteRequest struct {
	PricePerNight domain.Money `json:"pricePerNight"`
	CheckInDate   string       `json:"checkInDate"`
	CheckOutDate  string       `json:"checkOutDate"`
}

type Quote struct {
	Nights      int          `json:"nights"`
	Subtotal    domain.Money `json:"subtotal"`
	ServiceFee  domain.Money `json:"serviceFee"`
	CleaningFee domain.Money `json:"cleaningFee"`
	Total       domain.Money `json:"total"`
	Display     string       `json:"display"`
}

// BookingView is a booking with what its screen may show and offer.
type BookingView struct {
	Booking    domain.Booking  `json:"booking"`
	Projection view.Projection `json:"projection"`
}

func NewBookingView(b domain.Booking) BookingView {
	return BookingView{Booking: b, Projection: view.Project(b)}
}
