package payment

import (
	"context"

	"homestay/internal/domain"
	"homestay/internal/gateway"
)

// Backend is the part of the gateway the service needs.
type Backend interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

// BookingReader re-reads a booking so actions are gated on server state.
type BookingReader interface {
	GetBooking(ctx context.Context, id domain.ID) (*domain.Booking, error)
}
