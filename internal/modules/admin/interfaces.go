package admin

import (
	"context"

	"homestay/internal/domain"
	"homestay/internal/gateway"
	"homestay/internal/modules/payment"
)

type Backend interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

// Verifier records payment decisions.
type Verifier interface {
	VerifyPayment(ctx context.Context, actor domain.User, current domain.Booking, d payment.Decision) (*domain.Booking, error)
}

// Reviewer is what a Queue needs from the service.
type Reviewer interface {
	List(ctx context.Context, actor domain.User, q Query) ([]domain.Booking, error)
	Detail(ctx context.Context, actor domain.User, id domain.ID) (*domain.Booking, error)
	Decide(ctx context.Context, actor domain.User, current domain.Booking, d payment.Decision) (*domain.Booking, error)
}
