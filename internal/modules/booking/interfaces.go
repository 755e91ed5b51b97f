package booking

import (
	"context"

	"homestay/internal/gateway"
)

// Backend is the part of the gateway the service needs.
type Backend interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}
