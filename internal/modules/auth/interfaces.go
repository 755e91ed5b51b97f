package auth

import (
	"context"

	"homestay/internal/gateway"
	"homestay/internal/session"

	"github.com/gin-gonic/gin"
)

// Backend is the part of the gateway the service needs.
type Backend interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

type SessionStore interface {
	Save(ctx context.Context, snap session.Snapshot, remember bool) error
	Load(ctx context.Context) (*session.Snapshot, error)
	Clear(ctx context.Context) error
	// Revalidated reports whether the remembered token was already issued
	// or confirmed by the backend in this process.
	Revalidated() bool
}

// ClientCookie keeps the browser's client cookie in line with the remember flag.
type ClientCookie interface {
	// Rotate moves the request to a fresh client id and returns a func that
	// moves it back.
	Rotate(c *gin.Context) (undo func())
	Persist(c *gin.Context, remember bool)
}
