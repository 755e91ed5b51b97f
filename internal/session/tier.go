package session

import (
	"context"
	"time"

	"homestay/internal/domain"
)

// Snapshot is what a tier remembers about one client.
type Snapshot struct {
	Token     string
	User      domain.User
	ExpiresAt time.Time
	// Remembered is set by Store.Load when the snapshot came from the durable tier.
	Remembered bool
}

// Tier is one persistence scope for snapshots, keyed by client ID.
// Load returns nil, nil when the client has nothing stored.
type Tier interface {
	Load(ctx context.Context, clientID string) (*Snapshot, error)
	Save(ctx context.Context, clientID string, snap Snapshot) error
	Clear(ctx context.Context, clientID string) error
}
