package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"homestay/internal/domain"

	"github.com/sirupsen/logrus"
)

// Store is the session of one client. At most one of its two tiers holds
// a token: Save clears both before writing the selected one.
type Store struct {
	clientID string
	durable  Tier
	scoped   Tier
	log      *logrus.Logger
	checked  *Revalidations

	mu     sync.Mutex
	cached *Snapshot
	loaded bool
}

func NewStore(clientID string, durable, scoped Tier, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Store{
		clientID: clientID,
		durable:  durable,
		scoped:   scoped,
		log:      log,
	}
}

func (s *Store) ClientID() string { return s.clientID }

// Track makes the store record remembered sessions in r, so they are
// revalidated once per process instead of once per store.
func (s *Store) Track(r *Revalidations) *Store {
	s.checked = r
	return s
}

// Revalidated reports whether the backend issued or confirmed the current
// remembered token during this process.
func (s *Store) Revalidated() bool {
	return s.checked != nil && s.checked.has(s.clientID)
}

func (s *Store) Save(ctx context.Context, snap Snapshot, remember bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached, s.loaded = nil, false
	if err := s.clearLocked(ctx); err != nil {
		return err
	}

	target := s.scoped
	if remember {
		target = s.durable
	}
	snap.Remembered = remember
	if err := target.Save(ctx, s.clientID, snap); err != nil {
		return err
	}
	s.cached, s.loaded = &snap, true
	// the token was just handed out or confirmed by the backend
	if remember && s.checked != nil {
		s.checked.mark(s.clientID)
	}
	return nil
}

// Load returns the stored snapshot, durable tier first, or nil when the
// client is anonymous.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) (*Snapshot, error) {
	if s.loaded {
		return s.cached, nil
	}

	snap, err := s.durable.Load(ctx, s.clientID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		snap.Remembered = true
	} else {
		snap, err = s.scoped.Load(ctx, s.clientID)
		if err != nil {
			return nil, err
		}
	}

	s.cached, s.loaded = snap, true
	return snap, nil
}

// Clear empties both tiers regardless of which one is populated.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	if s.checked != nil {
		s.checked.forget(s.clientID)
	}
	err := errors.Join(
		s.durable.Clear(ctx, s.clientID),
		s.scoped.Clear(ctx, s.clientID),
	)
	s.cached, s.loaded = nil, true
	if err != nil {
		// a half-cleared store must be reread next time
		s.loaded = false
	}
	return err
}

// Token returns the bearer token, or "" when there is none.
func (s *Store) Token(ctx context.Context) string {
	snap, err := s.Load(ctx)
	if err != nil {
		s.log.WithError(err).WithField("client_id", s.clientID).Error("session load failed")
		return ""
	}
	if snap == nil {
		return ""
	}
	return snap.Token
}

// User returns the cached user, or nil for anonymous clients.
func (s *Store) User(ctx context.Context) *domain.User {
	snap, err := s.Load(ctx)
	if err != nil || snap == nil {
		return nil
	}
	u := snap.User
	return &u
}

// Invalidate tears the session down after the backend rejected its token.
func (s *Store) Invalidate(ctx context.Context) {
	if err := s.Clear(context.WithoutCancel(ctx)); err != nil {
		s.log.WithError(err).WithField("client_id", s.clientID).Error("session invalidate failed")
		return
	}
	s.log.WithField("client_id", s.clientID).Info("session invalidated")
}
