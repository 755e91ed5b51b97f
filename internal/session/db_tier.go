package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"homestay/internal/domain"
	"homestay/internal/pkg/jwt"
	"homestay/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// DBTier is the durable ("remember me") tier backed by the stored_sessions table.
type DBTier struct {
	repo   *repository.SessionRepository
	sealer *Sealer
	ttl    time.Duration
	log    *logrus.Logger
	now    func() time.Time
}

func NewDBTier(repo *repository.SessionRepository, sealer *Sealer, ttl time.Duration, log *logrus.Logger) *DBTier {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &DBTier{
		repo:   repo,
		sealer: sealer,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

func (t *DBTier) Load(ctx context.Context, clientID string) (*Snapshot, error) {
	row, err := t.repo.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load stored session: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	if row.IsExpired(t.now()) {
		t.log.WithField("client_id", clientID).Info("dropping expired stored session")
		if err := t.repo.Delete(ctx, clientID); err != nil {
			return nil, fmt.Errorf("drop stored session: %w", err)
		}
		return nil, nil
	}

	token, err := t.sealer.Open(row.SealedToken)
	if err != nil {
		// sealed with another secret; unusable
		t.log.WithField("client_id", clientID).Warn("dropping stored session that cannot be opened")
		if err := t.repo.Delete(ctx, clientID); err != nil {
			return nil, fmt.Errorf("drop stored session: %w", err)
		}
		return nil, nil
	}

	return &Snapshot{
		Token:      string(token),
		User:       row.User.Data(),
		ExpiresAt:  row.ExpiresAt,
		Remembered: true,
	}, nil
}

func (t *DBTier) Save(ctx context.Context, clientID string, snap Snapshot) error {
	sealed, err := t.sealer.Seal([]byte(snap.Token))
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	expiresAt := t.now().Add(t.ttl)
	if exp, ok := jwt.ExpiresAt(snap.Token); ok {
		expiresAt = exp
	}

	row := &domain.StoredSession{
		ClientID:    clientID,
		SealedToken: sealed,
		User:        datatypes.NewJSONType(snap.User),
		ExpiresAt:   expiresAt.UTC(),
	}
	if err := t.repo.Upsert(ctx, row); err != nil {
		return fmt.Errorf("save stored session: %w", err)
	}
	return nil
}

func (t *DBTier) Clear(ctx context.Context, clientID string) error {
	if err := t.repo.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("clear stored session: %w", err)
	}
	return nil
}
