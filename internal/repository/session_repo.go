package repository

import (
	"context"
	"errors"
	"time"

	"homestay/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository provides DB access for remembered sessions.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Migrate() error {
	return r.db.AutoMigrate(&domain.StoredSession{})
}

// Upsert replaces the row of the same client.
func (r *SessionRepository) Upsert(ctx context.Context, s *domain.StoredSession) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sealed_token", "user_snapshot", "expires_at", "updated_at"}),
	}).Create(s).Error
}

// GetByClientID returns nil, nil when the client has no row.
func (r *SessionRepository) GetByClientID(ctx context.Context, clientID string) (*domain.StoredSession, error) {
	var s domain.StoredSession
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, clientID string) error {
	return r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Delete(&domain.StoredSession{}).Error
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&domain.StoredSession{})
	return res.RowsAffected, res.Error
}
