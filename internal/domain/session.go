package domain

import (
	"time"

	"gorm.io/datatypes"
)

// StoredSession is a row of the durable ("remember me") session tier.
// The bearer token is never stored in clear text, only sealed.
type StoredSession struct {
	ClientID    string                   `gorm:"primaryKey;size:64"`
	SealedToken []byte                   `gorm:"not null"`
	User        datatypes.JSONType[User] `gorm:"column:user_snapshot;type:json"`
	ExpiresAt   time.Time                `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (StoredSession) TableName() string { return "stored_sessions" }

func (s *StoredSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
