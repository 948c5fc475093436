package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken stores a hashed representation of a refresh token for session
// rotation and revocation. Only the SHA-256 hash of the raw token is persisted.
// A row is either active (RevokedAt nil and not expired) or terminal; on
// rotation ReplacedBy records the hash of the successor token.
type RefreshToken struct {
	ID         uint       `gorm:"primaryKey"`
	CreatedAt  time.Time
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	TokenHash  string     `gorm:"size:128;not null;uniqueIndex"`
	ExpiresAt  time.Time  `gorm:"index;not null"`
	RevokedAt  *time.Time `gorm:"index"`
	ReplacedBy *string    `gorm:"size:128"`
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
