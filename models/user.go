package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Visibility modes for the social radar.
const (
	VisibilityVisible = "visible"
	VisibilityHidden  = "hidden"
)

// User model. PasswordHash is a bcrypt hash; the raw password is never stored.
// current_location is a PostGIS geography column managed with raw SQL (see db.go),
// so it is deliberately absent from the struct.
type User struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"-"`
	Email          string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash   []byte     `gorm:"not null" json:"-"`
	DisplayName    string     `gorm:"size:100;not null" json:"displayName"`
	AvatarURL      string     `gorm:"size:512" json:"avatarUrl,omitempty"`
	VisibilityMode string     `gorm:"size:16;not null;default:visible" json:"visibilityMode"`
	LastSeenAt     *time.Time `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
