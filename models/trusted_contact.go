package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrustedContact is someone notified about a user's check-ins and emergencies.
type TrustedContact struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"-"`
	UserID            uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	ContactName       string    `gorm:"size:255;not null" json:"contactName"`
	ContactPhone      string    `gorm:"size:64" json:"contactPhone,omitempty"`
	ContactEmail      string    `gorm:"size:255" json:"contactEmail,omitempty"`
	NotifyOnCheckin   bool      `gorm:"not null;default:true" json:"notifyOnCheckin"`
	NotifyOnEmergency bool      `gorm:"not null;default:true" json:"notifyOnEmergency"`
}

func (t *TrustedContact) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
