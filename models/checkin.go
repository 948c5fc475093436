package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Check-in statuses. A scheduled check-in becomes safe when completed,
// missed when the deadline passes unacknowledged; emergency is raised
// explicitly by the user.
const (
	CheckinScheduled = "scheduled"
	CheckinSafe      = "safe"
	CheckinMissed    = "missed"
	CheckinEmergency = "emergency"
)

// Checkin is a safety check-in record. The location geography column is
// managed with raw SQL.
type Checkin struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"-"`
	UserID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"-"`
	Status       string     `gorm:"size:16;not null;index" json:"status"`
	LocationName string     `gorm:"size:255" json:"locationName,omitempty"`
	Notes        string     `gorm:"size:1024" json:"notes,omitempty"`
	ScheduledFor *time.Time `gorm:"index" json:"scheduledFor,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

func (c *Checkin) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
