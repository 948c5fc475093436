package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Connection statuses.
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionBlocked  = "blocked"
)

// Connection links two users. Declined requests are deleted rather than kept,
// so the status column only ever holds pending, accepted or blocked.
type Connection struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	RequesterID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_connection_pair" json:"requesterId"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_connection_pair;index" json:"recipientId"`
	Status      string    `gorm:"size:16;not null;index" json:"status"`
}

func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Message is a direct message between two connected users.
type Message struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	SenderID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"senderId"`
	RecipientID uuid.UUID  `gorm:"type:uuid;index;not null" json:"recipientId"`
	Content     string     `gorm:"size:4096;not null" json:"content"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
