package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Itinerary statuses.
const (
	ItineraryDraft     = "draft"
	ItineraryActive    = "active"
	ItineraryCompleted = "completed"
	ItineraryArchived  = "archived"
)

// Itinerary represents a planned trip belonging to a user.
// destination_location is a PostGIS geography column managed with raw SQL.
type Itinerary struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"-"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Destination string          `gorm:"size:255;not null" json:"destination"`
	StartDate   time.Time       `gorm:"type:date;not null" json:"startDate"`
	EndDate     time.Time       `gorm:"type:date;not null" json:"endDate"`
	Mood        string          `gorm:"size:32;not null;default:balanced" json:"mood"`
	Status      string          `gorm:"size:16;not null;default:draft" json:"status"`
	IsPublic    bool            `gorm:"not null;default:false" json:"isPublic"`
	Items       []ItineraryItem `gorm:"foreignKey:ItineraryID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items,omitempty"`
}

func (i *Itinerary) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ItineraryItem is a single scheduled entry within an itinerary.
type ItineraryItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	ItineraryID   uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"size:2048" json:"description,omitempty"`
	LocationName  string    `gorm:"size:255" json:"locationName,omitempty"`
	ScheduledDate time.Time `gorm:"type:date;not null" json:"scheduledDate"`
	StartTime     string    `gorm:"size:8" json:"startTime,omitempty"`
	EndTime       string    `gorm:"size:8" json:"endTime,omitempty"`
	Category      string    `gorm:"size:32" json:"category,omitempty"`
	IsFlexible    bool      `gorm:"not null;default:false" json:"isFlexible"`
}

func (i *ItineraryItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
