package models

import "time"

// Safety levels derived from the zone score.
const (
	SafetyLevelSafe    = "safe"
	SafetyLevelCaution = "caution"
	SafetyLevelAvoid   = "avoid"
)

// SafetyZone caches a computed safety score for a coarse geohash cell.
// Rows expire via ExpiresAt and are refreshed on demand; the location
// geography column is managed with raw SQL.
type SafetyZone struct {
	ID          uint      `gorm:"primaryKey"`
	Geohash     string    `gorm:"size:32;not null;uniqueIndex"`
	SafetyScore float64   `gorm:"not null"`
	SafetyLevel string    `gorm:"size:16;not null"`
	Factors     string    `gorm:"type:jsonb"`
	LastUpdated time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"index;not null"`
}
