package main

import (
	"fmt"
	"log"

	"wayfarer/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openDB(cfg Config) (*gorm.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DB_DSN is not set; a Postgres DSN is required")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.DBAutoMigrate {
		migrateDB(db)
	}
	return db, nil
}

// migrateDB runs AutoMigrate model by model so a failure on one doesn't block
// the others, then applies the PostGIS columns gorm cannot express.
func migrateDB(db *gorm.DB) {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS postgis`).Error; err != nil {
		log.Printf("migration warning (postgis extension): %v", err)
	}

	for _, m := range []struct {
		name  string
		model interface{}
	}{
		{"users", &models.User{}},
		{"refresh_tokens", &models.RefreshToken{}},
		{"itineraries", &models.Itinerary{}},
		{"itinerary_items", &models.ItineraryItem{}},
		{"checkins", &models.Checkin{}},
		{"connections", &models.Connection{}},
		{"messages", &models.Message{}},
		{"trusted_contacts", &models.TrustedContact{}},
		{"safety_zones", &models.SafetyZone{}},
	} {
		if err := db.AutoMigrate(m.model); err != nil {
			log.Printf("migration warning (%s): %v", m.name, err)
		}
	}

	if err := ensureGeographyColumns(db); err != nil {
		log.Printf("migration warning (geography columns): %v", err)
	}
}

// ensureGeographyColumns adds the PostGIS point columns and their GIST
// indexes. Idempotent, so it runs on every migrating startup.
func ensureGeographyColumns(db *gorm.DB) error {
	stmts := []string{
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS current_location geography(Point,4326)`,
		`CREATE INDEX IF NOT EXISTS idx_users_current_location ON users USING GIST(current_location)`,
		`ALTER TABLE itineraries ADD COLUMN IF NOT EXISTS destination_location geography(Point,4326)`,
		`CREATE INDEX IF NOT EXISTS idx_itineraries_destination_location ON itineraries USING GIST(destination_location)`,
		`ALTER TABLE itinerary_items ADD COLUMN IF NOT EXISTS location geography(Point,4326)`,
		`ALTER TABLE checkins ADD COLUMN IF NOT EXISTS location geography(Point,4326)`,
		`ALTER TABLE safety_zones ADD COLUMN IF NOT EXISTS location geography(Point,4326)`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}
