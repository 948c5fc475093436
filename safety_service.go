package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/apperr"
	"wayfarer/pkg/cache"

	"github.com/google/uuid"
)

const (
	safetyScoreTTL = 5 * time.Minute
	safetyZoneTTL  = time.Hour
)

// coarseGeohash buckets coordinates into roughly 1km cells. Deliberately
// crude: safety scores are area-level, not point-level.
func coarseGeohash(lat, lng float64) string {
	return fmt.Sprintf("%d_%d", int64(math.Round(lat*100)), int64(math.Round(lng*100)))
}

func safetyLevelFor(score float64) string {
	switch {
	case score >= 0.8:
		return models.SafetyLevelSafe
	case score >= 0.5:
		return models.SafetyLevelCaution
	default:
		return models.SafetyLevelAvoid
	}
}

type checkinInput struct {
	LocationName string
	Notes        string
	Latitude     *float64
	Longitude    *float64
	ScheduledFor *time.Time
}

// createCheckin records an immediate "I'm safe" and notifies the user's
// contacts room.
func (a *App) createCheckin(ctx context.Context, userID uuid.UUID, in checkinInput) (*models.Checkin, error) {
	now := time.Now()
	ck := models.Checkin{
		UserID:       userID,
		Status:       models.CheckinSafe,
		LocationName: in.LocationName,
		Notes:        in.Notes,
		CompletedAt:  &now,
	}
	if err := a.db.Create(&ck).Error; err != nil {
		return nil, fmt.Errorf("create checkin: %w", err)
	}
	if err := a.setCheckinLocation(ck.ID, in.Latitude, in.Longitude); err != nil {
		return nil, err
	}

	a.hub.EmitToContacts(userID.String(), "checkin:safe", map[string]interface{}{
		"userId":       userID.String(),
		"checkinId":    ck.ID.String(),
		"locationName": ck.LocationName,
		"at":           now,
	})
	return &ck, nil
}

// scheduleCheckin creates a future check-in the user promises to complete.
func (a *App) scheduleCheckin(ctx context.Context, userID uuid.UUID, in checkinInput) (*models.Checkin, error) {
	if in.ScheduledFor == nil || in.ScheduledFor.Before(time.Now()) {
		return nil, apperr.Validation("scheduledFor must be in the future")
	}
	ck := models.Checkin{
		UserID:       userID,
		Status:       models.CheckinScheduled,
		LocationName: in.LocationName,
		Notes:        in.Notes,
		ScheduledFor: in.ScheduledFor,
	}
	if err := a.db.Create(&ck).Error; err != nil {
		return nil, fmt.Errorf("schedule checkin: %w", err)
	}
	if err := a.setCheckinLocation(ck.ID, in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	return &ck, nil
}

func (a *App) setCheckinLocation(checkinID uuid.UUID, lat, lng *float64) error {
	if lat == nil || lng == nil {
		return nil
	}
	err := a.db.Exec(
		`UPDATE checkins
		 SET location = ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography
		 WHERE id = ?`,
		*lng, *lat, checkinID,
	).Error
	if err != nil {
		return fmt.Errorf("set checkin location: %w", err)
	}
	return nil
}

func (a *App) listCheckins(userID uuid.UUID, limit int) ([]models.Checkin, error) {
	var rows []models.Checkin
	if err := a.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	return rows, nil
}

// listPendingCheckins returns scheduled check-ins that have not been
// completed, soonest deadline first. Overdue ones are flipped to missed on
// the way through.
func (a *App) listPendingCheckins(userID uuid.UUID) ([]models.Checkin, error) {
	now := time.Now()
	if err := a.db.Model(&models.Checkin{}).
		Where("user_id = ? AND status = ? AND scheduled_for < ?", userID, models.CheckinScheduled, now).
		Update("status", models.CheckinMissed).Error; err != nil {
		return nil, fmt.Errorf("mark missed checkins: %w", err)
	}

	var rows []models.Checkin
	if err := a.db.Where("user_id = ? AND status = ?", userID, models.CheckinScheduled).
		Order("scheduled_for ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pending checkins: %w", err)
	}
	return rows, nil
}

// completeCheckin marks a scheduled check-in safe and notifies contacts.
func (a *App) completeCheckin(ctx context.Context, userID, checkinID uuid.UUID) (*models.Checkin, error) {
	var ck models.Checkin
	if err := a.db.Where("id = ? AND user_id = ?", checkinID, userID).First(&ck).Error; err != nil {
		return nil, apperr.NotFound("Check-in")
	}
	if ck.Status != models.CheckinScheduled && ck.Status != models.CheckinMissed {
		return nil, apperr.Conflict("This check-in is already resolved")
	}

	now := time.Now()
	if err := a.db.Model(&ck).Updates(map[string]interface{}{
		"status":       models.CheckinSafe,
		"completed_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("complete checkin: %w", err)
	}

	a.hub.EmitToContacts(userID.String(), "checkin:safe", map[string]interface{}{
		"userId":    userID.String(),
		"checkinId": ck.ID.String(),
		"at":        now,
	})
	return &ck, nil
}

func (a *App) cancelCheckin(userID, checkinID uuid.UUID) error {
	res := a.db.Where("id = ? AND user_id = ? AND status = ?", checkinID, userID, models.CheckinScheduled).
		Delete(&models.Checkin{})
	if res.Error != nil {
		return fmt.Errorf("cancel checkin: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Check-in")
	}
	return nil
}

type safetyScore struct {
	Geohash     string             `json:"geohash"`
	SafetyScore float64            `json:"safetyScore"`
	SafetyLevel string             `json:"safetyLevel"`
	Factors     map[string]float64 `json:"factors"`
	LastUpdated time.Time          `json:"lastUpdated"`
}

// getSafetyScore serves an area score through two layers: Redis, then the
// safety_zones table. An expired or missing zone row is recomputed and
// upserted. Scores are synthesized until a real data provider is plugged in.
func (a *App) getSafetyScore(ctx context.Context, lat, lng float64) (*safetyScore, error) {
	gh := coarseGeohash(lat, lng)
	key := cache.SafetyScoreKey(gh)

	var cached safetyScore
	if hit, err := a.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	now := time.Now()
	var zone models.SafetyZone
	err := a.db.Where("geohash = ? AND expires_at > ?", gh, now).First(&zone).Error
	if err != nil {
		zone = a.computeSafetyZone(gh, lat, lng, now)
		if err := a.db.Exec(
			`INSERT INTO safety_zones (geohash, safety_score, safety_level, factors, last_updated, expires_at, location)
			 VALUES (?, ?, ?, ?, ?, ?, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography)
			 ON CONFLICT (geohash) DO UPDATE SET
			   safety_score = EXCLUDED.safety_score,
			   safety_level = EXCLUDED.safety_level,
			   factors = EXCLUDED.factors,
			   last_updated = EXCLUDED.last_updated,
			   expires_at = EXCLUDED.expires_at`,
			zone.Geohash, zone.SafetyScore, zone.SafetyLevel, zone.Factors,
			zone.LastUpdated, zone.ExpiresAt, lng, lat,
		).Error; err != nil {
			return nil, fmt.Errorf("upsert safety zone: %w", err)
		}
	}

	var factors map[string]float64
	_ = json.Unmarshal([]byte(zone.Factors), &factors)
	score := safetyScore{
		Geohash:     zone.Geohash,
		SafetyScore: zone.SafetyScore,
		SafetyLevel: zone.SafetyLevel,
		Factors:     factors,
		LastUpdated: zone.LastUpdated,
	}
	_ = a.cache.Set(ctx, key, score, safetyScoreTTL)
	return &score, nil
}

// computeSafetyZone synthesizes a plausible score in the 0.70 to 0.95 band.
// TODO: replace with a real safety data provider once one is selected.
func (a *App) computeSafetyZone(gh string, lat, lng float64, now time.Time) models.SafetyZone {
	score := 0.70 + rand.Float64()*0.25
	factors, _ := json.Marshal(map[string]float64{
		"lighting":       0.60 + rand.Float64()*0.40,
		"policePresence": 0.50 + rand.Float64()*0.50,
		"crowdDensity":   0.40 + rand.Float64()*0.60,
	})
	return models.SafetyZone{
		Geohash:     gh,
		SafetyScore: math.Round(score*100) / 100,
		SafetyLevel: safetyLevelFor(score),
		Factors:     string(factors),
		LastUpdated: now,
		ExpiresAt:   now.Add(safetyZoneTTL),
	}
}

type emergencyResult struct {
	Checkin          *models.Checkin `json:"checkin"`
	ContactsNotified int             `json:"contactsNotified"`
}

// triggerEmergency raises an emergency check-in and alerts both realtime
// contacts and the trusted-contact list.
func (a *App) triggerEmergency(ctx context.Context, userID uuid.UUID, in checkinInput) (*emergencyResult, error) {
	ck := models.Checkin{
		UserID:       userID,
		Status:       models.CheckinEmergency,
		LocationName: in.LocationName,
		Notes:        in.Notes,
	}
	if err := a.db.Create(&ck).Error; err != nil {
		return nil, fmt.Errorf("create emergency: %w", err)
	}
	if err := a.setCheckinLocation(ck.ID, in.Latitude, in.Longitude); err != nil {
		return nil, err
	}

	var notified int64
	if err := a.db.Model(&models.TrustedContact{}).
		Where("user_id = ? AND notify_on_emergency = ?", userID, true).
		Count(&notified).Error; err != nil {
		return nil, fmt.Errorf("count trusted contacts: %w", err)
	}

	a.hub.EmitToContacts(userID.String(), "emergency:alert", map[string]interface{}{
		"userId":       userID.String(),
		"checkinId":    ck.ID.String(),
		"locationName": ck.LocationName,
		"notes":        ck.Notes,
	})
	return &emergencyResult{Checkin: &ck, ContactsNotified: int(notified)}, nil
}

// cancelEmergency resolves the most recent open emergency as safe.
func (a *App) cancelEmergency(ctx context.Context, userID uuid.UUID) error {
	var ck models.Checkin
	if err := a.db.Where("user_id = ? AND status = ?", userID, models.CheckinEmergency).
		Order("created_at DESC").
		First(&ck).Error; err != nil {
		return apperr.NotFound("Active emergency")
	}

	now := time.Now()
	if err := a.db.Model(&ck).Updates(map[string]interface{}{
		"status":       models.CheckinSafe,
		"completed_at": now,
	}).Error; err != nil {
		return fmt.Errorf("cancel emergency: %w", err)
	}

	a.hub.EmitToContacts(userID.String(), "emergency:cancelled", map[string]string{
		"userId":    userID.String(),
		"checkinId": ck.ID.String(),
	})
	return nil
}

type safetyStatus struct {
	Status          string          `json:"status"`
	ActiveEmergency *models.Checkin `json:"activeEmergency,omitempty"`
	LastCheckin     *models.Checkin `json:"lastCheckin,omitempty"`
	NextScheduled   *models.Checkin `json:"nextScheduled,omitempty"`
	OverdueCount    int64           `json:"overdueCount"`
}

// getSafetyStatus summarizes where the user stands: active emergency beats
// overdue check-ins beats all-clear.
func (a *App) getSafetyStatus(ctx context.Context, userID uuid.UUID) (*safetyStatus, error) {
	out := &safetyStatus{Status: "ok"}
	now := time.Now()

	var emergency models.Checkin
	if err := a.db.Where("user_id = ? AND status = ?", userID, models.CheckinEmergency).
		Order("created_at DESC").First(&emergency).Error; err == nil {
		out.Status = "emergency"
		out.ActiveEmergency = &emergency
	}

	if err := a.db.Model(&models.Checkin{}).
		Where("user_id = ? AND status = ? AND scheduled_for < ?", userID, models.CheckinScheduled, now).
		Count(&out.OverdueCount).Error; err != nil {
		return nil, fmt.Errorf("count overdue checkins: %w", err)
	}
	if out.Status == "ok" && out.OverdueCount > 0 {
		out.Status = "overdue"
	}

	var last models.Checkin
	if err := a.db.Where("user_id = ? AND status = ?", userID, models.CheckinSafe).
		Order("created_at DESC").First(&last).Error; err == nil {
		out.LastCheckin = &last
	}

	var next models.Checkin
	if err := a.db.Where("user_id = ? AND status = ? AND scheduled_for >= ?", userID, models.CheckinScheduled, now).
		Order("scheduled_for ASC").First(&next).Error; err == nil {
		out.NextScheduled = &next
	}

	return out, nil
}
