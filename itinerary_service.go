package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/apperr"
	"wayfarer/pkg/cache"
	"wayfarer/pkg/realtime"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const itineraryCacheTTL = 5 * time.Minute

// page carries cursor pagination over created_at, newest first. Limit+1 rows
// are fetched; the extra row only signals that another page exists.
type page struct {
	Cursor time.Time
	Limit  int
}

type itineraryPage struct {
	Itineraries []models.Itinerary `json:"itineraries"`
	NextCursor  string             `json:"nextCursor,omitempty"`
	HasMore     bool               `json:"hasMore"`
}

type itineraryInput struct {
	Title       string
	Destination string
	StartDate   time.Time
	EndDate     time.Time
	Mood        string
	IsPublic    bool
	Latitude    *float64
	Longitude   *float64
}

func (a *App) createItinerary(ctx context.Context, userID uuid.UUID, in itineraryInput) (*models.Itinerary, error) {
	if in.EndDate.Before(in.StartDate) {
		return nil, apperr.Validation("endDate must not be before startDate")
	}
	it := models.Itinerary{
		UserID:      userID,
		Title:       in.Title,
		Destination: in.Destination,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Mood:        in.Mood,
		Status:      models.ItineraryDraft,
		IsPublic:    in.IsPublic,
	}
	if it.Mood == "" {
		it.Mood = "balanced"
	}
	if err := a.db.Create(&it).Error; err != nil {
		return nil, fmt.Errorf("create itinerary: %w", err)
	}
	if in.Latitude != nil && in.Longitude != nil {
		if err := a.setItineraryLocation(it.ID, *in.Latitude, *in.Longitude); err != nil {
			return nil, err
		}
	}
	a.invalidateItineraryCaches(ctx, userID, it.ID)
	return &it, nil
}

func (a *App) setItineraryLocation(itineraryID uuid.UUID, lat, lng float64) error {
	err := a.db.Exec(
		`UPDATE itineraries
		 SET destination_location = ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography
		 WHERE id = ?`,
		lng, lat, itineraryID,
	).Error
	if err != nil {
		return fmt.Errorf("set itinerary location: %w", err)
	}
	return nil
}

// userItinerariesPageKey names a cached list page. Every page of a user sits
// under the same UserItinerariesKey prefix, so one pattern delete drops them
// all on invalidation.
func userItinerariesPageKey(userID string, p page) string {
	cursor := "first"
	if !p.Cursor.IsZero() {
		cursor = p.Cursor.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%s:%s:%d", cache.UserItinerariesKey(userID), cursor, p.Limit)
}

func (a *App) listItineraries(ctx context.Context, userID uuid.UUID, p page) (*itineraryPage, error) {
	key := userItinerariesPageKey(userID.String(), p)

	var cached itineraryPage
	if hit, err := a.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	q := a.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(p.Limit + 1)
	if !p.Cursor.IsZero() {
		q = q.Where("created_at < ?", p.Cursor)
	}
	var rows []models.Itinerary
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list itineraries: %w", err)
	}

	out := paginate(rows, p.Limit)
	_ = a.cache.Set(ctx, key, out, itineraryCacheTTL)
	return out, nil
}

func paginate(rows []models.Itinerary, limit int) *itineraryPage {
	out := &itineraryPage{Itineraries: rows}
	if len(rows) > limit {
		out.Itineraries = rows[:limit]
		out.HasMore = true
		out.NextCursor = out.Itineraries[limit-1].CreatedAt.Format(time.RFC3339Nano)
	}
	if out.Itineraries == nil {
		out.Itineraries = []models.Itinerary{}
	}
	return out
}

// getItinerary enforces visibility: the owner always sees their itinerary,
// everyone else only if it is public.
func (a *App) getItinerary(ctx context.Context, viewerID, itineraryID uuid.UUID) (*models.Itinerary, error) {
	key := cache.ItineraryKey(itineraryID.String())

	var it models.Itinerary
	hit, err := a.cache.Get(ctx, key, &it)
	if err != nil || !hit {
		if err := a.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("scheduled_date ASC, start_time ASC")
		}).Where("id = ?", itineraryID).First(&it).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound("Itinerary")
			}
			return nil, fmt.Errorf("load itinerary: %w", err)
		}
		_ = a.cache.Set(ctx, key, it, itineraryCacheTTL)
	}

	if it.UserID != viewerID && !it.IsPublic {
		return nil, apperr.NotFound("Itinerary")
	}
	return &it, nil
}

// ownItinerary loads an itinerary the caller must own.
func (a *App) ownItinerary(userID, itineraryID uuid.UUID) (*models.Itinerary, error) {
	var it models.Itinerary
	if err := a.db.Where("id = ?", itineraryID).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Itinerary")
		}
		return nil, fmt.Errorf("load itinerary: %w", err)
	}
	if it.UserID != userID {
		return nil, apperr.Authorization("You do not own this itinerary")
	}
	return &it, nil
}

type itineraryUpdate struct {
	Title       *string
	Destination *string
	StartDate   *time.Time
	EndDate     *time.Time
	Mood        *string
	IsPublic    *bool
	Latitude    *float64
	Longitude   *float64
}

func (a *App) updateItinerary(ctx context.Context, userID, itineraryID uuid.UUID, upd itineraryUpdate) (*models.Itinerary, error) {
	it, err := a.ownItinerary(userID, itineraryID)
	if err != nil {
		return nil, err
	}

	start, end := it.StartDate, it.EndDate
	if upd.StartDate != nil {
		start = *upd.StartDate
	}
	if upd.EndDate != nil {
		end = *upd.EndDate
	}
	if end.Before(start) {
		return nil, apperr.Validation("endDate must not be before startDate")
	}

	fields := map[string]interface{}{}
	if upd.Title != nil {
		fields["title"] = *upd.Title
	}
	if upd.Destination != nil {
		fields["destination"] = *upd.Destination
	}
	if upd.StartDate != nil {
		fields["start_date"] = *upd.StartDate
	}
	if upd.EndDate != nil {
		fields["end_date"] = *upd.EndDate
	}
	if upd.Mood != nil {
		fields["mood"] = *upd.Mood
	}
	if upd.IsPublic != nil {
		fields["is_public"] = *upd.IsPublic
	}
	if len(fields) > 0 {
		if err := a.db.Model(it).Updates(fields).Error; err != nil {
			return nil, fmt.Errorf("update itinerary: %w", err)
		}
	}
	if upd.Latitude != nil && upd.Longitude != nil {
		if err := a.setItineraryLocation(it.ID, *upd.Latitude, *upd.Longitude); err != nil {
			return nil, err
		}
	}

	a.invalidateItineraryCaches(ctx, userID, it.ID)
	return it, nil
}

func (a *App) deleteItinerary(ctx context.Context, userID, itineraryID uuid.UUID) error {
	it, err := a.ownItinerary(userID, itineraryID)
	if err != nil {
		return err
	}
	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("itinerary_id = ?", it.ID).Delete(&models.ItineraryItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(it).Error
	})
	if err != nil {
		return fmt.Errorf("delete itinerary: %w", err)
	}
	a.invalidateItineraryCaches(ctx, userID, it.ID)
	return nil
}

type itemInput struct {
	Title         string
	Description   string
	LocationName  string
	ScheduledDate time.Time
	StartTime     string
	EndTime       string
	Category      string
	IsFlexible    bool
	Latitude      *float64
	Longitude     *float64
}

func (a *App) addItineraryItem(ctx context.Context, userID, itineraryID uuid.UUID, in itemInput) (*models.ItineraryItem, error) {
	it, err := a.ownItinerary(userID, itineraryID)
	if err != nil {
		return nil, err
	}
	item := models.ItineraryItem{
		ItineraryID:   it.ID,
		Title:         in.Title,
		Description:   in.Description,
		LocationName:  in.LocationName,
		ScheduledDate: in.ScheduledDate,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Category:      in.Category,
		IsFlexible:    in.IsFlexible,
	}
	if err := a.db.Create(&item).Error; err != nil {
		return nil, fmt.Errorf("add itinerary item: %w", err)
	}
	if in.Latitude != nil && in.Longitude != nil {
		if err := a.db.Exec(
			`UPDATE itinerary_items
			 SET location = ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography
			 WHERE id = ?`,
			*in.Longitude, *in.Latitude, item.ID,
		).Error; err != nil {
			return nil, fmt.Errorf("set item location: %w", err)
		}
	}
	a.invalidateItineraryCaches(ctx, userID, it.ID)
	return &item, nil
}

func (a *App) updateItineraryItem(ctx context.Context, userID, itineraryID, itemID uuid.UUID, fields map[string]interface{}) (*models.ItineraryItem, error) {
	it, err := a.ownItinerary(userID, itineraryID)
	if err != nil {
		return nil, err
	}
	var item models.ItineraryItem
	if err := a.db.Where("id = ? AND itinerary_id = ?", itemID, it.ID).First(&item).Error; err != nil {
		return nil, apperr.NotFound("Itinerary item")
	}
	if len(fields) > 0 {
		if err := a.db.Model(&item).Updates(fields).Error; err != nil {
			return nil, fmt.Errorf("update itinerary item: %w", err)
		}
	}
	a.invalidateItineraryCaches(ctx, userID, it.ID)
	return &item, nil
}

func (a *App) deleteItineraryItem(ctx context.Context, userID, itineraryID, itemID uuid.UUID) error {
	it, err := a.ownItinerary(userID, itineraryID)
	if err != nil {
		return err
	}
	res := a.db.Where("id = ? AND itinerary_id = ?", itemID, it.ID).Delete(&models.ItineraryItem{})
	if res.Error != nil {
		return fmt.Errorf("delete itinerary item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Itinerary item")
	}
	a.invalidateItineraryCaches(ctx, userID, it.ID)
	return nil
}

// setItineraryStatus applies the allowed status transitions. Activation also
// pushes an event to the owner's itinerary room so open clients pick it up.
func (a *App) setItineraryStatus(ctx context.Context, userID, itineraryID uuid.UUID, status string) (*models.Itinerary, error) {
	it, err := a.ownItinerary(userID, itineraryID)
	if err != nil {
		return nil, err
	}
	switch status {
	case models.ItineraryActive:
		if it.Status != models.ItineraryDraft && it.Status != models.ItineraryCompleted {
			return nil, apperr.Conflict("Only draft itineraries can be activated")
		}
	case models.ItineraryCompleted:
		if it.Status != models.ItineraryActive {
			return nil, apperr.Conflict("Only active itineraries can be completed")
		}
	default:
		return nil, apperr.Validation("Unsupported status transition")
	}
	if err := a.db.Model(it).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update itinerary status: %w", err)
	}
	a.invalidateItineraryCaches(ctx, userID, it.ID)
	a.hub.Emit(realtime.ItineraryRoom(it.ID.String()), "itinerary:status", map[string]string{
		"itineraryId": it.ID.String(),
		"status":      status,
	})
	return it, nil
}

// duplicateItinerary copies the itinerary and its items into a fresh draft
// owned by the caller. Public itineraries can be duplicated by anyone.
func (a *App) duplicateItinerary(ctx context.Context, userID, itineraryID uuid.UUID) (*models.Itinerary, error) {
	src, err := a.getItinerary(ctx, userID, itineraryID)
	if err != nil {
		return nil, err
	}

	var items []models.ItineraryItem
	if err := a.db.Where("itinerary_id = ?", src.ID).Order("scheduled_date ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load itinerary items: %w", err)
	}

	dup := models.Itinerary{
		UserID:      userID,
		Title:       src.Title + " (copy)",
		Destination: src.Destination,
		StartDate:   src.StartDate,
		EndDate:     src.EndDate,
		Mood:        src.Mood,
		Status:      models.ItineraryDraft,
		IsPublic:    false,
	}
	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dup).Error; err != nil {
			return err
		}
		for i := range items {
			copyItem := items[i]
			copyItem.ID = uuid.Nil
			copyItem.ItineraryID = dup.ID
			copyItem.CreatedAt = time.Time{}
			copyItem.UpdatedAt = time.Time{}
			if err := tx.Create(&copyItem).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate itinerary: %w", err)
	}

	a.invalidateItineraryCaches(ctx, userID, dup.ID)
	return &dup, nil
}

func (a *App) listPublicItineraries(ctx context.Context, p page) (*itineraryPage, error) {
	q := a.db.Where("is_public = ?", true).Order("created_at DESC").Limit(p.Limit + 1)
	if !p.Cursor.IsZero() {
		q = q.Where("created_at < ?", p.Cursor)
	}
	var rows []models.Itinerary
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list public itineraries: %w", err)
	}
	return paginate(rows, p.Limit), nil
}

type nearbyItinerary struct {
	models.Itinerary
	DistanceMeters float64 `json:"distanceMeters"`
}

// nearbyItineraries finds public itineraries whose destination falls within
// the radius. Distance sorting and filtering both run on the geography
// column's GIST index.
func (a *App) nearbyItineraries(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]nearbyItinerary, error) {
	var rows []nearbyItinerary
	err := a.db.Raw(
		`SELECT i.*, ST_Distance(i.destination_location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography) AS distance_meters
		 FROM itineraries i
		 WHERE i.is_public = true
		   AND i.destination_location IS NOT NULL
		   AND ST_DWithin(i.destination_location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)
		 ORDER BY distance_meters ASC
		 LIMIT ?`,
		lng, lat, lng, lat, radiusMeters, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("nearby itineraries: %w", err)
	}
	if rows == nil {
		rows = []nearbyItinerary{}
	}
	return rows, nil
}

func (a *App) invalidateItineraryCaches(ctx context.Context, userID, itineraryID uuid.UUID) {
	_ = a.cache.Delete(ctx, cache.ItineraryKey(itineraryID.String()))
	_ = a.cache.DeletePattern(ctx, cache.UserItinerariesKey(userID.String())+"*")
}
