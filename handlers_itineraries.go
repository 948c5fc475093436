package main

import (
	"net/http"
	"strconv"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type createItineraryRequest struct {
	Title       string   `json:"title" binding:"required,min=1,max=255"`
	Destination string   `json:"destination" binding:"required,min=1,max=255"`
	StartDate   string   `json:"startDate" binding:"required"`
	EndDate     string   `json:"endDate" binding:"required"`
	Mood        string   `json:"mood" binding:"omitempty,oneof=relaxed balanced adventurous"`
	IsPublic    bool     `json:"isPublic"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

type updateItineraryRequest struct {
	Title       *string  `json:"title" binding:"omitempty,min=1,max=255"`
	Destination *string  `json:"destination" binding:"omitempty,min=1,max=255"`
	StartDate   *string  `json:"startDate"`
	EndDate     *string  `json:"endDate"`
	Mood        *string  `json:"mood" binding:"omitempty,oneof=relaxed balanced adventurous"`
	IsPublic    *bool    `json:"isPublic"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

type itineraryItemRequest struct {
	Title         string   `json:"title" binding:"required,min=1,max=255"`
	Description   string   `json:"description" binding:"omitempty,max=2048"`
	LocationName  string   `json:"locationName" binding:"omitempty,max=255"`
	ScheduledDate string   `json:"scheduledDate" binding:"required"`
	StartTime     string   `json:"startTime" binding:"omitempty,len=5"`
	EndTime       string   `json:"endTime" binding:"omitempty,len=5"`
	Category      string   `json:"category" binding:"omitempty,max=32"`
	IsFlexible    bool     `json:"isFlexible"`
	Latitude      *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude     *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

type updateItineraryItemRequest struct {
	Title         *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description   *string `json:"description" binding:"omitempty,max=2048"`
	LocationName  *string `json:"locationName" binding:"omitempty,max=255"`
	ScheduledDate *string `json:"scheduledDate"`
	StartTime     *string `json:"startTime" binding:"omitempty,len=5"`
	EndTime       *string `json:"endTime" binding:"omitempty,len=5"`
	Category      *string `json:"category" binding:"omitempty,max=32"`
	IsFlexible    *bool   `json:"isFlexible"`
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// pageFromQuery reads cursor and limit query params with bounded defaults.
func pageFromQuery(c *gin.Context) page {
	p := page{Limit: 20}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			p.Limit = n
		}
	}
	if v := c.Query("cursor"); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			p.Cursor = t
		}
	}
	return p
}

func itineraryIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("itineraryId"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (a *App) createItineraryHandler(c *gin.Context) {
	var req createItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		a.fail(c, apperr.Validation("startDate must be YYYY-MM-DD"))
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		a.fail(c, apperr.Validation("endDate must be YYYY-MM-DD"))
		return
	}
	it, err := a.createItinerary(c.Request.Context(), currentUserID(c), itineraryInput{
		Title:       req.Title,
		Destination: req.Destination,
		StartDate:   start,
		EndDate:     end,
		Mood:        req.Mood,
		IsPublic:    req.IsPublic,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, it)
}

func (a *App) listItinerariesHandler(c *gin.Context) {
	result, err := a.listItineraries(c.Request.Context(), currentUserID(c), pageFromQuery(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

func (a *App) getItineraryHandler(c *gin.Context) {
	id, ok := itineraryIDParam(c)
	if !ok {
		a.fail(c, apperr.Validation("Invalid itinerary id"))
		return
	}
	it, err := a.getItinerary(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, it)
}

func (a *App) updateItineraryHandler(c *gin.Context) {
	id, ok := itineraryIDParam(c)
	if !ok {
		a.fail(c, apperr.Validation("Invalid itinerary id"))
		return
	}
	var req updateItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	upd := itineraryUpdate{
		Title:       req.Title,
		Destination: req.Destination,
		Mood:        req.Mood,
		IsPublic:    req.IsPublic,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if req.StartDate != nil {
		t, err := parseDate(*req.StartDate)
		if err != nil {
			a.fail(c, apperr.Validation("startDate must be YYYY-MM-DD"))
			return
		}
		upd.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseDate(*req.EndDate)
		if err != nil {
			a.fail(c, apperr.Validation("endDate must be YYYY-MM-DD"))
			return
		}
		upd.EndDate = &t
	}
	it, err := a.updateItinerary(c.Request.Context(), currentUserID(c), id, upd)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, it)
}

func (a *App) deleteItineraryHandler(c *gin.Context) {
	id, ok := itineraryIDParam(c)
	if !ok {
		a.fail(c, apperr.Validation("Invalid itinerary id"))
		return
	}
	if err := a.deleteItinerary(c.Request.Context(), currentUserID(c), id); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Itinerary deleted")
}

func (a *App) addItineraryItemHandler(c *gin.Context) {
	id, ok := itineraryIDParam(c)
	if !ok {
		a.fail(c, apperr.Validation("Invalid itinerary id"))
		return
	}
	var req itineraryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	scheduled, err := parseDate(req.ScheduledDate)
	if err != nil {
		a.fail(c, apperr.Validation("scheduledDate must be YYYY-MM-DD"))
		return
	}
	item, err := a.addItineraryItem(c.Request.Context(), currentUserID(c), id, itemInput{
		Title:         req.Title,
		Description:   req.Description,
		LocationName:  req.LocationName,
		ScheduledDate: scheduled,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Category:      req.Category,
		IsFlexible:    req.IsFlexible,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, item)
}

func (a *App) updateItineraryItemHandler(c *gin.Context) {
	id, ok := itineraryIDParam(c)
	if !ok {
		a.fail(c, apperr.Validation("Invalid itinerary id"))
		return
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		a.fail(c, apperr.Validation("Invalid item id"))
		return
	}
	var req updateItineraryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.LocationName != nil {
		fields["location_name"] = *req.LocationName
	}
	if req.ScheduledDate != nil {
		t, err := parseDate(*req.ScheduledDate)
		if err != nil {
			a.fail(c, apperr.Validation("scheduledDate must be YYYY-MM-DD"))
			return
		}
		fields["scheduled_date"] = t
	}
	if req.StartTime != nil {
		fields["start_time"] = *req.StartTime
	}
	if req.EndTime != nil {
		fields["end_time"] = *req.EndTime
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.IsFlexible != nil {
		fields["is_flexible"] = *req.IsFlexible
	}
	item, err := a.updateItineraryItem(c.Request.Context(), currentUserID(c), id, itemID, fields)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, item)
}

func (a *App) deleteItineraryItemHandler(c *gin.Context) {
	id, ok := itineraryIDParam(c)
	if !ok {
		a.fail(c, apperr.Validation("Invalid itinerary id"))
		return
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		a.fail(c, apperr.Validation("Invalid item id"))
		return
	}
	if err := a.deleteItineraryItem(c.Request.Context(), currentUserID(c), id, itemID); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Item deleted")
}

func (a *App) activateItineraryHandler(c *gin.Context) {
	a.itineraryStatusHandler(c, models.ItineraryActive)
}

func (a *App) completeItineraryHandler(c *gin.Context) {
	a.itineraryStatusHandler(c, models.ItineraryCompleted)
}

func (a *App) itineraryStatusHandler(c *gin.Context, status string) {
	id, ok := itineraryIDParam(c)
	if !ok {
		a.fail(c, apperr.Validation("Invalid itinerary id"))
		return
	}
	it, err := a.setItineraryStatus(c.Request.Context(), currentUserID(c), id, status)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, it)
}

func (a *App) duplicateItineraryHandler(c *gin.Context) {
	id, ok := itineraryIDParam(c)
	if !ok {
		a.fail(c, apperr.Validation("Invalid itinerary id"))
		return
	}
	it, err := a.duplicateItinerary(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, it)
}

func (a *App) listPublicItinerariesHandler(c *gin.Context) {
	result, err := a.listPublicItineraries(c.Request.Context(), pageFromQuery(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

func (a *App) nearbyItinerariesHandler(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("longitude"), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		a.fail(c, apperr.Validation("latitude and longitude are required"))
		return
	}
	radius := 50000.0
	if v := c.Query("radius"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 && r <= 500000 {
			radius = r
		}
	}
	rows, err := a.nearbyItineraries(c.Request.Context(), lat, lng, radius, 50)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, rows)
}
