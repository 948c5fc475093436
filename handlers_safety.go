package main

import (
	"net/http"
	"strconv"
	"time"

	"wayfarer/pkg/apperr"

	"github.com/gin-gonic/gin"
)

type checkinRequest struct {
	LocationName string   `json:"locationName" binding:"omitempty,max=255"`
	Notes        string   `json:"notes" binding:"omitempty,max=1024"`
	Latitude     *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
}

type scheduleCheckinRequest struct {
	checkinRequest
	ScheduledFor time.Time `json:"scheduledFor" binding:"required"`
}

func (a *App) createCheckinHandler(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	ck, err := a.createCheckin(c.Request.Context(), currentUserID(c), checkinInput{
		LocationName: req.LocationName,
		Notes:        req.Notes,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, ck)
}

func (a *App) scheduleCheckinHandler(c *gin.Context) {
	var req scheduleCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	ck, err := a.scheduleCheckin(c.Request.Context(), currentUserID(c), checkinInput{
		LocationName: req.LocationName,
		Notes:        req.Notes,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ScheduledFor: &req.ScheduledFor,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, ck)
}

func (a *App) listCheckinsHandler(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rows, err := a.listCheckins(currentUserID(c), limit)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, rows)
}

func (a *App) listPendingCheckinsHandler(c *gin.Context) {
	rows, err := a.listPendingCheckins(currentUserID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, rows)
}

func (a *App) completeCheckinHandler(c *gin.Context) {
	checkinID, ok := userIDParam(c, "checkinId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid check-in id"))
		return
	}
	ck, err := a.completeCheckin(c.Request.Context(), currentUserID(c), checkinID)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, ck)
}

func (a *App) cancelCheckinHandler(c *gin.Context) {
	checkinID, ok := userIDParam(c, "checkinId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid check-in id"))
		return
	}
	if err := a.cancelCheckin(currentUserID(c), checkinID); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Check-in cancelled")
}

func (a *App) safetyScoreHandler(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("longitude"), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		a.fail(c, apperr.Validation("latitude and longitude are required"))
		return
	}
	score, err := a.getSafetyScore(c.Request.Context(), lat, lng)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, score)
}

func (a *App) triggerEmergencyHandler(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	result, err := a.triggerEmergency(c.Request.Context(), currentUserID(c), checkinInput{
		LocationName: req.LocationName,
		Notes:        req.Notes,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, result)
}

func (a *App) cancelEmergencyHandler(c *gin.Context) {
	if err := a.cancelEmergency(c.Request.Context(), currentUserID(c)); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Emergency cancelled")
}

func (a *App) safetyStatusHandler(c *gin.Context) {
	status, err := a.getSafetyStatus(c.Request.Context(), currentUserID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, status)
}
