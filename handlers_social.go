package main

import (
	"net/http"
	"strconv"

	"wayfarer/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type connectionRequestBody struct {
	UserID string `json:"userId" binding:"required,uuid"`
}

type connectionResponseBody struct {
	Accept bool `json:"accept"`
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=4096"`
}

func userIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (a *App) nearbyTravelersHandler(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("latitude"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("longitude"), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		a.fail(c, apperr.Validation("latitude and longitude are required"))
		return
	}
	radius := 10000.0
	if v := c.Query("radius"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 && r <= 100000 {
			radius = r
		}
	}
	travelers, err := a.nearbyTravelers(c.Request.Context(), currentUserID(c), lat, lng, radius, 50)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, travelers)
}

func (a *App) listConnectionsHandler(c *gin.Context) {
	conns, err := a.listConnections(currentUserID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, conns)
}

func (a *App) listPendingConnectionsHandler(c *gin.Context) {
	conns, err := a.listPendingConnections(currentUserID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, conns)
}

func (a *App) requestConnectionHandler(c *gin.Context) {
	var req connectionRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	recipientID, _ := uuid.Parse(req.UserID)
	conn, err := a.requestConnection(c.Request.Context(), currentUserID(c), recipientID)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, conn)
}

func (a *App) respondConnectionHandler(c *gin.Context) {
	connectionID, ok := userIDParam(c, "connectionId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid connection id"))
		return
	}
	var req connectionResponseBody
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	if err := a.respondConnection(c.Request.Context(), currentUserID(c), connectionID, req.Accept); err != nil {
		a.fail(c, err)
		return
	}
	if req.Accept {
		respondMessage(c, "Connection accepted")
	} else {
		respondMessage(c, "Connection declined")
	}
}

func (a *App) removeConnectionHandler(c *gin.Context) {
	connectionID, ok := userIDParam(c, "connectionId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid connection id"))
		return
	}
	if err := a.removeConnection(currentUserID(c), connectionID); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Connection removed")
}

func (a *App) blockUserHandler(c *gin.Context) {
	targetID, ok := userIDParam(c, "userId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid user id"))
		return
	}
	if err := a.blockUser(c.Request.Context(), currentUserID(c), targetID); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "User blocked")
}

func (a *App) listMessagesHandler(c *gin.Context) {
	otherID, ok := userIDParam(c, "userId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid user id"))
		return
	}
	result, err := a.listMessages(c.Request.Context(), currentUserID(c), otherID, pageFromQuery(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

func (a *App) sendMessageHandler(c *gin.Context) {
	otherID, ok := userIDParam(c, "userId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid user id"))
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	msg, err := a.sendMessage(c.Request.Context(), currentUserID(c), otherID, req.Content)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, msg)
}

func (a *App) markMessagesReadHandler(c *gin.Context) {
	otherID, ok := userIDParam(c, "userId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid user id"))
		return
	}
	count, err := a.markMessagesRead(c.Request.Context(), currentUserID(c), otherID)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"marked": count})
}

func (a *App) publicProfileHandler(c *gin.Context) {
	userID, ok := userIDParam(c, "userId")
	if !ok {
		a.fail(c, apperr.Validation("Invalid user id"))
		return
	}
	profile, err := a.getPublicProfile(c.Request.Context(), currentUserID(c), userID)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, profile)
}
