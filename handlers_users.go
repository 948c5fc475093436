package main

import (
	"net/http"

	"wayfarer/models"
	"wayfarer/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type updateProfileRequest struct {
	DisplayName *string `json:"displayName" binding:"omitempty,min=2,max=100"`
	AvatarURL   *string `json:"avatarUrl" binding:"omitempty,max=512"`
}

type updateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

type updateVisibilityRequest struct {
	VisibilityMode string `json:"visibilityMode" binding:"required"`
}

type trustedContactRequest struct {
	ContactName       string `json:"contactName" binding:"required,min=1,max=100"`
	ContactPhone      string `json:"contactPhone" binding:"omitempty,max=32"`
	ContactEmail      string `json:"contactEmail" binding:"omitempty,email"`
	NotifyOnCheckin   *bool  `json:"notifyOnCheckin"`
	NotifyOnEmergency *bool  `json:"notifyOnEmergency"`
}

func (a *App) getProfileHandler(c *gin.Context) {
	profile, err := a.getUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, profile)
}

func (a *App) updateProfileHandler(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	profile, err := a.updateProfile(c.Request.Context(), currentUserID(c), profileUpdate{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, profile)
}

func (a *App) deleteAccountHandler(c *gin.Context) {
	if err := a.deleteAccount(c.Request.Context(), currentUserID(c)); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Account deleted")
}

func (a *App) updateLocationHandler(c *gin.Context) {
	var req updateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	if err := a.updateLocation(c.Request.Context(), currentUserID(c), *req.Latitude, *req.Longitude); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Location updated")
}

func (a *App) updateVisibilityHandler(c *gin.Context) {
	var req updateVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	if err := a.updateVisibility(c.Request.Context(), currentUserID(c), req.VisibilityMode); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Visibility updated")
}

func (a *App) listTrustedContactsHandler(c *gin.Context) {
	contacts, err := a.listTrustedContacts(currentUserID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, contacts)
}

func (a *App) addTrustedContactHandler(c *gin.Context) {
	var req trustedContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	contact := models.TrustedContact{
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	}
	if req.NotifyOnCheckin != nil {
		contact.NotifyOnCheckin = *req.NotifyOnCheckin
	} else {
		contact.NotifyOnCheckin = true
	}
	if req.NotifyOnEmergency != nil {
		contact.NotifyOnEmergency = *req.NotifyOnEmergency
	} else {
		contact.NotifyOnEmergency = true
	}
	if err := a.addTrustedContact(currentUserID(c), &contact); err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, contact)
}

func (a *App) removeTrustedContactHandler(c *gin.Context) {
	contactID, err := uuid.Parse(c.Param("contactId"))
	if err != nil {
		a.fail(c, apperr.Validation("Invalid contact id"))
		return
	}
	if err := a.removeTrustedContact(currentUserID(c), contactID); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Trusted contact removed")
}
