package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
	DisplayName string `json:"displayName" binding:"omitempty,min=2,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=128"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=128"`
}

func (a *App) registerHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	result, err := a.registerUser(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusCreated, result)
}

func (a *App) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	result, err := a.loginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

func (a *App) refreshHandler(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	pair, err := a.rotateRefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, pair)
}

func (a *App) forgotPasswordHandler(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	if err := a.forgotPassword(c.Request.Context(), req.Email); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "If an account with that email exists, a reset link has been sent")
}

func (a *App) resetPasswordHandler(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	if err := a.resetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Password has been reset")
}

func (a *App) logoutHandler(c *gin.Context) {
	if err := a.logoutUser(c.Request.Context(), currentUserID(c)); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Logged out")
}

func (a *App) meHandler(c *gin.Context) {
	profile, err := a.getUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	respondData(c, http.StatusOK, profile)
}

func (a *App) changePasswordHandler(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failValidation(c, err)
		return
	}
	if err := a.changePassword(c.Request.Context(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		a.fail(c, err)
		return
	}
	respondMessage(c, "Password changed")
}
