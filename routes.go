package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// setupRoutes wires every endpoint onto the engine. Auth endpoints sit
// behind a much stricter rate limit than the rest of the API.
func (a *App) setupRoutes(r *gin.Engine) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	r.Static("/uploads", a.cfg.UploadBase)

	api := r.Group("/api/v1")
	api.Use(a.rateLimit("api", a.cfg.RateLimitMax, a.cfg.RateLimitWindow))

	auth := api.Group("/auth")
	{
		strict := a.rateLimit("auth", a.cfg.AuthRateMax, a.cfg.AuthRateWindow)
		auth.POST("/register", strict, a.registerHandler)
		auth.POST("/login", strict, a.loginHandler)
		auth.POST("/refresh", a.refreshHandler)
		auth.POST("/forgot-password", strict, a.forgotPasswordHandler)
		auth.POST("/reset-password", strict, a.resetPasswordHandler)

		auth.POST("/logout", a.requireAuth(), a.logoutHandler)
		auth.GET("/me", a.requireAuth(), a.meHandler)
		auth.POST("/change-password", a.requireAuth(), a.changePasswordHandler)
	}

	users := api.Group("/users", a.requireAuth())
	{
		users.GET("/profile", a.getProfileHandler)
		users.PATCH("/profile", a.updateProfileHandler)
		users.DELETE("/profile", a.deleteAccountHandler)
		users.POST("/avatar", a.uploadAvatarHandler)
		users.PATCH("/location", a.updateLocationHandler)
		users.PATCH("/visibility", a.updateVisibilityHandler)
		users.GET("/contacts", a.listTrustedContactsHandler)
		users.POST("/contacts", a.addTrustedContactHandler)
		users.DELETE("/contacts/:contactId", a.removeTrustedContactHandler)
	}

	itineraries := api.Group("/itineraries")
	{
		itineraries.GET("/public", a.listPublicItinerariesHandler)
		itineraries.GET("/nearby", a.nearbyItinerariesHandler)

		owned := itineraries.Group("", a.requireAuth())
		owned.POST("", a.createItineraryHandler)
		owned.GET("", a.listItinerariesHandler)
		owned.GET("/:itineraryId", a.getItineraryHandler)
		owned.PATCH("/:itineraryId", a.updateItineraryHandler)
		owned.DELETE("/:itineraryId", a.deleteItineraryHandler)
		owned.POST("/:itineraryId/items", a.addItineraryItemHandler)
		owned.PATCH("/:itineraryId/items/:itemId", a.updateItineraryItemHandler)
		owned.DELETE("/:itineraryId/items/:itemId", a.deleteItineraryItemHandler)
		owned.POST("/:itineraryId/activate", a.activateItineraryHandler)
		owned.POST("/:itineraryId/complete", a.completeItineraryHandler)
		owned.POST("/:itineraryId/duplicate", a.duplicateItineraryHandler)
	}

	social := api.Group("/social", a.requireAuth())
	{
		social.GET("/nearby", a.nearbyTravelersHandler)
		social.GET("/connections", a.listConnectionsHandler)
		social.GET("/connections/pending", a.listPendingConnectionsHandler)
		social.POST("/connections", a.requestConnectionHandler)
		social.POST("/connections/:connectionId/respond", a.respondConnectionHandler)
		social.DELETE("/connections/:connectionId", a.removeConnectionHandler)
		social.POST("/connections/:userId/block", a.blockUserHandler)
		social.GET("/messages/:userId", a.listMessagesHandler)
		social.POST("/messages/:userId", a.sendMessageHandler)
		social.POST("/messages/:userId/read", a.markMessagesReadHandler)
		social.GET("/profile/:userId", a.publicProfileHandler)
	}

	safety := api.Group("/safety")
	{
		safety.GET("/score", a.safetyScoreHandler)

		authed := safety.Group("", a.requireAuth())
		authed.POST("/checkin", a.createCheckinHandler)
		authed.POST("/checkin/schedule", a.scheduleCheckinHandler)
		authed.GET("/checkins", a.listCheckinsHandler)
		authed.GET("/checkins/pending", a.listPendingCheckinsHandler)
		authed.POST("/checkins/:checkinId/complete", a.completeCheckinHandler)
		authed.DELETE("/checkins/:checkinId", a.cancelCheckinHandler)
		authed.POST("/emergency", a.triggerEmergencyHandler)
		authed.POST("/emergency/cancel", a.cancelEmergencyHandler)
		authed.GET("/status", a.safetyStatusHandler)
	}

	r.GET("/ws", a.serveWS)
}
