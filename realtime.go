package main

import (
	"context"
	"log"
	"net/http"
	"regexp"

	"wayfarer/models"
	"wayfarer/pkg/realtime"
	"wayfarer/pkg/tokens"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set Authorization headers on websocket requests, so
	// the token rides in the query string and origin checks are left to the
	// CORS layer on the rest of the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Area names are the coarse geohash cells produced by coarseGeohash.
var areaPattern = regexp.MustCompile(`^-?\d{1,7}_-?\d{1,7}$`)

// serveWS authenticates the websocket handshake and hands the connection to
// the hub. Auth mirrors requireAuth except the token arrives as ?token=.
func (a *App) serveWS(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{
			"code": "AUTHENTICATION_ERROR", "message": "No token provided",
		}})
		return
	}
	claims, err := a.tokens.Verify(tokenString)
	if err != nil || claims.TokenType == tokens.TypeRefresh {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{
			"code": "AUTHENTICATION_ERROR", "message": "Invalid token",
		}})
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{
			"code": "AUTHENTICATION_ERROR", "message": "Invalid token",
		}})
		return
	}
	var user models.User
	if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{
			"code": "AUTHENTICATION_ERROR", "message": "User not found",
		}})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed for %s: %v", userID, err)
		return
	}
	a.hub.Serve(conn, userID.String())
}

// handleRealtimeMessage dispatches client actions. Room joins are authorized
// against the database before the subscription takes effect.
func (a *App) handleRealtimeMessage(c *realtime.Client, msg realtime.Inbound) {
	switch msg.Action {
	case "join:contacts":
		a.joinContacts(c, msg.ContactIDs)
	case "join:itinerary":
		a.joinItinerary(c, msg.ItineraryID)
	case "join:area":
		if !areaPattern.MatchString(msg.Geohash) {
			c.SendError("BAD_MESSAGE", "Invalid area")
			return
		}
		a.hub.Join(c, realtime.AreaRoom(msg.Geohash))
	case "leave:area":
		a.hub.Leave(c, realtime.AreaRoom(msg.Geohash))
	case "location:update":
		a.realtimeLocationUpdate(c, msg.Latitude, msg.Longitude)
	default:
		c.SendError("BAD_MESSAGE", "Unknown action")
	}
}

// joinContacts subscribes the client to the contacts rooms of users they are
// actually connected to; unknown ids are silently skipped.
func (a *App) joinContacts(c *realtime.Client, contactIDs []string) {
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return
	}
	accepted, err := a.acceptedContactIDs(userID)
	if err != nil {
		c.SendError("INTERNAL_ERROR", "Could not load contacts")
		return
	}
	for _, id := range contactIDs {
		if accepted[id] {
			a.hub.Join(c, realtime.ContactsRoom(id))
		}
	}
	// own room too, so the client sees events fanned out to its followers
	a.hub.Join(c, realtime.ContactsRoom(c.UserID))
}

// joinItinerary admits the owner of an itinerary or anyone when it is public.
func (a *App) joinItinerary(c *realtime.Client, itineraryID string) {
	id, err := uuid.Parse(itineraryID)
	if err != nil {
		c.SendError("BAD_MESSAGE", "Invalid itinerary id")
		return
	}
	var it models.Itinerary
	if err := a.db.Where("id = ?", id).First(&it).Error; err != nil {
		c.SendError("NOT_FOUND", "Itinerary not found")
		return
	}
	if it.UserID.String() != c.UserID && !it.IsPublic {
		c.SendError("AUTHORIZATION_ERROR", "You cannot join this itinerary")
		return
	}
	a.hub.Join(c, realtime.ItineraryRoom(itineraryID))
}

// realtimeLocationUpdate persists the position and pushes a presence event to
// the sender's area, skipping the sender themselves.
func (a *App) realtimeLocationUpdate(c *realtime.Client, lat, lng float64) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		c.SendError("BAD_MESSAGE", "Invalid coordinates")
		return
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return
	}
	if err := a.updateLocation(context.Background(), userID, lat, lng); err != nil {
		c.SendError("INTERNAL_ERROR", "Could not update location")
		return
	}

	gh := coarseGeohash(lat, lng)
	a.hub.EmitExcept(realtime.AreaRoom(gh), "traveler:nearby", map[string]interface{}{
		"userId":    c.UserID,
		"latitude":  lat,
		"longitude": lng,
	}, c)
}
