package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Users whose last_seen_at is older than this are excluded from discovery.
const presenceWindow = 24 * time.Hour

type nearbyTraveler struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"displayName"`
	AvatarURL      string     `json:"avatarUrl,omitempty"`
	DistanceMeters float64    `json:"distanceMeters"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
}

// nearbyTravelers returns discoverable users within the radius. Hidden users,
// stale presences and anyone in a block relationship with the caller are
// filtered in the query.
func (a *App) nearbyTravelers(ctx context.Context, userID uuid.UUID, lat, lng, radiusMeters float64, limit int) ([]nearbyTraveler, error) {
	var rows []nearbyTraveler
	err := a.db.Raw(
		`SELECT u.id, u.display_name, u.avatar_url, u.last_seen_at,
		        ST_Distance(u.current_location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography) AS distance_meters
		 FROM users u
		 WHERE u.id <> ?
		   AND u.visibility_mode = ?
		   AND u.current_location IS NOT NULL
		   AND u.last_seen_at > ?
		   AND ST_DWithin(u.current_location, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)
		   AND NOT EXISTS (
		       SELECT 1 FROM connections b
		       WHERE b.status = ?
		         AND ((b.requester_id = u.id AND b.recipient_id = ?)
		           OR (b.requester_id = ? AND b.recipient_id = u.id))
		   )
		 ORDER BY distance_meters ASC
		 LIMIT ?`,
		lng, lat,
		userID,
		models.VisibilityVisible,
		time.Now().Add(-presenceWindow),
		lng, lat, radiusMeters,
		models.ConnectionBlocked, userID, userID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("nearby travelers: %w", err)
	}
	if rows == nil {
		rows = []nearbyTraveler{}
	}
	return rows, nil
}

// connectionView joins the connection row with the other party's profile.
type connectionView struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Incoming    bool      `json:"incoming"`
}

func (a *App) listConnections(userID uuid.UUID) ([]connectionView, error) {
	return a.queryConnections(userID, models.ConnectionAccepted, false)
}

// listPendingConnections returns requests awaiting the caller's response.
func (a *App) listPendingConnections(userID uuid.UUID) ([]connectionView, error) {
	return a.queryConnections(userID, models.ConnectionPending, true)
}

func (a *App) queryConnections(userID uuid.UUID, status string, incomingOnly bool) ([]connectionView, error) {
	q := `SELECT c.id, c.status, c.created_at,
	             u.id AS user_id, u.display_name, u.avatar_url,
	             (c.recipient_id = ?) AS incoming
	      FROM connections c
	      JOIN users u ON u.id = CASE WHEN c.requester_id = ? THEN c.recipient_id ELSE c.requester_id END
	      WHERE c.status = ?`
	args := []interface{}{userID, userID, status}
	if incomingOnly {
		q += ` AND c.recipient_id = ?`
		args = append(args, userID)
	} else {
		q += ` AND (c.requester_id = ? OR c.recipient_id = ?)`
		args = append(args, userID, userID)
	}
	q += ` ORDER BY c.created_at DESC`

	var rows []connectionView
	if err := a.db.Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	if rows == nil {
		rows = []connectionView{}
	}
	return rows, nil
}

// connectionBetween finds the connection row for a user pair in either
// direction.
func (a *App) connectionBetween(userA, userB uuid.UUID) (*models.Connection, error) {
	var conn models.Connection
	err := a.db.Where(
		"(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)",
		userA, userB, userB, userA,
	).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load connection: %w", err)
	}
	return &conn, nil
}

// requestConnection creates a pending request and notifies the recipient.
func (a *App) requestConnection(ctx context.Context, requesterID, recipientID uuid.UUID) (*models.Connection, error) {
	if requesterID == recipientID {
		return nil, apperr.Conflict("You cannot connect with yourself")
	}
	if _, err := a.loadUser(recipientID); err != nil {
		return nil, err
	}

	existing, err := a.connectionBetween(requesterID, recipientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.ConnectionBlocked {
			return nil, apperr.Authorization("You cannot connect with this user")
		}
		return nil, apperr.Conflict("A connection already exists")
	}

	conn := models.Connection{
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      models.ConnectionPending,
	}
	if err := a.db.Create(&conn).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperr.Conflict("A connection already exists")
		}
		return nil, fmt.Errorf("create connection: %w", err)
	}

	a.hub.EmitToUser(recipientID.String(), "connection:request", map[string]string{
		"connectionId": conn.ID.String(),
		"requesterId":  requesterID.String(),
	})
	return &conn, nil
}

// respondConnection accepts or declines a pending request. Only the
// recipient may respond, and declined requests leave no row behind.
func (a *App) respondConnection(ctx context.Context, userID, connectionID uuid.UUID, accept bool) error {
	var conn models.Connection
	if err := a.db.Where("id = ?", connectionID).First(&conn).Error; err != nil {
		return apperr.NotFound("Connection")
	}
	if conn.RecipientID != userID {
		return apperr.Authorization("Only the recipient can respond to a request")
	}
	if conn.Status != models.ConnectionPending {
		return apperr.Conflict("This request has already been resolved")
	}

	if !accept {
		if err := a.db.Delete(&conn).Error; err != nil {
			return fmt.Errorf("decline connection: %w", err)
		}
		return nil
	}

	if err := a.db.Model(&conn).Update("status", models.ConnectionAccepted).Error; err != nil {
		return fmt.Errorf("accept connection: %w", err)
	}
	a.hub.EmitToUser(conn.RequesterID.String(), "connection:accepted", map[string]string{
		"connectionId": conn.ID.String(),
		"userId":       userID.String(),
	})
	return nil
}

// removeConnection lets either party sever an accepted connection.
func (a *App) removeConnection(userID, connectionID uuid.UUID) error {
	var conn models.Connection
	if err := a.db.Where("id = ?", connectionID).First(&conn).Error; err != nil {
		return apperr.NotFound("Connection")
	}
	if conn.RequesterID != userID && conn.RecipientID != userID {
		return apperr.Authorization("You are not part of this connection")
	}
	if conn.Status == models.ConnectionBlocked && conn.RequesterID != userID {
		return apperr.Authorization("You are not part of this connection")
	}
	if err := a.db.Delete(&conn).Error; err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	return nil
}

// blockUser replaces whatever relationship exists with a block owned by the
// caller.
func (a *App) blockUser(ctx context.Context, userID, targetID uuid.UUID) error {
	if userID == targetID {
		return apperr.Conflict("You cannot block yourself")
	}
	if _, err := a.loadUser(targetID); err != nil {
		return err
	}

	return a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)",
			userID, targetID, targetID, userID,
		).Delete(&models.Connection{}).Error; err != nil {
			return fmt.Errorf("clear connection: %w", err)
		}
		block := models.Connection{
			RequesterID: userID,
			RecipientID: targetID,
			Status:      models.ConnectionBlocked,
		}
		if err := tx.Create(&block).Error; err != nil {
			return fmt.Errorf("create block: %w", err)
		}
		return nil
	})
}

// verifyConnection gates messaging on an accepted connection.
func (a *App) verifyConnection(userA, userB uuid.UUID) error {
	conn, err := a.connectionBetween(userA, userB)
	if err != nil {
		return err
	}
	if conn == nil || conn.Status != models.ConnectionAccepted {
		return apperr.Authorization("You can only message connected travelers")
	}
	return nil
}

type messagePage struct {
	Messages   []models.Message `json:"messages"`
	NextCursor string           `json:"nextCursor,omitempty"`
	HasMore    bool             `json:"hasMore"`
}

func (a *App) listMessages(ctx context.Context, userID, otherID uuid.UUID, p page) (*messagePage, error) {
	if err := a.verifyConnection(userID, otherID); err != nil {
		return nil, err
	}
	q := a.db.Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID, otherID, otherID, userID,
	).Order("created_at DESC").Limit(p.Limit + 1)
	if !p.Cursor.IsZero() {
		q = q.Where("created_at < ?", p.Cursor)
	}
	var rows []models.Message
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := &messagePage{Messages: rows}
	if len(rows) > p.Limit {
		out.Messages = rows[:p.Limit]
		out.HasMore = true
		out.NextCursor = out.Messages[p.Limit-1].CreatedAt.Format(time.RFC3339Nano)
	}
	if out.Messages == nil {
		out.Messages = []models.Message{}
	}
	return out, nil
}

func (a *App) sendMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*models.Message, error) {
	if err := a.verifyConnection(senderID, recipientID); err != nil {
		return nil, err
	}
	msg := models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
	}
	if err := a.db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	a.hub.EmitToUser(recipientID.String(), "message:new", msg)
	return &msg, nil
}

// markMessagesRead marks every unread message from the other user and tells
// them their messages were seen.
func (a *App) markMessagesRead(ctx context.Context, userID, otherID uuid.UUID) (int64, error) {
	res := a.db.Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", otherID, userID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return 0, fmt.Errorf("mark messages read: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		a.hub.EmitToUser(otherID.String(), "message:read", map[string]string{
			"readerId": userID.String(),
		})
	}
	return res.RowsAffected, nil
}

type publicProfile struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"displayName"`
	AvatarURL        string     `json:"avatarUrl,omitempty"`
	LastSeenAt       *time.Time `json:"lastSeenAt,omitempty"`
	ConnectionStatus string     `json:"connectionStatus"`
}

// getPublicProfile returns another user's public view together with the
// relationship the viewer has with them. Blocked users are indistinguishable
// from missing ones.
func (a *App) getPublicProfile(ctx context.Context, viewerID, userID uuid.UUID) (*publicProfile, error) {
	user, err := a.loadUser(userID)
	if err != nil {
		return nil, err
	}

	status := "none"
	if viewerID != userID {
		conn, err := a.connectionBetween(viewerID, userID)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			if conn.Status == models.ConnectionBlocked {
				return nil, apperr.NotFound("User")
			}
			status = conn.Status
		}
	} else {
		status = "self"
	}

	return &publicProfile{
		ID:               user.ID.String(),
		DisplayName:      user.DisplayName,
		AvatarURL:        user.AvatarURL,
		LastSeenAt:       user.LastSeenAt,
		ConnectionStatus: status,
	}, nil
}

// acceptedContactIDs returns the ids of everyone the user is connected to.
// The realtime layer uses it to authorize contacts-room subscriptions.
func (a *App) acceptedContactIDs(userID uuid.UUID) (map[string]bool, error) {
	var conns []models.Connection
	if err := a.db.Where(
		"status = ? AND (requester_id = ? OR recipient_id = ?)",
		models.ConnectionAccepted, userID, userID,
	).Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	ids := make(map[string]bool, len(conns))
	for _, conn := range conns {
		if conn.RequesterID == userID {
			ids[conn.RecipientID.String()] = true
		} else {
			ids[conn.RequesterID.String()] = true
		}
	}
	return ids, nil
}
