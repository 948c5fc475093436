// Package realtime implements the WebSocket push channel: a hub of named
// rooms that services publish JSON events into. Rooms follow the
// user:<id> / contacts:<id> / itinerary:<id> / area:<geohash> naming scheme;
// authorization for joining a room is decided by the OnMessage handler wired
// in by the application, since it needs database access.
package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Inbound is a message sent by a connected client.
type Inbound struct {
	Action      string   `json:"action"`
	ContactIDs  []string `json:"contactIds,omitempty"`
	ItineraryID string   `json:"itineraryId,omitempty"`
	Geohash     string   `json:"geohash,omitempty"`
	Latitude    float64  `json:"latitude,omitempty"`
	Longitude   float64  `json:"longitude,omitempty"`
}

// Event is the JSON frame pushed to clients.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Client is one authenticated WebSocket connection.
type Client struct {
	UserID string

	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]struct{}
}

// Hub tracks connected clients and their room memberships.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	// OnMessage is invoked for every inbound client message. It must be set
	// before Serve is called.
	OnMessage func(c *Client, msg Inbound)
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Room name helpers.

func UserRoom(userID string) string { return "user:" + userID }

func ContactsRoom(userID string) string { return "contacts:" + userID }

func ItineraryRoom(id string) string { return "itinerary:" + id }

func AreaRoom(geohash string) string { return "area:" + geohash }

// Serve registers a freshly upgraded connection and starts its read/write
// pumps. Every client automatically joins its personal room for direct
// events.
func (h *Hub) Serve(conn *websocket.Conn, userID string) *Client {
	c := &Client{
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 32),
		rooms:  make(map[string]struct{}),
	}
	h.Join(c, UserRoom(userID))
	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
}

// Emit broadcasts an event to every client in a room. The sender, if a
// member, receives it too; use EmitExcept to skip it.
func (h *Hub) Emit(room, event string, data interface{}) {
	h.emit(room, event, data, nil)
}

// EmitExcept broadcasts to a room, skipping one client.
func (h *Hub) EmitExcept(room, event string, data interface{}, skip *Client) {
	h.emit(room, event, data, skip)
}

func (h *Hub) emit(room, event string, data interface{}, skip *Client) {
	frame, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		log.Printf("realtime: marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c == skip {
			continue
		}
		select {
		case c.send <- frame:
		default:
			// slow consumer; drop the frame rather than block the hub
		}
	}
}

// EmitToUser pushes an event to a user's personal room.
func (h *Hub) EmitToUser(userID, event string, data interface{}) {
	h.Emit(UserRoom(userID), event, data)
}

// EmitToContacts pushes an event to everyone watching userID's contact room.
func (h *Hub) EmitToContacts(userID, event string, data interface{}) {
	h.Emit(ContactsRoom(userID), event, data)
}

// EmitToArea pushes an event to everyone subscribed to a geohash area.
func (h *Hub) EmitToArea(geohash, event string, data interface{}) {
	h.Emit(AreaRoom(geohash), event, data)
}

// Send pushes an event to this client only.
func (c *Client) Send(event string, data interface{}) {
	frame, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// SendError reports a client-level failure such as a denied room join.
func (c *Client) SendError(code, message string) {
	c.Send("error", map[string]string{"code": code, "message": message})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error for user %s: %v", c.UserID, err)
			}
			return
		}
		var msg Inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendError("BAD_MESSAGE", "malformed message")
			continue
		}
		if c.hub.OnMessage != nil {
			c.hub.OnMessage(c, msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
