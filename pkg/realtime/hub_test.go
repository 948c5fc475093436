package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "user:u1", UserRoom("u1"))
	assert.Equal(t, "contacts:u1", ContactsRoom("u1"))
	assert.Equal(t, "itinerary:i1", ItineraryRoom("i1"))
	assert.Equal(t, "area:12_34", AreaRoom("12_34"))
}

func TestJoinLeave(t *testing.T) {
	h := NewHub()
	c := &Client{UserID: "u1", hub: h, send: make(chan []byte, 1), rooms: map[string]struct{}{}}

	h.Join(c, "area:1_1")
	h.Join(c, "area:1_1") // idempotent
	assert.Len(t, h.rooms["area:1_1"], 1)

	h.Leave(c, "area:1_1")
	assert.Empty(t, h.rooms["area:1_1"])
}

func TestEmitSkipsSlowConsumers(t *testing.T) {
	h := NewHub()
	c := &Client{UserID: "u1", hub: h, send: make(chan []byte, 1), rooms: map[string]struct{}{}}
	h.Join(c, "area:2_2")

	h.Emit("area:2_2", "ping", nil)
	h.Emit("area:2_2", "ping", nil) // buffer full, frame dropped instead of blocking

	assert.Len(t, c.send, 1)
}
