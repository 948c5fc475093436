package main

import (
	"strings"
	"testing"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/cache"

	"github.com/stretchr/testify/assert"
)

func makeItineraries(n int) []models.Itinerary {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Itinerary, n)
	for i := range out {
		out[i].Title = "trip"
		out[i].CreatedAt = base.Add(-time.Duration(i) * time.Hour)
	}
	return out
}

func TestPaginateLastPage(t *testing.T) {
	got := paginate(makeItineraries(3), 5)
	assert.Len(t, got.Itineraries, 3)
	assert.False(t, got.HasMore)
	assert.Empty(t, got.NextCursor)
}

func TestPaginateFullPage(t *testing.T) {
	rows := makeItineraries(6)
	got := paginate(rows, 5)
	assert.Len(t, got.Itineraries, 5)
	assert.True(t, got.HasMore)
	// cursor points at the last returned row, not the peeked one
	assert.Equal(t, rows[4].CreatedAt.Format(time.RFC3339Nano), got.NextCursor)
}

// Every cached page must share the user's list prefix, or the pattern
// delete on mutation would leave stale pages behind.
func TestUserItinerariesPageKeysShareInvalidationPrefix(t *testing.T) {
	prefix := cache.UserItinerariesKey("u1")

	first := userItinerariesPageKey("u1", page{Limit: 20})
	cursored := userItinerariesPageKey("u1", page{Limit: 20, Cursor: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)})
	smaller := userItinerariesPageKey("u1", page{Limit: 5})

	for _, key := range []string{first, cursored, smaller} {
		assert.True(t, strings.HasPrefix(key, prefix+":"), key)
	}
	assert.NotEqual(t, first, cursored)
	assert.NotEqual(t, first, smaller)

	// other users' pages must not match the pattern
	assert.False(t, strings.HasPrefix(userItinerariesPageKey("u2", page{Limit: 20}), prefix))
}

func TestPaginateEmpty(t *testing.T) {
	got := paginate(nil, 5)
	assert.NotNil(t, got.Itineraries)
	assert.Empty(t, got.Itineraries)
	assert.False(t, got.HasMore)
}
