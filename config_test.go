package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvDuration(t *testing.T) {
	t.Setenv("TTL_A", "7d")
	t.Setenv("TTL_B", "90m")
	t.Setenv("TTL_C", "garbage")
	t.Setenv("TTL_D", "")

	assert.Equal(t, 7*24*time.Hour, envDuration("TTL_A", time.Minute))
	assert.Equal(t, 90*time.Minute, envDuration("TTL_B", time.Minute))
	assert.Equal(t, time.Minute, envDuration("TTL_C", time.Minute))
	assert.Equal(t, time.Minute, envDuration("TTL_D", time.Minute))
}

func TestParseCORSOrigins(t *testing.T) {
	defaults := parseCORSOrigins("")
	assert.Contains(t, defaults, "http://localhost:3000")

	got := parseCORSOrigins("https://app.example.com, https://staging.example.com")
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, got)
}

func TestCoarseGeohash(t *testing.T) {
	assert.Equal(t, "-865_11521", coarseGeohash(-8.65, 115.21))
	assert.Equal(t, "0_0", coarseGeohash(0, 0))
	// points within the same ~1km cell share a hash
	assert.Equal(t, coarseGeohash(48.8561, 2.3522), coarseGeohash(48.8564, 2.3524))
}

func TestSafetyLevelFor(t *testing.T) {
	assert.Equal(t, "safe", safetyLevelFor(0.9))
	assert.Equal(t, "caution", safetyLevelFor(0.6))
	assert.Equal(t, "avoid", safetyLevelFor(0.2))
}
