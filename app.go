package main

import (
	"wayfarer/pkg/cache"
	"wayfarer/pkg/realtime"
	"wayfarer/pkg/tokens"

	"gorm.io/gorm"
)

// App owns every dependency handlers need: the database, the cache, the
// token issuer and the realtime hub. It is constructed once in main and
// passed around explicitly; there is no package-level state.
type App struct {
	cfg    Config
	db     *gorm.DB
	cache  *cache.Cache
	tokens *tokens.Issuer
	hub    *realtime.Hub
}

func newApp(cfg Config, db *gorm.DB, c *cache.Cache, issuer *tokens.Issuer, hub *realtime.Hub) *App {
	a := &App{
		cfg:    cfg,
		db:     db,
		cache:  c,
		tokens: issuer,
		hub:    hub,
	}
	if hub != nil {
		hub.OnMessage = a.handleRealtimeMessage
	}
	return a
}
