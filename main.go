package main

import (
	"log"
	"os"

	"wayfarer/pkg/cache"
	"wayfarer/pkg/realtime"
	"wayfarer/pkg/tokens"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := loadConfig()

	// "migrate" runs the schema migration and exits, regardless of the
	// DB_AUTO_MIGRATE setting.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		cfg.DBAutoMigrate = false
		db, err := openDB(cfg)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		migrateDB(db)
		log.Println("migration complete")
		return
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	var c *cache.Cache
	if cfg.RedisURL != "" {
		c, err = cache.New(cfg.RedisURL)
		if err != nil {
			log.Printf("redis unavailable, continuing without cache: %v", err)
			c = cache.Disabled()
		}
	} else {
		log.Println("REDIS_URL not set, continuing without cache")
		c = cache.Disabled()
	}

	issuer := tokens.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	hub := realtime.NewHub()
	app := newApp(cfg, db, c, issuer, hub)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	app.setupRoutes(r)

	log.Printf("listening on :%s (env=%s)", cfg.Port, cfg.Env)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
