package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type user struct {
	ID           string
	Email        string
	PasswordHash []byte
}

// Directly resets a user's password against the database. For operators; the
// API's forgot-password flow is the user-facing path.
func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "new plaintext password (min 8 chars)")
	flag.Parse()
	if *email == "" || *password == "" {
		log.Fatal("--email and --password are required")
	}
	if len(*password) < 8 {
		log.Fatal("password too short (min 8)")
	}

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	var u user
	if err := db.Table("users").Where("email = ?", *email).First(&u).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*password), 12)
	if err != nil {
		log.Fatalf("bcrypt: %v", err)
	}
	if err := db.Table("users").Where("id = ?", u.ID).Update("password_hash", hash).Error; err != nil {
		log.Fatalf("update failed: %v", err)
	}
	// stale sessions should not survive a manual reset
	if err := db.Exec(`UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = ? AND revoked_at IS NULL`, u.ID).Error; err != nil {
		log.Printf("warning: could not revoke refresh tokens: %v", err)
	}
	fmt.Printf("Password reset for %s\n", u.Email)
}
