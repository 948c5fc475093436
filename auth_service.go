package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/apperr"
	"wayfarer/pkg/cache"
	"wayfarer/pkg/tokens"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// bcrypt work factor for password hashing.
const passwordCost = 12

const (
	userCacheTTL    = 5 * time.Minute
	sessionCacheTTL = 24 * time.Hour
	resetTicketTTL  = time.Hour
)

// UserProfile is the public view of a user returned by auth endpoints.
type UserProfile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"displayName"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	VisibilityMode string    `json:"visibilityMode"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User         UserProfile `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// TokenPair is returned by refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// resetTicket is the cache-resident password-reset record. The cache TTL is
// its only expiry mechanism.
type resetTicket struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func userProfile(u *models.User) UserProfile {
	return UserProfile{
		ID:             u.ID.String(),
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		AvatarURL:      u.AvatarURL,
		VisibilityMode: u.VisibilityMode,
		CreatedAt:      u.CreatedAt,
	}
}

// registerUser creates an account and issues the first token pair.
func (a *App) registerUser(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing models.User
	if err := a.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, apperr.Conflict("An account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	user := models.User{
		Email:          email,
		PasswordHash:   hash,
		DisplayName:    displayName,
		VisibilityMode: models.VisibilityVisible,
	}
	if err := a.db.Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) { // race after the pre-check
			return nil, apperr.Conflict("An account with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	access, refresh, err := a.tokens.Pair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	if err := a.storeRefreshToken(user.ID, refresh); err != nil {
		return nil, err
	}

	return &AuthResult{User: userProfile(&user), AccessToken: access, RefreshToken: refresh}, nil
}

// loginUser authenticates by email and password. The error never reveals
// which of the two was wrong.
func (a *App) loginUser(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, apperr.Authentication("Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, apperr.Authentication("Invalid email or password")
	}

	now := time.Now()
	if err := a.db.Model(&user).Update("last_seen_at", now).Error; err != nil {
		return nil, fmt.Errorf("update last seen: %w", err)
	}

	access, refresh, err := a.tokens.Pair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	if err := a.storeRefreshToken(user.ID, refresh); err != nil {
		return nil, err
	}

	// Best-effort session marker; cache unavailability never fails login.
	_ = a.cache.Set(ctx, cache.SessionKey(user.ID.String()),
		map[string]time.Time{"loggedInAt": now}, sessionCacheTTL)

	return &AuthResult{User: userProfile(&user), AccessToken: access, RefreshToken: refresh}, nil
}

// storeRefreshToken persists the hash of a freshly issued refresh token.
func (a *App) storeRefreshToken(userID uuid.UUID, rawToken string) error {
	row := models.RefreshToken{
		UserID:    userID,
		TokenHash: tokens.Hash(rawToken),
		ExpiresAt: time.Now().Add(a.tokens.RefreshTTL()),
	}
	if err := a.db.Create(&row).Error; err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// rotateRefreshToken redeems a refresh token for a new pair. Each token is
// redeemable exactly once: the old ledger row is revoked by a conditional
// update in the same transaction that inserts its successor, so a concurrent
// redemption of the same token loses the race and fails.
func (a *App) rotateRefreshToken(ctx context.Context, rawToken string) (*TokenPair, error) {
	claims, err := a.tokens.Verify(rawToken)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return nil, apperr.Authentication("Refresh token expired")
		}
		return nil, apperr.Authentication("Invalid refresh token")
	}
	if claims.TokenType != tokens.TypeRefresh {
		return nil, apperr.Authentication("Invalid refresh token")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperr.Authentication("Invalid refresh token")
	}

	hash := tokens.Hash(rawToken)
	now := time.Now()

	var record models.RefreshToken
	if err := a.db.Where("token_hash = ?", hash).First(&record).Error; err != nil {
		return nil, apperr.Authentication("Invalid refresh token")
	}
	if record.IsRevoked() {
		return nil, apperr.Authentication("Refresh token revoked")
	}
	if record.IsExpired(now) {
		// lazy cleanup: an expired-but-found record is marked revoked
		if err := a.db.Model(&models.RefreshToken{}).
			Where("token_hash = ? AND revoked_at IS NULL", hash).
			Update("revoked_at", now).Error; err != nil {
			log.Printf("warning: could not revoke expired refresh token: %v", err)
		}
		return nil, apperr.Authentication("Refresh token expired")
	}

	var user models.User
	if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, apperr.Authentication("User not found")
	}

	access, refresh, err := a.tokens.Pair(userID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	newHash := tokens.Hash(refresh)

	err = a.db.Transaction(func(tx *gorm.DB) error {
		successor := models.RefreshToken{
			UserID:    userID,
			TokenHash: newHash,
			ExpiresAt: now.Add(a.tokens.RefreshTTL()),
		}
		if err := tx.Create(&successor).Error; err != nil {
			return fmt.Errorf("store rotated token: %w", err)
		}
		res := tx.Model(&models.RefreshToken{}).
			Where("token_hash = ? AND revoked_at IS NULL", hash).
			Updates(map[string]interface{}{"revoked_at": now, "replaced_by": newHash})
		if res.Error != nil {
			return fmt.Errorf("revoke rotated token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// someone else redeemed it between our read and this update
			return apperr.Authentication("Refresh token revoked")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// getUserByID serves the profile through the cache, falling back to the
// database and repopulating on a miss.
func (a *App) getUserByID(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	key := cache.UserKey(userID.String())

	var cached UserProfile
	if hit, err := a.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	var user models.User
	if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	profile := userProfile(&user)
	_ = a.cache.Set(ctx, key, profile, userCacheTTL)
	return &profile, nil
}

// logoutUser tears the whole session down: the cached marker goes away and
// every active refresh token the user holds is revoked, on every device.
func (a *App) logoutUser(ctx context.Context, userID uuid.UUID) error {
	_ = a.cache.Delete(ctx, cache.SessionKey(userID.String()))
	return a.revokeAllRefreshTokens(userID)
}

func (a *App) revokeAllRefreshTokens(userID uuid.UUID) error {
	err := a.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// forgotPassword issues a reset ticket. It succeeds whether or not the
// account exists, so responses cannot be used to enumerate emails.
func (a *App) forgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil
	}

	if !a.cache.Enabled() {
		log.Printf("password reset requested for %s but cache is unavailable; ticket not issued", email)
		return nil
	}

	token := uuid.NewString()
	ticket := resetTicket{UserID: user.ID.String(), Email: user.Email}
	if err := a.cache.Set(ctx, cache.PasswordResetKey(token), ticket, resetTicketTTL); err != nil {
		return fmt.Errorf("store reset ticket: %w", err)
	}

	// Delivery happens out-of-band. Outside production the token is logged
	// so the flow can be exercised end to end.
	if a.cfg.Env != "production" {
		log.Printf("password reset token for %s: %s", email, token)
	}
	return nil
}

// resetPassword consumes a reset ticket. The cache entry is the only gate:
// its TTL is the expiry mechanism, and deletion makes the ticket single-use.
func (a *App) resetPassword(ctx context.Context, token, newPassword string) error {
	key := cache.PasswordResetKey(token)

	var ticket resetTicket
	hit, err := a.cache.Get(ctx, key, &ticket)
	if err != nil || !hit {
		return apperr.Validation("Invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), passwordCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.db.Model(&models.User{}).
		Where("id = ?", ticket.UserID).
		Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	_ = a.cache.Delete(ctx, key)
	return nil
}

// changePassword verifies the current password, stores the new hash and
// revokes every refresh token, forcing re-authentication on all devices.
func (a *App) changePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	var user models.User
	if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return apperr.NotFound("User")
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(currentPassword)); err != nil {
		return apperr.Authentication("Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), passwordCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.db.Model(&user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	_ = a.cache.Delete(ctx, cache.UserKey(userID.String()))
	return a.revokeAllRefreshTokens(userID)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}
