package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/apperr"
	"wayfarer/pkg/cache"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type profileUpdate struct {
	DisplayName *string
	AvatarURL   *string
}

// updateProfile applies the provided fields and invalidates the cached view.
func (a *App) updateProfile(ctx context.Context, userID uuid.UUID, upd profileUpdate) (*UserProfile, error) {
	var user models.User
	if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, apperr.NotFound("User")
	}

	fields := map[string]interface{}{}
	if upd.DisplayName != nil {
		fields["display_name"] = *upd.DisplayName
	}
	if upd.AvatarURL != nil {
		fields["avatar_url"] = *upd.AvatarURL
	}
	if len(fields) > 0 {
		if err := a.db.Model(&user).Updates(fields).Error; err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}

	_ = a.cache.Delete(ctx, cache.UserKey(userID.String()))
	profile := userProfile(&user)
	return &profile, nil
}

// deleteAccount removes the user and everything hanging off them. Rows that
// reference the user from both sides (connections, messages) are cleared
// explicitly since gorm only cascades through declared associations.
func (a *App) deleteAccount(ctx context.Context, userID uuid.UUID) error {
	err := a.db.Transaction(func(tx *gorm.DB) error {
		id := userID.String()
		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("requester_id = ? OR recipient_id = ?", id, id).Delete(&models.Connection{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sender_id = ? OR recipient_id = ?", id, id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.TrustedContact{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Checkin{}).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM itinerary_items WHERE itinerary_id IN (SELECT id FROM itineraries WHERE user_id = ?)`, id).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Itinerary{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.User{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	_ = a.cache.Delete(ctx,
		cache.UserKey(userID.String()),
		cache.SessionKey(userID.String()))
	_ = a.cache.DeletePattern(ctx, cache.UserItinerariesKey(userID.String())+"*")
	return nil
}

// updateLocation writes the PostGIS point directly; the geography column is
// not part of the gorm model.
func (a *App) updateLocation(ctx context.Context, userID uuid.UUID, lat, lng float64) error {
	err := a.db.Exec(
		`UPDATE users
		 SET current_location = ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography,
		     last_seen_at = ?
		 WHERE id = ?`,
		lng, lat, time.Now(), userID,
	).Error
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return nil
}

func (a *App) updateVisibility(ctx context.Context, userID uuid.UUID, mode string) error {
	if mode != models.VisibilityVisible && mode != models.VisibilityHidden {
		return apperr.Validation("visibilityMode must be visible or hidden")
	}
	if err := a.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("visibility_mode", mode).Error; err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}
	_ = a.cache.Delete(ctx, cache.UserKey(userID.String()))
	return nil
}

func (a *App) listTrustedContacts(userID uuid.UUID) ([]models.TrustedContact, error) {
	var contacts []models.TrustedContact
	if err := a.db.Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("list trusted contacts: %w", err)
	}
	return contacts, nil
}

func (a *App) addTrustedContact(userID uuid.UUID, contact *models.TrustedContact) error {
	contact.UserID = userID
	if err := a.db.Create(contact).Error; err != nil {
		return fmt.Errorf("add trusted contact: %w", err)
	}
	return nil
}

func (a *App) removeTrustedContact(userID, contactID uuid.UUID) error {
	res := a.db.Where("id = ? AND user_id = ?", contactID, userID).Delete(&models.TrustedContact{})
	if res.Error != nil {
		return fmt.Errorf("remove trusted contact: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Trusted contact")
	}
	return nil
}

// loadUser fetches a user row or a typed not-found error.
func (a *App) loadUser(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}
