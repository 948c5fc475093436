package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"wayfarer/models"
	"wayfarer/pkg/apperr"
	"wayfarer/pkg/cache"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
)

const (
	maxAvatarBytes = 5 * 1024 * 1024
	avatarThumbPx  = 256
)

var avatarExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// uploadAvatarHandler accepts a multipart image, stores the original, writes
// a square thumbnail next to it and points the profile's avatarUrl at the
// thumbnail.
func (a *App) uploadAvatarHandler(c *gin.Context) {
	userID := currentUserID(c)

	file, err := c.FormFile("file")
	if err != nil {
		a.fail(c, apperr.Validation("file is required"))
		return
	}
	if file.Size > maxAvatarBytes {
		a.fail(c, apperr.Validation("file too large (max 5MB)"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !avatarExts[ext] {
		a.fail(c, apperr.Validation("unsupported image type"))
		return
	}

	dir := filepath.Join(a.cfg.UploadBase, "avatars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.fail(c, fmt.Errorf("create upload dir: %w", err))
		return
	}

	origPath := filepath.Join(dir, userID.String()+ext)
	if err := c.SaveUploadedFile(file, origPath); err != nil {
		a.fail(c, fmt.Errorf("save upload: %w", err))
		return
	}

	img, err := imaging.Open(origPath, imaging.AutoOrientation(true))
	if err != nil {
		_ = os.Remove(origPath)
		a.fail(c, apperr.Validation("file is not a valid image"))
		return
	}
	thumb := imaging.Fill(img, avatarThumbPx, avatarThumbPx, imaging.Center, imaging.Lanczos)
	thumbPath := filepath.Join(dir, userID.String()+"_thumb.jpg")
	if err := imaging.Save(thumb, thumbPath, imaging.JPEGQuality(85)); err != nil {
		a.fail(c, fmt.Errorf("save thumbnail: %w", err))
		return
	}

	avatarURL := "/uploads/avatars/" + filepath.Base(thumbPath)
	if err := a.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("avatar_url", avatarURL).Error; err != nil {
		a.fail(c, fmt.Errorf("update avatar: %w", err))
		return
	}
	_ = a.cache.Delete(c.Request.Context(), cache.UserKey(userID.String()))

	respondData(c, http.StatusOK, gin.H{"avatarUrl": avatarURL})
}
