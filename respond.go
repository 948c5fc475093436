package main

import (
	"log"
	"net/http"

	"wayfarer/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// All responses share the {success, data?, error?} envelope.

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

// fail maps an error onto the envelope. Unknown errors become a generic 500;
// the underlying detail is only exposed in development mode.
func (a *App) fail(c *gin.Context, err error) {
	appErr := apperr.From(err)
	if appErr.Status == http.StatusInternalServerError {
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		if a.cfg.Env == "development" {
			c.JSON(appErr.Status, gin.H{"success": false, "error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"detail":  err.Error(),
			}})
			return
		}
	}
	c.JSON(appErr.Status, gin.H{"success": false, "error": gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}})
}

// failValidation reports a request-binding failure.
func failValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{
		"code":    apperr.CodeValidation,
		"message": err.Error(),
	}})
}
