package handlers

import (
	"net/http"
	"strings"

	"shellduel/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxNameLength = 24

type guestRequest struct {
	Name string `json:"name" binding:"required"`
}

// GuestLogin issues a guest identity: a user row plus a signed token the
// client passes on the websocket dial. No password, no account recovery.
func GuestLogin(db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req guestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" || len(name) > maxNameLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must be 1-24 characters"})
			return
		}

		token, userID, err := auth.GenerateToken(db, name)
		if err != nil {
			logger.Error("Failed to generate guest token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create guest"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "userId": userID, "name": name})
	}
}
