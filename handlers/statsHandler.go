package handlers

import (
	"net/http"

	"shellduel/middlewares"
	"shellduel/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MyStats returns the caller's lifetime record. Requires AuthRequired.
func MyStats(db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middlewares.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
			return
		}
		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			logger.Error("Failed to load user", zap.Uint("userID", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"userId": user.ID,
			"name":   user.Name,
			"wins":   user.Wins,
			"losses": user.Losses,
		})
	}
}
