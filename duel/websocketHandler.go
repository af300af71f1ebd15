package duel

import (
	"net/http"

	"shellduel/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandleConnections upgrades an authenticated request to a websocket and
// starts the client's pumps. Identity comes from the guest token passed as a
// query parameter, since browsers cannot set headers on websocket dials.
func HandleConnections(c *gin.Context, hub *Hub, upgrader websocket.Upgrader, logger *zap.Logger) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}
	claims, err := auth.ParseToken(tokenString)
	if err != nil {
		logger.Info("websocket auth failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := newClient(conn, hub, claims.UserID, claims.Name, logger)
	hub.RegisterLobby(client)
	logger.Info("New client connected",
		zap.Uint("UserID", client.UserID), zap.String("name", client.Name))

	go client.writePump()
	go client.readPump()
}
