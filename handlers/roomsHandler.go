package handlers

import (
	"net/http"

	"shellduel/duel"

	"github.com/gin-gonic/gin"
)

// ListRooms is the HTTP view of the lobby: joinable rooms only. The live feed
// of the same list goes over the websocket.
func ListRooms(hub *duel.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": hub.Summaries()})
	}
}
