package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"telehealth/internal/middleware"
	"telehealth/internal/realtime"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ChatSocketController struct {
	jwt *middleware.JWT
	hub *realtime.Hub
}

func NewChatSocketController(jwt *middleware.JWT, hub *realtime.Hub) *ChatSocketController {
	return &ChatSocketController{jwt: jwt, hub: hub}
}

// HandleChatWebSocket authenticates the caller from the token query
// parameter or an Authorization header, then hands the upgraded connection
// to the hub.
// @Router /ws/chat [get]
// @Param token query string false "JWT token for authentication"
func (wc *ChatSocketController) HandleChatWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if tokenString == "" {
		logrus.Warn("WebSocket connection attempt: Missing token.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
		return
	}
	claims, err := wc.jwt.ValidateToken(tokenString)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket connection attempt with invalid token.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	wc.hub.Serve(c.Request.Context(), conn, claims.ID)
}
