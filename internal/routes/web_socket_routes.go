package routes

import (
	"github.com/gin-gonic/gin"
)

func WebSocketRoutes(r *gin.Engine, d Deps) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/chat", d.ChatSocket.HandleChatWebSocket)
	}
}
