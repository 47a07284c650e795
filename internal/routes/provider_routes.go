package routes

import (
	"github.com/gin-gonic/gin"
)

func ProviderRoutes(api *gin.RouterGroup, d Deps) {
	daily := api.Group("/daily")
	daily.Use(d.JWT.RequireAuth())
	{
		daily.POST("/create-room", d.Daily.CreateRoom)
		daily.POST("/get-token", d.Daily.GetToken)
	}

	api.POST("/transcription", d.JWT.RequireAuth(), d.Transcription.Transcribe)
}
