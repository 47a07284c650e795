package routes

import (
	"github.com/gin-gonic/gin"

	"telehealth/internal/models"
)

func ConsultationRoutes(api *gin.RouterGroup, d Deps) {
	consultations := api.Group("/consultations")
	{
		consultations.POST("/schedule", d.JWT.RequireAuthWithRole(models.RolePatient), d.Consultations.Schedule)
		consultations.GET("", d.JWT.RequireAuth(), d.Consultations.List)
		consultations.GET("/:id", d.JWT.RequireAuth(), d.Consultations.Get)
		consultations.PATCH("/:id/status", d.JWT.RequireAuth(), d.Consultations.UpdateStatus)
	}
}

func ChatRoutes(api *gin.RouterGroup, d Deps) {
	chats := api.Group("/chats")
	chats.Use(d.JWT.RequireAuth())
	{
		chats.GET("/:consultationId", d.Chats.History)
	}
}
