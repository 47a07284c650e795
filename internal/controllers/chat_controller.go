package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telehealth/internal/middleware"
	"telehealth/internal/services"
)

type ChatController struct {
	consultations *services.ConsultationService
	chats         *services.ChatService
}

func NewChatController(consultations *services.ConsultationService, chats *services.ChatService) *ChatController {
	return &ChatController{consultations: consultations, chats: chats}
}

// History returns a consultation's messages, oldest first.
// @Router /api/chats/{consultationId} [get]
func (cc *ChatController) History(c *gin.Context) {
	id, ok := parseID(c, "consultationId")
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	if _, err := cc.consultations.GetForParticipant(ctx, id, userID); err != nil {
		respondError(c, err)
		return
	}
	messages, err := cc.chats.History(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}
