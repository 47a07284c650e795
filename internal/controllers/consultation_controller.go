package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"telehealth/internal/apperr"
	"telehealth/internal/middleware"
	"telehealth/internal/services"
)

type ConsultationController struct {
	consultations *services.ConsultationService
}

func NewConsultationController(consultations *services.ConsultationService) *ConsultationController {
	return &ConsultationController{consultations: consultations}
}

// Schedule books a consultation for the calling patient.
// @Router /api/consultations/schedule [post]
func (cc *ConsultationController) Schedule(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	var input services.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if input.PatientID == 0 {
		input.PatientID = userID
	}
	if input.PatientID != userID {
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,
			"patient_id": input.PatientID,
		}).Warn("Patient attempted to schedule for another patient. Denying.")
		respondError(c, apperr.Forbidden("patients can only schedule their own consultations"))
		return
	}

	consultation, err := cc.consultations.Schedule(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, consultation)
}

// List returns the caller's consultations.
// @Router /api/consultations [get]
func (cc *ConsultationController) List(c *gin.Context) {
	userID, role := middleware.CurrentUser(c)
	list, err := cc.consultations.ListForUser(c.Request.Context(), userID, role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Router /api/consultations/{id} [get]
func (cc *ConsultationController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUser(c)
	consultation, err := cc.consultations.GetForParticipant(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, consultation)
}

// UpdateStatus moves a consultation to a new status.
// @Router /api/consultations/{id}/status [patch]
func (cc *ConsultationController) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	if _, err := cc.consultations.GetForParticipant(ctx, id, userID); err != nil {
		respondError(c, err)
		return
	}
	consultation, err := cc.consultations.UpdateStatus(ctx, id, body.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, consultation)
}
