package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"telehealth/internal/apperr"
	"telehealth/internal/models"
)

type ScheduleInput struct {
	PatientID    uint    `json:"patientId" validate:"required"`
	DoctorID     uint    `json:"doctorId" validate:"required,nefield=PatientID"`
	ScheduledFor string  `json:"scheduledFor" validate:"required"`
	Notes        *string `json:"notes"`
}

type ConsultationService struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewConsultationService(db *gorm.DB) *ConsultationService {
	return &ConsultationService{db: db, validate: newValidator()}
}

// zone-less layouts are read as UTC
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseScheduledFor accepts RFC 3339 timestamps, and zone-less ones as UTC.
func ParseScheduledFor(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("scheduledFor %q is not a valid timestamp", raw)
}

// Schedule creates a pending consultation between a patient and a doctor.
func (s *ConsultationService) Schedule(ctx context.Context, in ScheduleInput) (*models.Consultation, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	when, err := ParseScheduledFor(in.ScheduledFor)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var users []models.User
	if err := db.Where("id IN ?", []uint{in.PatientID, in.DoctorID}).Find(&users).Error; err != nil {
		return nil, apperr.Persistence(err, "database error")
	}
	roles := make(map[uint]models.Role, len(users))
	for _, u := range users {
		roles[u.ID] = u.Role
	}
	if roles[in.PatientID] != models.RolePatient {
		return nil, apperr.Validation("patientId %d does not reference a patient", in.PatientID)
	}
	if roles[in.DoctorID] != models.RoleDoctor {
		return nil, apperr.Validation("doctorId %d does not reference a doctor", in.DoctorID)
	}

	c := &models.Consultation{
		PatientID:    in.PatientID,
		DoctorID:     in.DoctorID,
		ScheduledFor: when,
		Status:       models.StatusPending,
		Notes:        in.Notes,
	}
	if err := db.Create(c).Error; err != nil {
		return nil, apperr.Persistence(err, "could not create consultation")
	}

	logrus.WithFields(logrus.Fields{
		"consultation_id": c.ID,
		"patient_id":      c.PatientID,
		"doctor_id":       c.DoctorID,
		"scheduled_for":   c.ScheduledFor.Format(time.RFC3339),
	}).Info("Consultation scheduled.")
	return c, nil
}

// ListForUser returns the caller's consultations ordered by scheduledFor.
func (s *ConsultationService) ListForUser(ctx context.Context, userID uint, role models.Role) ([]models.Consultation, error) {
	var column string
	switch role {
	case models.RolePatient:
		column = "patient_id"
	case models.RoleDoctor:
		column = "doctor_id"
	default:
		return nil, apperr.Validation("unknown role %q", role)
	}

	out := []models.Consultation{}
	err := s.db.WithContext(ctx).
		Where(column+" = ?", userID).
		Order("scheduled_for ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Persistence(err, "database error")
	}
	return out, nil
}

func (s *ConsultationService) Get(ctx context.Context, id uint) (*models.Consultation, error) {
	var c models.Consultation
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("consultation %d not found", id)
	}
	if err != nil {
		return nil, apperr.Persistence(err, "database error")
	}
	return &c, nil
}

// GetForParticipant is Get restricted to the consultation's patient or doctor.
// Outsiders get NotFound so existence is not revealed.
func (s *ConsultationService) GetForParticipant(ctx context.Context, id, userID uint) (*models.Consultation, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, apperr.NotFound("consultation %d not found", id)
	}
	return c, nil
}

// UpdateStatus moves a consultation along a legal edge of the state machine.
func (s *ConsultationService) UpdateStatus(ctx context.Context, id uint, newStatus string) (*models.Consultation, error) {
	to, ok := models.ParseConsultationStatus(strings.ToLower(strings.TrimSpace(newStatus)))
	if !ok {
		return nil, apperr.Validation("status must be one of: pending, confirmed, completed, cancelled")
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := models.CheckTransition(c.Status, to); err != nil {
		return nil, apperr.InvalidTransition(err)
	}

	now := s.db.NowFunc()
	// the status guard means a concurrent update makes this a no-op
	res := s.db.WithContext(ctx).Model(&models.Consultation{}).
		Where("id = ? AND status = ?", id, c.Status).
		Updates(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return nil, apperr.Persistence(res.Error, "could not update consultation")
	}
	if res.RowsAffected == 0 {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.InvalidTransition(&models.TransitionError{From: cur.Status, To: to})
	}

	logrus.WithFields(logrus.Fields{
		"consultation_id": id,
		"from":            c.Status,
		"to":              to,
	}).Info("Consultation status updated.")
	c.Status = to
	c.UpdatedAt = now
	return c, nil
}
