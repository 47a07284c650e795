package models

import (
	"errors"
	"fmt"
	"time"
)

// ConsultationStatus is the lifecycle state of a consultation.
type ConsultationStatus string

const (
	StatusPending   ConsultationStatus = "pending"
	StatusConfirmed ConsultationStatus = "confirmed"
	StatusCompleted ConsultationStatus = "completed"
	StatusCancelled ConsultationStatus = "cancelled"
)

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError describes an illegal edge in the consultation state machine.
type TransitionError struct {
	From ConsultationStatus
	To   ConsultationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move consultation from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ParseConsultationStatus converts raw input into a known status.
func ParseConsultationStatus(raw string) (ConsultationStatus, bool) {
	s := ConsultationStatus(raw)
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return s, true
	}
	return "", false
}

// CheckTransition returns a *TransitionError unless from -> to is a legal edge:
// pending -> confirmed, confirmed -> completed, and any non-cancelled state -> cancelled.
func CheckTransition(from, to ConsultationStatus) error {
	switch {
	case from == StatusPending && to == StatusConfirmed,
		from == StatusConfirmed && to == StatusCompleted,
		from != StatusCancelled && to == StatusCancelled:
		return nil
	}
	return &TransitionError{From: from, To: to}
}

type Consultation struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	PatientID    uint               `gorm:"not null;index" json:"patientId"`
	DoctorID     uint               `gorm:"not null;index" json:"doctorId"`
	ScheduledFor time.Time          `gorm:"not null;index" json:"scheduledFor"`
	Status       ConsultationStatus `gorm:"size:16;not null;default:pending" json:"status"`
	Notes        *string            `gorm:"type:text" json:"notes,omitempty"`

	Patient *User    `gorm:"foreignKey:PatientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Doctor  *User    `gorm:"foreignKey:DoctorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Chats   []Chat   `gorm:"foreignKey:ConsultationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Payment *Payment `gorm:"foreignKey:ConsultationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// HasParticipant reports whether userID is the patient or the doctor.
func (c *Consultation) HasParticipant(userID uint) bool {
	return userID != 0 && (c.PatientID == userID || c.DoctorID == userID)
}
