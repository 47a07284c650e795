package models

import (
	"time"

	"gorm.io/datatypes"
)

// Transcript keeps a provider transcription tied to a consultation.
type Transcript struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time      `json:"createdAt"`
	ConsultationID uint           `gorm:"not null;index" json:"consultationId"`
	RequestedBy    uint           `gorm:"not null" json:"requestedBy"`
	Text           string         `gorm:"type:text" json:"text"`
	Raw            datatypes.JSON `json:"raw"`

	Consultation *Consultation `gorm:"foreignKey:ConsultationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// All lists every model, in migration order.
func All() []any {
	return []any{&User{}, &Consultation{}, &Chat{}, &Payment{}, &Transcript{}}
}
