package models

import "time"

// Chat is one append-only message inside a consultation.
type Chat struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConsultationID uint      `gorm:"not null;index" json:"consultationId"`
	SenderID       uint      `gorm:"not null;index" json:"senderId"`
	Message        string    `gorm:"type:text;not null" json:"message"`
	SentAt         time.Time `gorm:"not null;index" json:"sentAt"`

	Sender *User `gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}
