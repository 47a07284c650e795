package models

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment belongs to exactly one consultation. Only the schema exists for now.
type Payment struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	ConsultationID uint          `gorm:"not null;uniqueIndex" json:"consultationId"`
	Amount         float64       `gorm:"not null" json:"amount"`
	Status         PaymentStatus `gorm:"size:16;not null;default:pending" json:"status"`
	TransactionID  string        `gorm:"size:128" json:"transactionId"`
}
