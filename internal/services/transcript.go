package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"telehealth/internal/apperr"
	"telehealth/internal/models"
)

type TranscriptService struct {
	db *gorm.DB
}

func NewTranscriptService(db *gorm.DB) *TranscriptService {
	return &TranscriptService{db: db}
}

// Save stores a provider response against a consultation. JSON bodies keep
// their "text" field as Text; anything else is stored as plain text.
func (s *TranscriptService) Save(ctx context.Context, consultationID, requestedBy uint, body []byte) (*models.Transcript, error) {
	t := &models.Transcript{ConsultationID: consultationID, RequestedBy: requestedBy}
	var parsed struct {
		Text string `json:"text"`
	}
	if json.Valid(body) && json.Unmarshal(body, &parsed) == nil {
		t.Text = parsed.Text
		t.Raw = datatypes.JSON(body)
	} else {
		t.Text = string(body)
		raw, _ := json.Marshal(map[string]string{"text": t.Text})
		t.Raw = datatypes.JSON(raw)
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, apperr.Persistence(err, "could not save transcript")
	}
	return t, nil
}
