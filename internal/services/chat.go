package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"telehealth/internal/apperr"
	"telehealth/internal/models"
)

// MaxMessageLength bounds a chat message in characters.
const MaxMessageLength = 4000

type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// Create persists a message and assigns its id and server-side sentAt.
func (s *ChatService) Create(ctx context.Context, consultationID, senderID uint, message string) (*models.Chat, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, apperr.Validation("message exceeds %d characters", MaxMessageLength)
	}

	chat := &models.Chat{
		ConsultationID: consultationID,
		SenderID:       senderID,
		Message:        message,
		SentAt:         s.db.NowFunc(),
	}
	if err := s.db.WithContext(ctx).Create(chat).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, apperr.NotFound("consultation %d not found", consultationID)
		}
		return nil, apperr.Persistence(err, "could not save message")
	}
	return chat, nil
}

// History returns a consultation's messages oldest first.
func (s *ChatService) History(ctx context.Context, consultationID uint) ([]models.Chat, error) {
	out := []models.Chat{}
	err := s.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Order("sent_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Persistence(err, "database error")
	}
	return out, nil
}
