package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"telehealth/internal/apperr"
	"telehealth/internal/models"
)

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	GenerateToken(userID uint, role models.Role) (string, error)
}

type RegisterInput struct {
	Username string      `json:"username" validate:"required,min=3,max=64"`
	Password string      `json:"password" validate:"required,password"`
	Role     models.Role `json:"role" validate:"required,oneof=patient doctor"`
}

type AuthService struct {
	db       *gorm.DB
	tokens   TokenIssuer
	validate *validator.Validate
	hashCost int
}

func NewAuthService(db *gorm.DB, tokens TokenIssuer) *AuthService {
	return &AuthService{db: db, tokens: tokens, validate: newValidator(), hashCost: bcrypt.DefaultCost}
}

// paddingHash is compared against when the username is unknown so that both
// login failure paths cost one bcrypt comparison.
var paddingHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("telehealth-login-padding"), bcrypt.DefaultCost)
	return h
})

// Register creates a user and returns it. The stored password is a bcrypt hash.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Role = models.Role(strings.ToLower(strings.TrimSpace(string(in.Role))))
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", in.Username).Count(&count).Error; err != nil {
		return nil, apperr.Persistence(err, "database error")
	}
	if count > 0 {
		return nil, apperr.Validation("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, apperr.Persistence(err, "could not hash password")
	}
	user := &models.User{Username: in.Username, Password: string(hash), Role: in.Role}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("username already taken")
		}
		return nil, apperr.Persistence(err, "could not create user")
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered.")
	return user, nil
}

// Login verifies credentials and returns a signed token. Unknown users and
// wrong passwords fail with the same apperr.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", apperr.Validation("username and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		_ = bcrypt.CompareHashAndPassword(paddingHash(), []byte(password))
		return "", apperr.ErrInvalidCredentials
	case err != nil:
		return "", apperr.Persistence(err, "database error")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", apperr.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", &apperr.Error{Kind: apperr.KindInternal, Message: "could not generate token", Err: err}
	}
	return token, nil
}
