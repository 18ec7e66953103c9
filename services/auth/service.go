// Package auth authenticates order-desk users and validates their bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/repositories"
	"github.com/upb/order-desk/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the email is unknown so that a miss
// costs the same as a wrong password
const dummyHash = "$2a$10$C615A0mfUEFBupj9qcqhiuBEyf60EqrsakB90CozUoSON8d2Dc1uS"

// LoginResult is returned by a successful Login
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// Service validates bearer tokens for the request gate and logs users in
type Service struct {
	tokens *TokenService
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewService creates a new auth service
func NewService(tokens *TokenService, users repositories.UserRepository, logger *zap.Logger) *Service {
	return &Service{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// ValidateToken reports whether the token is authentic and unexpired.
// Rejected tokens return false with a nil error.
func (s *Service) ValidateToken(ctx context.Context, token string) (bool, error) {
	if _, err := s.tokens.Parse(token); err != nil {
		s.logger.Debug("token rejected", zap.String("reason", rejectionReason(err)))
		return false, nil
	}
	return true, nil
}

// GetUserIDFromToken returns the subject claim of the token
func (s *Service) GetUserIDFromToken(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", services.WrapError(services.ErrorTypeUnauthorized, "invalid authentication token", err)
	}
	return claims.Subject, nil
}

// Login checks the email and password and issues a bearer token
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, services.WrapInternal("failed to look up user", err)
	}

	hash := dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); cmpErr != nil || user == nil {
		s.logger.Info("login rejected", zap.String("email", models.NormalizeEmail(email)))
		return nil, services.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID.String()))
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID.String(),
	}, nil
}

// HashPassword returns a bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "wrong_issuer"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}
