package auth

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/codescan/internal/application"
	"github.com/bryanwahyu/codescan/internal/domain/apperr"
	"github.com/bryanwahyu/codescan/internal/domain/users"
)

const minPasswordLen = 6

// Service implements register / login / validate.
type Service struct {
	Users  users.Repository
	Hasher users.PasswordHasher
	Tokens users.TokenIssuer
	Clock  application.Clock
	Log    *zap.Logger
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. An email that is already registered is a conflict.
func (s *Service) Register(ctx context.Context, email, password string) (*users.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("email is not valid")
	}
	if len(password) < minPasswordLen {
		return nil, apperr.Validation("password must be at least 6 characters")
	}

	existing, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return nil, apperr.Persistence("hash password", err)
	}
	u := &users.User{
		ID:           users.UserID(uuid.NewString()),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger().Info("user registered", zap.String("user_id", string(u.ID)))
	return u, nil
}

// Login returns a bearer token. Unknown email and wrong password fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", apperr.Validation("email and password are required")
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil || !s.Hasher.Verify(password, u.PasswordHash) {
		return "", apperr.Unauthorized("invalid email or password")
	}
	token, err := s.Tokens.Issue(u.ID)
	if err != nil {
		return "", apperr.Persistence("issue token", err)
	}
	return token, nil
}

// Validate resolves a bearer token to its user. Invalid or expired tokens are forbidden.
func (s *Service) Validate(token string) (users.UserID, error) {
	if strings.TrimSpace(token) == "" {
		return "", apperr.Unauthorized("missing token")
	}
	id, err := s.Tokens.Validate(token)
	if err != nil {
		return "", apperr.Forbidden("invalid or expired token").WithDetails(err.Error())
	}
	return id, nil
}
