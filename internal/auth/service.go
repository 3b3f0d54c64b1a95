package auth

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/medistore/medistore/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// Login validates email/password credentials and issues a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	creds, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			return Session{}, shared.ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !creds.IsActive || creds.RoleCode == "" {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(in.Password)); err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}
	sess, err := s.tokens.Issue(ctx, shared.Claims{
		UserID:    creds.UserID,
		RoleClaim: creds.RoleCode,
		StoreID:   creds.StoreID,
	})
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("user logged in", slog.Int64("user_id", creds.UserID))
	return sess, nil
}

// Logout revokes token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Verify returns the claims carried by token.
func (s *Service) Verify(ctx context.Context, token string) (shared.Claims, error) {
	return s.tokens.Lookup(ctx, token)
}
