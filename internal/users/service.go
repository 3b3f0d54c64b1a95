package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindByID(ctx context.Context, id int64) (User, error)
	List(ctx context.Context) ([]User, error)
	CountByRole(ctx context.Context, roleID int64) (int, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create registers a staff account under an active role.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	u := User{
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Name:    strings.TrimSpace(in.Name),
		RoleID:  in.RoleID,
		StoreID: strings.TrimSpace(in.StoreID),
	}
	var created User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockAssignableRole(ctx, u.RoleID); err != nil {
			return err
		}
		created, err = tx.InsertUser(ctx, u, string(hash))
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.Int64("user_id", created.ID), slog.Int64("role_id", created.RoleID))
	return created, nil
}

// AssignRole moves the user to roleID, which must exist and be active.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) (User, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockAssignableRole(ctx, roleID); err != nil {
			return err
		}
		return tx.UpdateRole(ctx, userID, roleID)
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user role assigned", slog.Int64("user_id", userID), slog.Int64("role_id", roleID))
	return s.repo.FindByID(ctx, userID)
}

// SetActive enables or disables the account. A disabled account stops
// authorizing on its next request.
func (s *Service) SetActive(ctx context.Context, userID int64, active bool) (User, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetActive(ctx, userID, active)
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user active flag changed", slog.Int64("user_id", userID), slog.Bool("active", active))
	return s.repo.FindByID(ctx, userID)
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// CountByRole returns the number of users holding roleID.
func (s *Service) CountByRole(ctx context.Context, roleID int64) (int, error) {
	return s.repo.CountByRole(ctx, roleID)
}
