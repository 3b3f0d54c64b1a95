package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medistore/medistore/internal/platform/httpx"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindByID(ctx context.Context, id int64) (Role, error)
	FindByCode(ctx context.Context, code string) (Role, error)
	List(ctx context.Context) ([]Role, error)
}

// Service is the role registry.
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

// UpsertByCode creates the role or refreshes its name, description and
// privilege set. It is allowed on system roles and never changes the stored
// system flag.
func (s *Service) UpsertByCode(ctx context.Context, in UpsertInput) (Role, error) {
	in, err := in.normalize()
	if err != nil {
		return Role{}, err
	}
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requirePrivileges(ctx, tx, in.PrivilegeIDs); err != nil {
			return err
		}
		role, err := tx.UpsertRole(ctx, in)
		if err != nil {
			return err
		}
		id = role.ID
		return tx.ReplacePrivileges(ctx, role.ID, in.PrivilegeIDs)
	})
	if err != nil {
		return Role{}, fmt.Errorf("roles: upsert %s: %w", in.Code, err)
	}
	return s.repo.FindByID(ctx, id)
}

// Create adds a custom role. Duplicate codes and unknown privilege ids are
// validation errors.
func (s *Service) Create(ctx context.Context, in CreateInput) (Role, error) {
	in, err := in.normalize()
	if err != nil {
		return Role{}, err
	}
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requirePrivileges(ctx, tx, in.PrivilegeIDs); err != nil {
			return err
		}
		role, err := tx.InsertRole(ctx, in)
		if err != nil {
			return err
		}
		id = role.ID
		return tx.ReplacePrivileges(ctx, role.ID, in.PrivilegeIDs)
	})
	if err != nil {
		return Role{}, err
	}
	s.logger.Info("role created", slog.String("code", in.Code), slog.Int("privileges", len(in.PrivilegeIDs)))
	return s.repo.FindByID(ctx, id)
}

// Update applies patch to a custom role.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Role, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return ErrSystemRole
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", httpx.ErrValidation)
			}
			role.Name = name
		}
		if patch.Description != nil {
			role.Description = strings.TrimSpace(*patch.Description)
		}
		if err := tx.UpdateRole(ctx, role); err != nil {
			return err
		}
		if patch.PrivilegeIDs == nil {
			return nil
		}
		ids, err := normalizeIDs(*patch.PrivilegeIDs)
		if err != nil {
			return err
		}
		if err := requirePrivileges(ctx, tx, ids); err != nil {
			return err
		}
		return tx.ReplacePrivileges(ctx, role.ID, ids)
	})
	if err != nil {
		return Role{}, err
	}
	return s.repo.FindByID(ctx, id)
}

// Delete removes a custom role that no user references. The role row stays
// locked between the reference count and the delete so a concurrent
// assignment cannot slip in.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return ErrSystemRole
		}
		code = role.Code
		users, err := tx.CountUsers(ctx, id)
		if err != nil {
			return err
		}
		if users > 0 {
			return ErrInUse
		}
		return tx.DeleteRole(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("role deleted", slog.String("code", code))
	return nil
}

// SetActive toggles a role. System roles cannot be deactivated.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (Role, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if role.IsSystem && !active {
			return ErrSystemRole
		}
		if role.IsActive == active {
			return nil
		}
		role.IsActive = active
		return tx.UpdateRole(ctx, role)
	})
	if err != nil {
		return Role{}, err
	}
	return s.repo.FindByID(ctx, id)
}

// FindByCode returns the role with privileges resolved.
func (s *Service) FindByCode(ctx context.Context, code string) (Role, error) {
	return s.repo.FindByCode(ctx, strings.TrimSpace(code))
}

// Get returns the role with privileges resolved.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

func requirePrivileges(ctx context.Context, tx TxRepository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := tx.CountExistingPrivileges(ctx, ids)
	if err != nil {
		return err
	}
	if found != len(ids) {
		return ErrUnknownPrivilege
	}
	return nil
}
