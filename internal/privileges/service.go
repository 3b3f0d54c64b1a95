package privileges

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medistore/medistore/internal/platform/httpx"
)

// RepositoryPort abstracts persistence for the registry.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertIfAbsent(ctx context.Context, in Input) (Privilege, bool, error)
	Insert(ctx context.Context, in Input) (Privilege, error)
	FindByID(ctx context.Context, id int64) (Privilege, error)
	FindByCode(ctx context.Context, code string) (Privilege, error)
	ListActiveByCategory(ctx context.Context, category Category) ([]Privilege, error)
	List(ctx context.Context) ([]Privilege, error)
	SetActive(ctx context.Context, id int64, active bool) (Privilege, error)
}

// Service is the privilege registry.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Register inserts the privilege when its code is absent. An existing record
// is returned unchanged so administrator edits survive restarts.
func (s *Service) Register(ctx context.Context, in Input) (Privilege, bool, error) {
	in, err := in.Normalize()
	if err != nil {
		return Privilege{}, false, err
	}
	return s.repo.InsertIfAbsent(ctx, in)
}

// Create adds a privilege through the administrative surface.
func (s *Service) Create(ctx context.Context, in Input) (Privilege, error) {
	in, err := in.Normalize()
	if err != nil {
		return Privilege{}, err
	}
	p, err := s.repo.Insert(ctx, in)
	if err != nil {
		return Privilege{}, err
	}
	s.logger.Info("privilege created", slog.String("code", p.Code), slog.String("category", string(p.Category)))
	return p, nil
}

// Get returns the privilege with id.
func (s *Service) Get(ctx context.Context, id int64) (Privilege, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByCode returns the privilege with code.
func (s *Service) FindByCode(ctx context.Context, code string) (Privilege, error) {
	return s.repo.FindByCode(ctx, strings.TrimSpace(code))
}

// FindActiveByCategory returns the active privileges of category sorted by name.
func (s *Service) FindActiveByCategory(ctx context.Context, category Category) ([]Privilege, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", httpx.ErrValidation, category)
	}
	return s.repo.ListActiveByCategory(ctx, category)
}

// List returns every privilege.
func (s *Service) List(ctx context.Context) ([]Privilege, error) {
	return s.repo.List(ctx)
}

// Deactivate excludes the privilege from category grants. Roles keep listing it.
func (s *Service) Deactivate(ctx context.Context, id int64) (Privilege, error) {
	return s.setActive(ctx, id, false)
}

// Activate reverses Deactivate.
func (s *Service) Activate(ctx context.Context, id int64) (Privilege, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id int64, active bool) (Privilege, error) {
	p, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return Privilege{}, err
	}
	s.logger.Info("privilege active flag changed", slog.String("code", p.Code), slog.Bool("active", active))
	return p, nil
}

// Delete removes the privilege. It fails with ErrInUse while an active role
// lists it; the check and the delete share one locked transaction.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.LockPrivilege(ctx, id)
		if err != nil {
			return err
		}
		code = p.Code
		refs, err := tx.CountActiveRoleReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return ErrInUse
		}
		return tx.DeletePrivilege(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("privilege deleted", slog.String("code", code))
	return nil
}
