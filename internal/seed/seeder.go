// Package seed brings the privilege and role registries in line with the
// compiled-in catalog. It only adds and refreshes; it never deletes.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
)

// PrivilegeRegistry is the subset of the privilege registry the seeder uses.
type PrivilegeRegistry interface {
	Register(ctx context.Context, in privileges.Input) (privileges.Privilege, bool, error)
	List(ctx context.Context) ([]privileges.Privilege, error)
}

// RoleRegistry is the subset of the role registry the seeder uses.
type RoleRegistry interface {
	UpsertByCode(ctx context.Context, in roles.UpsertInput) (roles.Role, error)
}

// Report summarises a seeding run.
type Report struct {
	PrivilegesCreated int
	PrivilegesTotal   int
	RolesSynced       int
}

// Seeder populates the registries.
type Seeder struct {
	privileges PrivilegeRegistry
	roles      RoleRegistry
	logger     *slog.Logger
	catalog    []privileges.Input
	roleDefs   []RoleDefinition
}

// NewSeeder builds a Seeder over the default catalog.
func NewSeeder(privs PrivilegeRegistry, roleRegistry RoleRegistry, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		privileges: privs,
		roles:      roleRegistry,
		logger:     logger,
		catalog:    privileges.DefaultCatalog(),
		roleDefs:   DefaultRoles(),
	}
}

// WithCatalog replaces the catalog the seeder applies.
func (s *Seeder) WithCatalog(catalog []privileges.Input, roleDefs []RoleDefinition) *Seeder {
	clone := *s
	clone.catalog = catalog
	clone.roleDefs = roleDefs
	return &clone
}

// Run registers every catalog privilege, then upserts every role definition.
// Any error aborts the run; callers treat it as fatal to startup.
func (s *Seeder) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	for _, in := range s.catalog {
		_, created, err := s.privileges.Register(ctx, in)
		if err != nil {
			return report, fmt.Errorf("seed: register privilege %s: %w", in.Code, err)
		}
		if created {
			report.PrivilegesCreated++
		}
	}

	all, err := s.privileges.List(ctx)
	if err != nil {
		return report, fmt.Errorf("seed: list privileges: %w", err)
	}
	report.PrivilegesTotal = len(all)
	byCode := make(map[string]int64, len(all))
	allIDs := make([]int64, 0, len(all))
	for _, p := range all {
		byCode[p.Code] = p.ID
		allIDs = append(allIDs, p.ID)
	}

	for _, def := range s.roleDefs {
		ids := allIDs
		if !def.AllPrivileges {
			ids = make([]int64, 0, len(def.Privileges))
			for _, code := range def.Privileges {
				id, ok := byCode[code]
				if !ok {
					return report, fmt.Errorf("seed: role %s lists unknown privilege %s", def.Code, code)
				}
				ids = append(ids, id)
			}
		}
		if _, err := s.roles.UpsertByCode(ctx, roles.UpsertInput{
			Code:         def.Code,
			Name:         def.Name,
			Description:  def.Description,
			PrivilegeIDs: ids,
			IsSystem:     true,
		}); err != nil {
			return report, fmt.Errorf("seed: upsert role %s: %w", def.Code, err)
		}
		report.RolesSynced++
	}

	s.logger.Info("rbac catalog seeded",
		slog.Int("privileges_created", report.PrivilegesCreated),
		slog.Int("privileges_total", report.PrivilegesTotal),
		slog.Int("roles_synced", report.RolesSynced),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}
