package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/medistore/medistore/internal/jobs"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/users"
)

// Integrity finding kinds.
const (
	FindingUserMissingRole        = "user_missing_role"
	FindingUserInactiveRole       = "user_inactive_role"
	FindingRoleWithoutPrivileges  = "role_without_privileges"
	FindingRoleUnknownPrivilege   = "role_unknown_privilege"
	FindingInactivePrivilegeInUse = "inactive_privilege_in_use"
)

var findingKinds = []string{
	FindingUserMissingRole,
	FindingUserInactiveRole,
	FindingRoleWithoutPrivileges,
	FindingRoleUnknownPrivilege,
	FindingInactivePrivilegeInUse,
}

// PrivilegeLister lists every privilege.
type PrivilegeLister interface {
	List(ctx context.Context) ([]privileges.Privilege, error)
}

// RoleLister lists every role with its privilege ids.
type RoleLister interface {
	List(ctx context.Context) ([]roles.Role, error)
}

// UserLister lists every user.
type UserLister interface {
	List(ctx context.Context) ([]users.User, error)
}

// Finding is a single integrity problem.
type Finding struct {
	Kind    string
	Subject string
	Detail  string
}

// IntegrityReport summarises one scan.
type IntegrityReport struct {
	Privileges int
	Roles      int
	Users      int
	Findings   []Finding
}

// Count returns the number of findings of kind.
func (r IntegrityReport) Count(kind string) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// IntegrityScanJob reports registry inconsistencies. It never writes.
type IntegrityScanJob struct {
	Privileges PrivilegeLister
	Roles      RoleLister
	Users      UserLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewIntegrityScanJob initialises the integrity scan handler.
func NewIntegrityScanJob(privs PrivilegeLister, roleLister RoleLister, userLister UserLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{Privileges: privs, Roles: roleLister, Users: userLister, Logger: logger, Metrics: metrics}
}

// Handle executes the scan for TaskRBACIntegrity.
func (j *IntegrityScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("rbac integrity: handler not configured")
	}
	start := time.Now()
	tracker := j.metrics().Track(TaskRBACIntegrity)
	report, err := j.Scan(ctx)
	if err != nil {
		j.logger().Error("scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	for _, f := range report.Findings {
		j.logger().Warn("rbac integrity finding",
			slog.String("kind", f.Kind),
			slog.String("subject", f.Subject),
			slog.String("detail", f.Detail),
		)
	}
	for _, kind := range findingKinds {
		j.metrics().SetFindings(kind, report.Count(kind))
	}
	j.logger().Info("completed rbac integrity scan",
		slog.Int("privileges", report.Privileges),
		slog.Int("roles", report.Roles),
		slog.Int("users", report.Users),
		slog.Int("findings", len(report.Findings)),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(nil)
}

// Scan loads the three registries concurrently and cross-checks them.
func (j *IntegrityScanJob) Scan(ctx context.Context) (IntegrityReport, error) {
	if j.Privileges == nil || j.Roles == nil || j.Users == nil {
		return IntegrityReport{}, errors.New("rbac integrity: registries not configured")
	}
	var (
		privList []privileges.Privilege
		roleList []roles.Role
		userList []users.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		privList, err = j.Privileges.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roleList, err = j.Roles.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		userList, err = j.Users.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return IntegrityReport{}, fmt.Errorf("rbac integrity: load registries: %w", err)
	}

	report := IntegrityReport{Privileges: len(privList), Roles: len(roleList), Users: len(userList)}
	privByID := make(map[int64]privileges.Privilege, len(privList))
	for _, p := range privList {
		privByID[p.ID] = p
	}
	roleByID := make(map[int64]roles.Role, len(roleList))
	inactiveInUse := make(map[string]bool)
	for _, role := range roleList {
		roleByID[role.ID] = role
		if !role.IsActive {
			continue
		}
		if len(role.PrivilegeIDs) == 0 {
			report.Findings = append(report.Findings, Finding{Kind: FindingRoleWithoutPrivileges, Subject: role.Code})
		}
		for _, id := range role.PrivilegeIDs {
			p, ok := privByID[id]
			switch {
			case !ok:
				report.Findings = append(report.Findings, Finding{
					Kind:    FindingRoleUnknownPrivilege,
					Subject: role.Code,
					Detail:  fmt.Sprintf("privilege id %d", id),
				})
			case !p.IsActive && !inactiveInUse[p.Code]:
				inactiveInUse[p.Code] = true
				report.Findings = append(report.Findings, Finding{
					Kind:    FindingInactivePrivilegeInUse,
					Subject: p.Code,
					Detail:  "listed by " + role.Code,
				})
			}
		}
	}
	for _, u := range userList {
		role, ok := roleByID[u.RoleID]
		switch {
		case !ok:
			report.Findings = append(report.Findings, Finding{
				Kind:    FindingUserMissingRole,
				Subject: u.Email,
				Detail:  fmt.Sprintf("role id %d", u.RoleID),
			})
		case !role.IsActive && u.IsActive:
			report.Findings = append(report.Findings, Finding{
				Kind:    FindingUserInactiveRole,
				Subject: u.Email,
				Detail:  role.Code,
			})
		}
	}
	sort.SliceStable(report.Findings, func(a, b int) bool {
		if report.Findings[a].Kind == report.Findings[b].Kind {
			return report.Findings[a].Subject < report.Findings[b].Subject
		}
		return report.Findings[a].Kind < report.Findings[b].Kind
	})
	return report, nil
}

func (j *IntegrityScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRBACIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskRBACIntegrity))
}

func (j *IntegrityScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
