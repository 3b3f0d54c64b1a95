// Package memory provides an in-memory implementation of the privilege, role
// and user repositories. Package tests use it in place of PostgreSQL.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medistore/medistore/internal/auth"
	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/roles"
	"github.com/medistore/medistore/internal/shared"
	"github.com/medistore/medistore/internal/users"
)

// Compile-time interface checks.
var (
	_ privileges.RepositoryPort = (*PrivilegeRepo)(nil)
	_ roles.RepositoryPort      = (*RoleRepo)(nil)
	_ users.RepositoryPort      = (*UserRepo)(nil)
	_ auth.Repository           = (*CredentialRepo)(nil)
)

type userRecord struct {
	user users.User
	hash string
}

type state struct {
	privileges map[int64]privileges.Privilege
	roles      map[int64]roles.Role
	rolePrivs  map[int64]map[int64]struct{}
	users      map[int64]userRecord
	nextID     int64
}

func (st state) clone() state {
	out := state{
		privileges: maps.Clone(st.privileges),
		roles:      maps.Clone(st.roles),
		rolePrivs:  make(map[int64]map[int64]struct{}, len(st.rolePrivs)),
		users:      maps.Clone(st.users),
		nextID:     st.nextID,
	}
	for id, set := range st.rolePrivs {
		out.rolePrivs[id] = maps.Clone(set)
	}
	return out
}

// Store is a thread-safe in-memory store. Transactions hold the store lock
// for their whole duration and roll back on error.
type Store struct {
	mu      sync.Mutex
	st      state
	readErr error
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		st: state{
			privileges: make(map[int64]privileges.Privilege),
			roles:      make(map[int64]roles.Role),
			rolePrivs:  make(map[int64]map[int64]struct{}),
			users:      make(map[int64]userRecord),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// FailReads makes every subsequent non-transactional read return err.
// Passing nil restores normal behaviour.
func (s *Store) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// Privileges returns the privilege repository view.
func (s *Store) Privileges() *PrivilegeRepo { return &PrivilegeRepo{s: s} }

// Roles returns the role repository view.
func (s *Store) Roles() *RoleRepo { return &RoleRepo{s: s} }

// Users returns the user repository view.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// withTx runs fn under the store lock and restores the prior state when fn fails.
func (s *Store) withTx(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) read(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return s.readErr
	}
	return fn()
}

func (s *Store) id() int64 {
	s.st.nextID++
	return s.st.nextID
}

// resolveRole fills PrivilegeIDs and Privileges. Caller holds the lock.
func (s *Store) resolveRole(role roles.Role) roles.Role {
	ids := slices.Collect(maps.Keys(s.st.rolePrivs[role.ID]))
	slices.Sort(ids)
	if ids == nil {
		ids = []int64{}
	}
	role.PrivilegeIDs = ids
	role.Privileges = nil
	for _, id := range ids {
		if p, ok := s.st.privileges[id]; ok {
			role.Privileges = append(role.Privileges, p)
		}
	}
	sort.Slice(role.Privileges, func(i, j int) bool { return role.Privileges[i].Code < role.Privileges[j].Code })
	return role
}

// ─── privileges ───────────────────────────────────

// PrivilegeRepo implements privileges.RepositoryPort.
type PrivilegeRepo struct{ s *Store }

type privilegeTx struct{ s *Store }

func (r *PrivilegeRepo) WithTx(ctx context.Context, fn func(context.Context, privileges.TxRepository) error) error {
	return r.s.withTx(func() error { return fn(ctx, &privilegeTx{s: r.s}) })
}

func (r *PrivilegeRepo) InsertIfAbsent(_ context.Context, in privileges.Input) (privileges.Privilege, bool, error) {
	var (
		out     privileges.Privilege
		created bool
	)
	err := r.s.withTx(func() error {
		for _, p := range r.s.st.privileges {
			if p.Code == in.Code {
				out = p
				return nil
			}
		}
		out = r.s.insertPrivilege(in)
		created = true
		return nil
	})
	return out, created, err
}

func (r *PrivilegeRepo) Insert(_ context.Context, in privileges.Input) (privileges.Privilege, error) {
	var out privileges.Privilege
	err := r.s.withTx(func() error {
		for _, p := range r.s.st.privileges {
			if p.Code == in.Code {
				return privileges.ErrDuplicateCode
			}
		}
		out = r.s.insertPrivilege(in)
		return nil
	})
	return out, err
}

func (s *Store) insertPrivilege(in privileges.Input) privileges.Privilege {
	now := s.now()
	p := privileges.Privilege{
		ID:          s.id(),
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.st.privileges[p.ID] = p
	return p
}

func (r *PrivilegeRepo) FindByID(_ context.Context, id int64) (privileges.Privilege, error) {
	var out privileges.Privilege
	err := r.s.read(func() error {
		p, ok := r.s.st.privileges[id]
		if !ok {
			return privileges.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *PrivilegeRepo) FindByCode(_ context.Context, code string) (privileges.Privilege, error) {
	var out privileges.Privilege
	err := r.s.read(func() error {
		for _, p := range r.s.st.privileges {
			if p.Code == code {
				out = p
				return nil
			}
		}
		return privileges.ErrNotFound
	})
	return out, err
}

func (r *PrivilegeRepo) ListActiveByCategory(_ context.Context, category privileges.Category) ([]privileges.Privilege, error) {
	var out []privileges.Privilege
	err := r.s.read(func() error {
		for _, p := range r.s.st.privileges {
			if p.Category == category && p.IsActive {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Name == out[j].Name {
				return out[i].ID < out[j].ID
			}
			return out[i].Name < out[j].Name
		})
		return nil
	})
	return out, err
}

func (r *PrivilegeRepo) List(_ context.Context) ([]privileges.Privilege, error) {
	var out []privileges.Privilege
	err := r.s.read(func() error {
		for _, p := range r.s.st.privileges {
			out = append(out, p)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Category == out[j].Category {
				return out[i].Code < out[j].Code
			}
			return out[i].Category < out[j].Category
		})
		return nil
	})
	return out, err
}

func (r *PrivilegeRepo) SetActive(_ context.Context, id int64, active bool) (privileges.Privilege, error) {
	var out privileges.Privilege
	err := r.s.withTx(func() error {
		p, ok := r.s.st.privileges[id]
		if !ok {
			return privileges.ErrNotFound
		}
		p.IsActive = active
		p.UpdatedAt = r.s.now()
		r.s.st.privileges[id] = p
		out = p
		return nil
	})
	return out, err
}

func (t *privilegeTx) LockPrivilege(_ context.Context, id int64) (privileges.Privilege, error) {
	p, ok := t.s.st.privileges[id]
	if !ok {
		return privileges.Privilege{}, privileges.ErrNotFound
	}
	return p, nil
}

func (t *privilegeTx) CountActiveRoleReferences(_ context.Context, id int64) (int, error) {
	count := 0
	for roleID, set := range t.s.st.rolePrivs {
		if _, ok := set[id]; ok && t.s.st.roles[roleID].IsActive {
			count++
		}
	}
	return count, nil
}

func (t *privilegeTx) DeletePrivilege(_ context.Context, id int64) error {
	if _, ok := t.s.st.privileges[id]; !ok {
		return privileges.ErrNotFound
	}
	for _, set := range t.s.st.rolePrivs {
		delete(set, id)
	}
	delete(t.s.st.privileges, id)
	return nil
}

// ─── roles ────────────────────────────────────────

// RoleRepo implements roles.RepositoryPort.
type RoleRepo struct{ s *Store }

type roleTx struct{ s *Store }

func (r *RoleRepo) WithTx(ctx context.Context, fn func(context.Context, roles.TxRepository) error) error {
	return r.s.withTx(func() error { return fn(ctx, &roleTx{s: r.s}) })
}

func (r *RoleRepo) FindByID(_ context.Context, id int64) (roles.Role, error) {
	var out roles.Role
	err := r.s.read(func() error {
		role, ok := r.s.st.roles[id]
		if !ok {
			return roles.ErrNotFound
		}
		out = r.s.resolveRole(role)
		return nil
	})
	return out, err
}

func (r *RoleRepo) FindByCode(_ context.Context, code string) (roles.Role, error) {
	var out roles.Role
	err := r.s.read(func() error {
		for _, role := range r.s.st.roles {
			if role.Code == code {
				out = r.s.resolveRole(role)
				return nil
			}
		}
		return roles.ErrNotFound
	})
	return out, err
}

func (r *RoleRepo) List(_ context.Context) ([]roles.Role, error) {
	var out []roles.Role
	err := r.s.read(func() error {
		for _, role := range r.s.st.roles {
			out = append(out, r.s.resolveRole(role))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
		return nil
	})
	return out, err
}

func (t *roleTx) LockRole(_ context.Context, id int64) (roles.Role, error) {
	role, ok := t.s.st.roles[id]
	if !ok {
		return roles.Role{}, roles.ErrNotFound
	}
	return t.s.resolveRole(role), nil
}

func (t *roleTx) UpsertRole(_ context.Context, in roles.UpsertInput) (roles.Role, error) {
	now := t.s.now()
	for id, role := range t.s.st.roles {
		if role.Code == in.Code {
			role.Name = in.Name
			role.Description = in.Description
			role.UpdatedAt = now
			t.s.st.roles[id] = role
			return role, nil
		}
	}
	role := roles.Role{
		ID:          t.s.id(),
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    true,
		IsSystem:    in.IsSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.s.st.roles[role.ID] = role
	return role, nil
}

func (t *roleTx) InsertRole(_ context.Context, in roles.CreateInput) (roles.Role, error) {
	for _, role := range t.s.st.roles {
		if role.Code == in.Code {
			return roles.Role{}, roles.ErrDuplicateCode
		}
	}
	now := t.s.now()
	role := roles.Role{
		ID:          t.s.id(),
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.s.st.roles[role.ID] = role
	return role, nil
}

func (t *roleTx) UpdateRole(_ context.Context, role roles.Role) error {
	stored, ok := t.s.st.roles[role.ID]
	if !ok {
		return roles.ErrNotFound
	}
	stored.Name = role.Name
	stored.Description = role.Description
	stored.IsActive = role.IsActive
	stored.UpdatedAt = t.s.now()
	t.s.st.roles[role.ID] = stored
	return nil
}

func (t *roleTx) CountExistingPrivileges(_ context.Context, ids []int64) (int, error) {
	count := 0
	for _, id := range ids {
		if _, ok := t.s.st.privileges[id]; ok {
			count++
		}
	}
	return count, nil
}

func (t *roleTx) ReplacePrivileges(_ context.Context, roleID int64, ids []int64) error {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := t.s.st.privileges[id]; !ok {
			return roles.ErrUnknownPrivilege
		}
		set[id] = struct{}{}
	}
	t.s.st.rolePrivs[roleID] = set
	return nil
}

func (t *roleTx) CountUsers(_ context.Context, roleID int64) (int, error) {
	count := 0
	for _, rec := range t.s.st.users {
		if rec.user.RoleID == roleID {
			count++
		}
	}
	return count, nil
}

func (t *roleTx) DeleteRole(_ context.Context, id int64) error {
	if _, ok := t.s.st.roles[id]; !ok {
		return roles.ErrNotFound
	}
	for _, rec := range t.s.st.users {
		if rec.user.RoleID == id {
			return roles.ErrInUse
		}
	}
	delete(t.s.st.roles, id)
	delete(t.s.st.rolePrivs, id)
	return nil
}

// ─── users ────────────────────────────────────────

// UserRepo implements users.RepositoryPort.
type UserRepo struct{ s *Store }

type userTx struct{ s *Store }

func (r *UserRepo) WithTx(ctx context.Context, fn func(context.Context, users.TxRepository) error) error {
	return r.s.withTx(func() error { return fn(ctx, &userTx{s: r.s}) })
}

func (r *UserRepo) FindByID(_ context.Context, id int64) (users.User, error) {
	var out users.User
	err := r.s.read(func() error {
		rec, ok := r.s.st.users[id]
		if !ok {
			return users.ErrNotFound
		}
		out = rec.user
		return nil
	})
	return out, err
}

func (r *UserRepo) List(_ context.Context) ([]users.User, error) {
	var out []users.User
	err := r.s.read(func() error {
		for _, rec := range r.s.st.users {
			out = append(out, rec.user)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r *UserRepo) CountByRole(_ context.Context, roleID int64) (int, error) {
	count := 0
	err := r.s.read(func() error {
		for _, rec := range r.s.st.users {
			if rec.user.RoleID == roleID {
				count++
			}
		}
		return nil
	})
	return count, err
}

// Credentials returns the login view over the stored users.
func (s *Store) Credentials() *CredentialRepo { return &CredentialRepo{s: s} }

// CredentialRepo implements auth.Repository.
type CredentialRepo struct{ s *Store }

func (r *CredentialRepo) FindByEmail(_ context.Context, email string) (auth.Credentials, error) {
	var out auth.Credentials
	err := r.s.read(func() error {
		email = strings.ToLower(strings.TrimSpace(email))
		for _, rec := range r.s.st.users {
			if rec.user.Email != email {
				continue
			}
			out = auth.Credentials{
				UserID:       rec.user.ID,
				Email:        rec.user.Email,
				PasswordHash: rec.hash,
				RoleCode:     r.s.st.roles[rec.user.RoleID].Code,
				StoreID:      rec.user.StoreID,
				IsActive:     rec.user.IsActive,
			}
			return nil
		}
		return shared.ErrInvalidCredentials
	})
	return out, err
}

func (t *userTx) LockAssignableRole(_ context.Context, roleID int64) error {
	role, ok := t.s.st.roles[roleID]
	if !ok || !role.IsActive {
		return users.ErrRoleUnavailable
	}
	return nil
}

func (t *userTx) InsertUser(_ context.Context, u users.User, passwordHash string) (users.User, error) {
	for _, rec := range t.s.st.users {
		if rec.user.Email == u.Email {
			return users.User{}, users.ErrDuplicateEmail
		}
	}
	if _, ok := t.s.st.roles[u.RoleID]; !ok {
		return users.User{}, users.ErrRoleUnavailable
	}
	now := t.s.now()
	u.ID = t.s.id()
	u.IsActive = true
	u.CreatedAt = now
	u.UpdatedAt = now
	t.s.st.users[u.ID] = userRecord{user: u, hash: passwordHash}
	return u, nil
}

func (t *userTx) UpdateRole(_ context.Context, userID, roleID int64) error {
	rec, ok := t.s.st.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	if _, ok := t.s.st.roles[roleID]; !ok {
		return users.ErrRoleUnavailable
	}
	rec.user.RoleID = roleID
	rec.user.UpdatedAt = t.s.now()
	t.s.st.users[userID] = rec
	return nil
}

func (t *userTx) SetActive(_ context.Context, userID int64, active bool) error {
	rec, ok := t.s.st.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	rec.user.IsActive = active
	rec.user.UpdatedAt = t.s.now()
	t.s.st.users[userID] = rec
	return nil
}
