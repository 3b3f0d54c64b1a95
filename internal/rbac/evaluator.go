package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/medistore/medistore/internal/privileges"
	"github.com/medistore/medistore/internal/shared"
)

// Mode selects how a Requirement is evaluated.
type Mode int

const (
	ModeSingle Mode = iota
	ModeAllOf
	ModeAnyOf
	ModeCategory
	// ModeRole compares the token's role claim against an allow-list. It is
	// kept for routes not yet migrated to privileges.
	ModeRole
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeAllOf:
		return "all_of"
	case ModeAnyOf:
		return "any_of"
	case ModeCategory:
		return "category"
	case ModeRole:
		return "role"
	default:
		return "unknown"
	}
}

// Requirement is a declared access expression.
type Requirement struct {
	Mode       Mode
	Privileges []string
	Category   privileges.Category
	Roles      []string
}

// Single requires code.
func Single(code string) Requirement {
	return Requirement{Mode: ModeSingle, Privileges: []string{code}}
}

// AllOf requires every code, checked in the given order.
func AllOf(codes ...string) Requirement {
	return Requirement{Mode: ModeAllOf, Privileges: slices.Clone(codes)}
}

// AnyOf requires at least one code, checked in the given order.
func AnyOf(codes ...string) Requirement {
	return Requirement{Mode: ModeAnyOf, Privileges: slices.Clone(codes)}
}

// InCategory requires an active privilege of category.
func InCategory(category privileges.Category) Requirement {
	return Requirement{Mode: ModeCategory, Category: category}
}

// RoleIn requires the role claim to be one of codes.
func RoleIn(codes ...string) Requirement {
	return Requirement{Mode: ModeRole, Roles: slices.Clone(codes)}
}

// Validate rejects requirements that could never be evaluated meaningfully.
func (r Requirement) Validate() error {
	switch r.Mode {
	case ModeSingle:
		if len(r.Privileges) != 1 {
			return errors.New("rbac: single requirement needs exactly one privilege")
		}
	case ModeAllOf, ModeAnyOf:
		if len(r.Privileges) == 0 {
			return fmt.Errorf("rbac: %s requirement needs at least one privilege", r.Mode)
		}
	case ModeCategory:
		if !r.Category.Valid() {
			return fmt.Errorf("rbac: unknown category %q", r.Category)
		}
		return nil
	case ModeRole:
		if len(r.Roles) == 0 {
			return errors.New("rbac: role requirement needs at least one role")
		}
		return nil
	default:
		return fmt.Errorf("rbac: unknown mode %d", r.Mode)
	}
	for _, code := range r.Privileges {
		if err := privileges.ValidateCode(code); err != nil {
			return err
		}
	}
	return nil
}

// Outcome is the result class of an evaluation.
type Outcome int

const (
	OutcomeGrant Outcome = iota
	OutcomeDeny
	OutcomeUnauthenticated
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGrant:
		return "grant"
	case OutcomeDeny:
		return "deny"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	default:
		return "error"
	}
}

// Decision is the evaluator's answer. Missing names the first privilege an
// all-of or single check lacked; Matched names the privilege that satisfied
// an any-of check.
type Decision struct {
	Outcome   Outcome
	Missing   string
	Matched   string
	Principal *Principal
	Err       error
}

// Granted reports whether the decision allows the request.
func (d Decision) Granted() bool { return d.Outcome == OutcomeGrant }

// PrincipalResolver resolves a user id into a Principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID int64) (Principal, error)
}

// Evaluator computes access decisions.
type Evaluator struct {
	resolver PrincipalResolver
}

// NewEvaluator builds an Evaluator on top of resolver.
func NewEvaluator(resolver PrincipalResolver) *Evaluator {
	return &Evaluator{resolver: resolver}
}

// Evaluate decides req for claims. Nil claims are unauthenticated. A principal
// that cannot be established because the user is gone or deactivated is also
// unauthenticated; every other resolution failure is an error outcome.
func (e *Evaluator) Evaluate(ctx context.Context, claims *shared.Claims, req Requirement) Decision {
	if claims == nil {
		return Decision{Outcome: OutcomeUnauthenticated}
	}
	if err := req.Validate(); err != nil {
		return Decision{Outcome: OutcomeError, Err: err}
	}
	if req.Mode == ModeRole {
		if slices.Contains(req.Roles, claims.RoleClaim) {
			return Decision{Outcome: OutcomeGrant, Matched: claims.RoleClaim}
		}
		return Decision{Outcome: OutcomeDeny}
	}

	principal, err := e.resolver.Resolve(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return Decision{Outcome: OutcomeUnauthenticated, Err: err}
		}
		return Decision{Outcome: OutcomeError, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Decision{Outcome: OutcomeError, Err: err}
	}

	d := Decision{Principal: &principal}
	switch req.Mode {
	case ModeSingle, ModeAllOf:
		for _, code := range req.Privileges {
			if !principal.Has(code) {
				d.Outcome = OutcomeDeny
				d.Missing = code
				return d
			}
		}
		d.Outcome = OutcomeGrant
	case ModeAnyOf:
		d.Outcome = OutcomeDeny
		for _, code := range req.Privileges {
			if principal.Has(code) {
				d.Outcome = OutcomeGrant
				d.Matched = code
				break
			}
		}
	case ModeCategory:
		d.Outcome = OutcomeDeny
		if principal.HasActiveInCategory(req.Category) {
			d.Outcome = OutcomeGrant
		}
	}
	return d
}
