package privileges

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/medistore/medistore/internal/platform/httpx"
)

// Category groups privileges for coarse section gating.
type Category string

const (
	CategoryUserManagement  Category = "user-management"
	CategoryInventory       Category = "inventory"
	CategorySales           Category = "sales"
	CategoryPrescriptions   Category = "prescriptions"
	CategoryReports         Category = "reports"
	CategorySystem          Category = "system"
	CategoryStoreManagement Category = "store-management"
	CategoryDrugManagement  Category = "drug-management"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryUserManagement,
	CategoryInventory,
	CategorySales,
	CategoryPrescriptions,
	CategoryReports,
	CategorySystem,
	CategoryStoreManagement,
	CategoryDrugManagement,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Privilege is a single grantable capability.
type Privilege struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input describes a privilege to register or create.
type Input struct {
	Code        string   `json:"code" validate:"required,max=64"`
	Name        string   `json:"name" validate:"max=120"`
	Description string   `json:"description" validate:"max=500"`
	Category    Category `json:"category" validate:"required"`
}

var (
	// ErrNotFound is returned when no privilege matches.
	ErrNotFound = fmt.Errorf("privilege %w", httpx.ErrNotFound)
	// ErrDuplicateCode is returned when the code is already registered.
	ErrDuplicateCode = fmt.Errorf("%w: privilege code already exists", httpx.ErrValidation)
	// ErrInUse is returned when deleting a privilege an active role still lists.
	ErrInUse = fmt.Errorf("%w: privilege is referenced by an active role", httpx.ErrConflict)
)

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*(_[A-Z0-9]+)*$`)

// ValidateCode checks the uppercase underscore-delimited code format.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: code %q must be uppercase words joined by underscores", httpx.ErrValidation, code)
	}
	return nil
}

// Normalize trims the input, fills a missing name from the code and validates it.
func (in Input) Normalize() (Input, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := ValidateCode(in.Code); err != nil {
		return in, err
	}
	if !in.Category.Valid() {
		return in, fmt.Errorf("%w: unknown category %q", httpx.ErrValidation, in.Category)
	}
	if in.Name == "" {
		in.Name = DisplayName(in.Code)
	}
	return in, nil
}

// DisplayName turns VIEW_INVENTORY into "View Inventory".
func DisplayName(code string) string {
	words := strings.ReplaceAll(strings.ToLower(code), "_", " ")
	return cases.Title(language.English).String(words)
}
