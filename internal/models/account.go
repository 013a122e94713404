package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RootPaths are the only allowed top-level segments of an account path.
var RootPaths = []string{
	"Assets",
	"Liabilities",
	"Incomes",
	"Expenses",
	"Equity",
}

var ErrInvalidRootPath = errors.New("invalid root path")

// Account is a node in a ledger's chart of accounts, addressed by a
// colon-delimited path rooted at one of RootPaths.
type Account struct {
	ID       uuid.UUID `json:"id" db:"id"`
	LedgerID uuid.UUID `json:"ledger_id" db:"ledger_id"`
	Name     string    `json:"name" db:"name"`
	Path     string    `json:"path" db:"path"`
	// Paths holds every ancestor-inclusive prefix of Path, root to leaf.
	// It is denormalized so that a branch filter like "Assets:Cash" is a
	// plain membership test instead of a prefix scan.
	Paths     []string  `json:"paths" db:"paths"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SplitPath expands a colon-delimited path into its cumulative prefixes:
// "A:B:C" becomes ["A", "A:B", "A:B:C"].
func SplitPath(path string) []string {
	segments := strings.Split(path, ":")
	paths := make([]string, 0, len(segments))
	for i := range segments {
		paths = append(paths, strings.Join(segments[:i+1], ":"))
	}
	return paths
}

// ValidateRootPath checks that the first segment of path is one of the
// allowed roots. Trailing and leading colons are ignored.
func ValidateRootPath(path string) error {
	first := SplitPath(strings.Trim(path, ":"))[0]
	for _, root := range RootPaths {
		if first == root {
			return nil
		}
	}
	return ErrInvalidRootPath
}

type NewAccount struct {
	Name string `json:"name" validate:"required,min=1,max=256"`
	Path string `json:"path" validate:"required"`
}

// Normalize validates the root segment and strips surrounding colons from
// the path, mirroring how paths are stored.
func (a *NewAccount) Normalize() error {
	if err := ValidateRootPath(a.Path); err != nil {
		return err
	}
	a.Path = strings.Trim(a.Path, ":")
	return nil
}

type UpdateAccount struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=256"`
	Path *string `json:"path" validate:"omitempty,min=1"`
}

func (a *UpdateAccount) Normalize() error {
	if a.Path == nil {
		return nil
	}
	if err := ValidateRootPath(*a.Path); err != nil {
		return err
	}
	trimmed := strings.Trim(*a.Path, ":")
	a.Path = &trimmed
	return nil
}
