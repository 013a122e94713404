package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger is an isolated accounting book. Accounts, commodities and
// transactions all belong to exactly one ledger.
type Ledger struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type NewLedger struct {
	Name        string  `json:"name" validate:"required,min=1,max=256"`
	Description *string `json:"description" validate:"omitempty,min=1,max=1024"`
}

// UpdateLedger is a partial patch; nil fields are left untouched.
type UpdateLedger struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=256"`
	Description *string `json:"description" validate:"omitempty,min=1,max=1024"`
}
