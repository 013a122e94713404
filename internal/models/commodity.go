package models

import (
	"time"

	"github.com/google/uuid"
)

// Commodity is a unit of value (a currency or an asset) with a minor-unit
// subdivision factor, e.g. subunit 100 for currencies counted in cents.
type Commodity struct {
	ID        uuid.UUID `json:"id" db:"id"`
	LedgerID  uuid.UUID `json:"ledger_id" db:"ledger_id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	Symbol    *string   `json:"symbol,omitempty" db:"symbol"`
	Subunit   int64     `json:"subunit" db:"subunit"`
	NoMarket  bool      `json:"no_market" db:"no_market"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type NewCommodity struct {
	Name     string  `json:"name" validate:"required,min=1,max=256"`
	Code     string  `json:"code" validate:"required,min=1,max=8"`
	Symbol   *string `json:"symbol" validate:"omitempty,min=1,max=8"`
	Subunit  int64   `json:"subunit" validate:"omitempty,min=1"`
	NoMarket bool    `json:"no_market"`
}

const DefaultSubunit = 100

type UpdateCommodity struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=256"`
	Code     *string `json:"code" validate:"omitempty,min=1,max=8"`
	Symbol   *string `json:"symbol" validate:"omitempty,min=1,max=8"`
	Subunit  *int64  `json:"subunit" validate:"omitempty,min=1"`
	NoMarket *bool   `json:"no_market"`
}
