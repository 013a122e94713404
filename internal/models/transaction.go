package models

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

type TransactionState string

const (
	StateUncleared TransactionState = "uncleared"
	StatePending   TransactionState = "pending"
	StateCleared   TransactionState = "cleared"
)

var (
	ErrEmptyDetails     = errors.New("details can not be empty")
	ErrUnbalanced       = errors.New("transaction is not balanced")
	ErrNonIntegralPrice = errors.New("price conversion is not a whole number of minor units")
)

// Amount is a signed quantity of a commodity in minor units (e.g. cents).
type Amount struct {
	CommodityID uuid.UUID `json:"commodity_id" validate:"required"`
	Amount      int64     `json:"amount"`
}

// FractionPrice is an exact conversion rate expressed as a fraction of
// minor units. Fractions instead of floats so a conversion either yields a
// whole number of minor units or is rejected, never rounded.
type FractionPrice struct {
	Numerator   int64 `json:"numerator" validate:"required"`
	Denominator int64 `json:"denominator" validate:"required,gt=0"`
}

// Price converts a detail's amount into another commodity at an exact rate.
type Price struct {
	CommodityID uuid.UUID     `json:"commodity_id" validate:"required"`
	Price       FractionPrice `json:"price" validate:"required"`
}

// Detail is one leg of a transaction: a signed amount posted to an account,
// optionally converted through a price.
type Detail struct {
	AccountID uuid.UUID `json:"account_id" validate:"required"`
	Amount    Amount    `json:"amount" validate:"required"`
	Price     *Price    `json:"price,omitempty"`
}

// Total is the detail's settlement amount: the raw amount when there is no
// price, otherwise amount multiplied by the price fraction, denominated in
// the price's commodity. A non-integral product is an error.
func (d Detail) Total() (Amount, error) {
	if d.Price == nil {
		return d.Amount, nil
	}
	if d.Price.Price.Denominator <= 0 {
		return Amount{}, fmt.Errorf("%w: denominator must be positive", ErrNonIntegralPrice)
	}
	total := new(big.Rat).SetFrac64(d.Price.Price.Numerator, d.Price.Price.Denominator)
	total.Mul(total, new(big.Rat).SetInt64(d.Amount.Amount))
	if !total.IsInt() {
		return Amount{}, ErrNonIntegralPrice
	}
	return Amount{
		CommodityID: d.Price.CommodityID,
		Amount:      total.Num().Int64(),
	}, nil
}

// Transaction is a balanced set of postings against a ledger's accounts.
type Transaction struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	LedgerID    uuid.UUID        `json:"ledger_id" db:"ledger_id"`
	Description string           `json:"description" db:"description"`
	DateTime    time.Time        `json:"date_time" db:"date_time"`
	Details     []Detail         `json:"details" db:"details"`
	Tags        []string         `json:"tags" db:"tags"`
	State       TransactionState `json:"state" db:"state"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

type NewTransaction struct {
	Description string           `json:"description" validate:"required,min=1,max=1024"`
	DateTime    time.Time        `json:"date_time" validate:"required"`
	Details     []Detail         `json:"details" validate:"required,min=1,dive"`
	Tags        []string         `json:"tags"`
	State       TransactionState `json:"state" validate:"omitempty,oneof=uncleared pending cleared"`
}

// ValidateDetails enforces the balance invariant at creation time: there
// must be at least one detail and the settlement totals of all details must
// sum to exactly zero. The sum is a single accumulator across all details
// regardless of commodity, matching the documented flat-sum contract.
func (t NewTransaction) ValidateDetails() error {
	if len(t.Details) == 0 {
		return ErrEmptyDetails
	}
	var sum int64
	for i, detail := range t.Details {
		total, err := detail.Total()
		if err != nil {
			return fmt.Errorf("detail %d: %w", i, err)
		}
		sum += total.Amount
	}
	if sum != 0 {
		return ErrUnbalanced
	}
	return nil
}

// AccountBalance is one commodity's running sum of an account's postings.
type AccountBalance struct {
	CommodityID uuid.UUID `json:"commodity_id" db:"commodity_id"`
	Balance     int64     `json:"balance" db:"balance"`
}

// UpdateTransaction is a partial patch. Replaced details are not re-checked
// for balance, which matches the update contract.
type UpdateTransaction struct {
	Description *string           `json:"description" validate:"omitempty,min=1,max=1024"`
	DateTime    *time.Time        `json:"date_time"`
	Details     []Detail          `json:"details" validate:"omitempty,min=1,dive"`
	Tags        []string          `json:"tags"`
	State       *TransactionState `json:"state" validate:"omitempty,oneof=uncleared pending cleared"`
}
