package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detail(accountID uuid.UUID, amount int64) Detail {
	return Detail{
		AccountID: accountID,
		Amount:    Amount{CommodityID: uuid.New(), Amount: amount},
	}
}

func TestDetailTotal(t *testing.T) {
	t.Run("no price returns the raw amount", func(t *testing.T) {
		d := detail(uuid.New(), 5000)
		total, err := d.Total()
		require.NoError(t, err)
		assert.Equal(t, d.Amount, total)
	})

	t.Run("exact conversion", func(t *testing.T) {
		usd := uuid.New()
		d := Detail{
			AccountID: uuid.New(),
			Amount:    Amount{CommodityID: uuid.New(), Amount: 10000},
			Price: &Price{
				CommodityID: usd,
				Price:       FractionPrice{Numerator: 9200, Denominator: 10000},
			},
		}
		total, err := d.Total()
		require.NoError(t, err)
		assert.Equal(t, int64(9200), total.Amount)
		assert.Equal(t, usd, total.CommodityID)
	})

	t.Run("non-integral conversion is rejected, never rounded", func(t *testing.T) {
		d := Detail{
			AccountID: uuid.New(),
			Amount:    Amount{CommodityID: uuid.New(), Amount: 10000},
			Price: &Price{
				CommodityID: uuid.New(),
				Price:       FractionPrice{Numerator: 1, Denominator: 3},
			},
		}
		_, err := d.Total()
		assert.ErrorIs(t, err, ErrNonIntegralPrice)
	})

	t.Run("negative amount converts exactly", func(t *testing.T) {
		d := Detail{
			AccountID: uuid.New(),
			Amount:    Amount{CommodityID: uuid.New(), Amount: -300},
			Price: &Price{
				CommodityID: uuid.New(),
				Price:       FractionPrice{Numerator: 2, Denominator: 3},
			},
		}
		total, err := d.Total()
		require.NoError(t, err)
		assert.Equal(t, int64(-200), total.Amount)
	})

	t.Run("zero denominator is rejected", func(t *testing.T) {
		d := Detail{
			AccountID: uuid.New(),
			Amount:    Amount{CommodityID: uuid.New(), Amount: 100},
			Price: &Price{
				CommodityID: uuid.New(),
				Price:       FractionPrice{Numerator: 1, Denominator: 0},
			},
		}
		_, err := d.Total()
		assert.ErrorIs(t, err, ErrNonIntegralPrice)
	})
}

func newTransaction(details ...Detail) NewTransaction {
	return NewTransaction{
		Description: "test",
		DateTime:    time.Now(),
		Details:     details,
	}
}

func TestValidateDetails(t *testing.T) {
	t.Run("balanced two-leg transaction", func(t *testing.T) {
		tx := newTransaction(detail(uuid.New(), -5000), detail(uuid.New(), 5000))
		assert.NoError(t, tx.ValidateDetails())
	})

	t.Run("empty details", func(t *testing.T) {
		tx := newTransaction()
		assert.ErrorIs(t, tx.ValidateDetails(), ErrEmptyDetails)
	})

	t.Run("unbalanced transaction", func(t *testing.T) {
		tx := newTransaction(detail(uuid.New(), -5000), detail(uuid.New(), 4000))
		assert.ErrorIs(t, tx.ValidateDetails(), ErrUnbalanced)
	})

	t.Run("balanced exchange via price conversion", func(t *testing.T) {
		// -10000 UAH plus 10000 UAH priced at 9200/10000 into USD:
		// the converted leg settles at 9200, balanced by a -9200 USD leg.
		uah := uuid.New()
		usd := uuid.New()
		tx := newTransaction(
			Detail{
				AccountID: uuid.New(),
				Amount:    Amount{CommodityID: uah, Amount: 10000},
				Price: &Price{
					CommodityID: usd,
					Price:       FractionPrice{Numerator: 9200, Denominator: 10000},
				},
			},
			Detail{
				AccountID: uuid.New(),
				Amount:    Amount{CommodityID: usd, Amount: -9200},
			},
		)
		assert.NoError(t, tx.ValidateDetails())
	})

	t.Run("invalid price propagates", func(t *testing.T) {
		tx := newTransaction(
			Detail{
				AccountID: uuid.New(),
				Amount:    Amount{CommodityID: uuid.New(), Amount: 10000},
				Price: &Price{
					CommodityID: uuid.New(),
					Price:       FractionPrice{Numerator: 1, Denominator: 3},
				},
			},
			detail(uuid.New(), -3333),
		)
		assert.ErrorIs(t, tx.ValidateDetails(), ErrNonIntegralPrice)
	})

	t.Run("flat sum ignores commodity grouping", func(t *testing.T) {
		// Three unconverted legs in three different commodities that sum
		// to zero overall pass the check even though no single commodity
		// nets to zero. This documents the current flat-sum contract.
		tx := newTransaction(
			detail(uuid.New(), -5000),
			detail(uuid.New(), 3000),
			detail(uuid.New(), 2000),
		)
		assert.NoError(t, tx.ValidateDetails())
	})
}
