package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RationemOpum/opum-ledger/internal/models"
)

var commodityMapper = Mapper[models.Commodity]{
	Table:   "commodities",
	Columns: []string{"id", "ledger_id", "name", "code", "symbol", "subunit", "no_market", "created_at", "updated_at"},
	Scan: func(row RowScanner) (models.Commodity, error) {
		var c models.Commodity
		err := row.Scan(&c.ID, &c.LedgerID, &c.Name, &c.Code, &c.Symbol, &c.Subunit, &c.NoMarket, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	},
}

// CommodityStore persists commodities. Every operation is scoped to one
// ledger; (ledger, code) is unique among non-deleted commodities.
type CommodityStore struct {
	*Store[models.Commodity]
}

func NewCommodityStore(db *sql.DB) *CommodityStore {
	return &CommodityStore{New(db, commodityMapper)}
}

func (s *CommodityStore) Create(ctx context.Context, ledgerID uuid.UUID, n models.NewCommodity) (models.Commodity, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.Commodity{}, fmt.Errorf("new commodity id: %w", err)
	}
	subunit := n.Subunit
	if subunit == 0 {
		subunit = models.DefaultSubunit
	}
	now := Now()
	return s.Insert(ctx, id,
		[]string{"id", "ledger_id", "name", "code", "symbol", "subunit", "no_market", "created_at", "updated_at"},
		[]any{id, ledgerID, n.Name, n.Code, n.Symbol, subunit, n.NoMarket, now, now},
	)
}

func (s *CommodityStore) Get(ctx context.Context, ledgerID, id uuid.UUID) (models.Commodity, error) {
	return s.FindByID(ctx, id, ledgerScope(ledgerID)...)
}

func (s *CommodityStore) ByLedger(ctx context.Context, ledgerID uuid.UUID) ([]models.Commodity, error) {
	return s.FindMany(ctx, ledgerScope(ledgerID), "code", 0, 0)
}

func (s *CommodityStore) UpdateCommodity(ctx context.Context, ledgerID, id uuid.UUID, data models.UpdateCommodity, expected *time.Time) (models.Commodity, error) {
	patch := NewPatch()
	if data.Name != nil {
		patch.Set("name", *data.Name)
	}
	if data.Code != nil {
		patch.Set("code", *data.Code)
	}
	if data.Symbol != nil {
		patch.Set("symbol", *data.Symbol)
	}
	if data.Subunit != nil {
		patch.Set("subunit", *data.Subunit)
	}
	if data.NoMarket != nil {
		patch.Set("no_market", *data.NoMarket)
	}
	return s.Update(ctx, id, ledgerScope(ledgerID), expected, patch)
}

func (s *CommodityStore) Delete(ctx context.Context, ledgerID, id uuid.UUID, expected *time.Time) error {
	return s.SoftDelete(ctx, id, ledgerScope(ledgerID), expected)
}
