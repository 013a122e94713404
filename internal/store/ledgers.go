package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RationemOpum/opum-ledger/internal/models"
)

var ledgerMapper = Mapper[models.Ledger]{
	Table:   "ledgers",
	Columns: []string{"id", "name", "description", "created_at", "updated_at"},
	Scan: func(row RowScanner) (models.Ledger, error) {
		var l models.Ledger
		err := row.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt, &l.UpdatedAt)
		return l, err
	},
}

// LedgerStore persists ledgers.
type LedgerStore struct {
	*Store[models.Ledger]
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{New(db, ledgerMapper)}
}

func (s *LedgerStore) Create(ctx context.Context, n models.NewLedger) (models.Ledger, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.Ledger{}, fmt.Errorf("new ledger id: %w", err)
	}
	now := Now()
	return s.Insert(ctx, id,
		[]string{"id", "name", "description", "created_at", "updated_at"},
		[]any{id, n.Name, n.Description, now, now},
	)
}

func (s *LedgerStore) All(ctx context.Context) ([]models.Ledger, error) {
	return s.FindMany(ctx, nil, "created_at", 0, 0)
}

func (s *LedgerStore) Get(ctx context.Context, id uuid.UUID) (models.Ledger, error) {
	return s.FindByID(ctx, id)
}

// Exists reports whether a non-deleted ledger with the id exists.
func (s *LedgerStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	count, err := s.Count(ctx, []Cond{{Expr: "id = ?", Args: []any{id}}})
	return count > 0, err
}

func (s *LedgerStore) UpdateLedger(ctx context.Context, id uuid.UUID, data models.UpdateLedger, expected *time.Time) (models.Ledger, error) {
	patch := NewPatch()
	if data.Name != nil {
		patch.Set("name", *data.Name)
	}
	if data.Description != nil {
		patch.Set("description", *data.Description)
	}
	return s.Update(ctx, id, nil, expected, patch)
}

func (s *LedgerStore) Delete(ctx context.Context, id uuid.UUID, expected *time.Time) error {
	return s.SoftDelete(ctx, id, nil, expected)
}
