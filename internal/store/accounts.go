package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/RationemOpum/opum-ledger/internal/models"
)

var accountMapper = Mapper[models.Account]{
	Table:   "accounts",
	Columns: []string{"id", "ledger_id", "name", "path", "paths", "created_at", "updated_at"},
	Scan: func(row RowScanner) (models.Account, error) {
		var a models.Account
		err := row.Scan(&a.ID, &a.LedgerID, &a.Name, &a.Path, pq.Array(&a.Paths), &a.CreatedAt, &a.UpdatedAt)
		return a, err
	},
}

// AccountStore persists accounts. Every operation is scoped to one ledger.
type AccountStore struct {
	*Store[models.Account]
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{New(db, accountMapper)}
}

func ledgerScope(ledgerID uuid.UUID) []Cond {
	return []Cond{{Expr: "ledger_id = ?", Args: []any{ledgerID}}}
}

func (s *AccountStore) Create(ctx context.Context, ledgerID uuid.UUID, n models.NewAccount) (models.Account, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.Account{}, fmt.Errorf("new account id: %w", err)
	}
	now := Now()
	return s.Insert(ctx, id,
		[]string{"id", "ledger_id", "name", "path", "paths", "created_at", "updated_at"},
		[]any{id, ledgerID, n.Name, n.Path, pq.Array(models.SplitPath(n.Path)), now, now},
	)
}

func (s *AccountStore) Get(ctx context.Context, ledgerID, id uuid.UUID) (models.Account, error) {
	return s.FindByID(ctx, id, ledgerScope(ledgerID)...)
}

// ByLedger lists the ledger's accounts. When paths is non-empty only
// accounts whose ancestor-prefix list overlaps the given paths are
// returned; this is how a branch filter like "Assets:Cash" matches every
// account at or below that path.
func (s *AccountStore) ByLedger(ctx context.Context, ledgerID uuid.UUID, paths []string) ([]models.Account, error) {
	conds := ledgerScope(ledgerID)
	if len(paths) > 0 {
		conds = append(conds, Cond{Expr: "paths && ?::text[]", Args: []any{pq.Array(paths)}})
	}
	return s.FindMany(ctx, conds, "path", 0, 0)
}

func (s *AccountStore) UpdateAccount(ctx context.Context, ledgerID, id uuid.UUID, data models.UpdateAccount, expected *time.Time) (models.Account, error) {
	patch := NewPatch()
	if data.Name != nil {
		patch.Set("name", *data.Name)
	}
	if data.Path != nil {
		patch.Set("path", *data.Path)
		patch.Set("paths", pq.Array(models.SplitPath(*data.Path)))
	}
	return s.Update(ctx, id, ledgerScope(ledgerID), expected, patch)
}

func (s *AccountStore) Delete(ctx context.Context, ledgerID, id uuid.UUID, expected *time.Time) error {
	return s.SoftDelete(ctx, id, ledgerScope(ledgerID), expected)
}
