package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/RationemOpum/opum-ledger/internal/models"
)

// Detail clauses run against the jsonb details column. jsonb_exists is used
// instead of the ? operator so the expressions survive placeholder
// renumbering.
const (
	detailMatch = "EXISTS (SELECT 1 FROM jsonb_array_elements(details) AS d" +
		" WHERE d->>'account_id' = ANY(?::text[])%s)"
	detailPriced   = "EXISTS (SELECT 1 FROM jsonb_array_elements(details) AS d WHERE jsonb_exists(d, 'price'))"
	detailUnpriced = "NOT " + detailPriced
)

// TransactionFilter is the persistence-ready translation of the list query
// parameters. Account buckets hold already-resolved account ids, one bucket
// per direction sigil; a non-nil empty bucket matches nothing, so a filter
// on an unknown path yields an empty page rather than an unfiltered one.
type TransactionFilter struct {
	Credited []uuid.UUID // "+" sigil: account must appear with amount > 0
	Debited  []uuid.UUID // "-" sigil: account must appear with amount < 0
	Any      []uuid.UUID // "=" or bare: account must appear, either sign

	After    *time.Time // inclusive
	Before   *time.Time // exclusive
	Exchange *bool
	Tags     []string
	State    models.TransactionState
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (f TransactionFilter) conds() []Cond {
	var conds []Cond
	if f.After != nil {
		conds = append(conds, Cond{Expr: "date_time >= ?", Args: []any{*f.After}})
	}
	if f.Before != nil {
		conds = append(conds, Cond{Expr: "date_time < ?", Args: []any{*f.Before}})
	}
	if len(f.Tags) > 0 {
		conds = append(conds, Cond{Expr: "tags @> ?::text[]", Args: []any{pq.Array(f.Tags)}})
	}
	if f.State != "" {
		conds = append(conds, Cond{Expr: "state = ?", Args: []any{string(f.State)}})
	}
	if f.Exchange != nil {
		if *f.Exchange {
			conds = append(conds, Cond{Expr: detailPriced})
		} else {
			conds = append(conds, Cond{Expr: detailUnpriced})
		}
	}
	if f.Credited != nil {
		conds = append(conds, Cond{
			Expr: fmt.Sprintf(detailMatch, " AND (d->'amount'->>'amount')::bigint > 0"),
			Args: []any{pq.Array(idStrings(f.Credited))},
		})
	}
	if f.Debited != nil {
		conds = append(conds, Cond{
			Expr: fmt.Sprintf(detailMatch, " AND (d->'amount'->>'amount')::bigint < 0"),
			Args: []any{pq.Array(idStrings(f.Debited))},
		})
	}
	if f.Any != nil {
		conds = append(conds, Cond{
			Expr: fmt.Sprintf(detailMatch, ""),
			Args: []any{pq.Array(idStrings(f.Any))},
		})
	}
	return conds
}

var transactionMapper = Mapper[models.Transaction]{
	Table:   "transactions",
	Columns: []string{"id", "ledger_id", "description", "date_time", "details", "tags", "state", "created_at", "updated_at"},
	Scan: func(row RowScanner) (models.Transaction, error) {
		var t models.Transaction
		var details []byte
		var state string
		err := row.Scan(&t.ID, &t.LedgerID, &t.Description, &t.DateTime, &details,
			pq.Array(&t.Tags), &state, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return t, err
		}
		t.State = models.TransactionState(state)
		if err := json.Unmarshal(details, &t.Details); err != nil {
			return t, fmt.Errorf("decode details: %w", err)
		}
		return t, nil
	},
}

// TransactionStore persists transactions. Details live in a jsonb column,
// replaced wholesale on update so every write stays a single-row
// conditional statement.
type TransactionStore struct {
	*Store[models.Transaction]
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{New(db, transactionMapper)}
}

func encodeDetails(details []models.Detail) ([]byte, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return raw, nil
}

func (s *TransactionStore) Create(ctx context.Context, ledgerID uuid.UUID, n models.NewTransaction) (models.Transaction, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.Transaction{}, fmt.Errorf("new transaction id: %w", err)
	}
	details, err := encodeDetails(n.Details)
	if err != nil {
		return models.Transaction{}, err
	}
	state := n.State
	if state == "" {
		state = models.StateUncleared
	}
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	now := Now()
	return s.Insert(ctx, id,
		[]string{"id", "ledger_id", "description", "date_time", "details", "tags", "state", "created_at", "updated_at"},
		[]any{id, ledgerID, n.Description, n.DateTime.UTC(), details, pq.Array(tags), string(state), now, now},
	)
}

func (s *TransactionStore) Get(ctx context.Context, ledgerID, id uuid.UUID) (models.Transaction, error) {
	return s.FindByID(ctx, id, ledgerScope(ledgerID)...)
}

// Find lists the ledger's transactions matching the filter, newest or
// oldest first per orderBy, and returns the total match count before
// skip/limit so pagination metadata stays consistent across pages.
func (s *TransactionStore) Find(ctx context.Context, ledgerID uuid.UUID, filter TransactionFilter, orderBy string, skip, limit int) ([]models.Transaction, int, error) {
	conds := append(ledgerScope(ledgerID), filter.conds()...)
	count, err := s.Count(ctx, conds)
	if err != nil {
		return nil, 0, err
	}
	transactions, err := s.FindMany(ctx, conds, orderBy, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	return transactions, count, nil
}

func (s *TransactionStore) UpdateTransaction(ctx context.Context, ledgerID, id uuid.UUID, data models.UpdateTransaction, expected *time.Time) (models.Transaction, error) {
	patch := NewPatch()
	if data.Description != nil {
		patch.Set("description", *data.Description)
	}
	if data.DateTime != nil {
		patch.Set("date_time", data.DateTime.UTC())
	}
	if data.Details != nil {
		details, err := encodeDetails(data.Details)
		if err != nil {
			return models.Transaction{}, err
		}
		patch.Set("details", details)
	}
	if data.Tags != nil {
		patch.Set("tags", pq.Array(data.Tags))
	}
	if data.State != nil {
		patch.Set("state", string(*data.State))
	}
	return s.Update(ctx, id, ledgerScope(ledgerID), expected, patch)
}

func (s *TransactionStore) Delete(ctx context.Context, ledgerID, id uuid.UUID, expected *time.Time) error {
	return s.SoftDelete(ctx, id, ledgerScope(ledgerID), expected)
}

const balanceQuery = `SELECT (d->'amount'->>'commodity_id')::uuid AS commodity_id,
	SUM((d->'amount'->>'amount')::bigint) AS balance
FROM transactions, jsonb_array_elements(details) AS d
WHERE ledger_id = $1 AND deleted_at IS NULL AND d->>'account_id' = $2
GROUP BY 1
ORDER BY 1`

// Balance sums the account's posted amounts per commodity across the
// ledger's live transactions.
func (s *TransactionStore) Balance(ctx context.Context, ledgerID, accountID uuid.UUID) ([]models.AccountBalance, error) {
	rows, err := s.db.QueryContext(ctx, balanceQuery, ledgerID, accountID.String())
	if err != nil {
		return nil, fmt.Errorf("account balance: %w", err)
	}
	defer rows.Close()

	balances := []models.AccountBalance{}
	for rows.Next() {
		var b models.AccountBalance
		if err := rows.Scan(&b.CommodityID, &b.Balance); err != nil {
			return nil, fmt.Errorf("account balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
