package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RationemOpum/opum-ledger/internal/models"
)

func TestTransactionFilterConds(t *testing.T) {
	t.Run("empty filter has no conditions", func(t *testing.T) {
		assert.Empty(t, TransactionFilter{}.conds())
	})

	t.Run("time range", func(t *testing.T) {
		after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		before := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		conds := TransactionFilter{After: &after, Before: &before}.conds()
		require.Len(t, conds, 2)
		assert.Equal(t, "date_time >= ?", conds[0].Expr)
		assert.Equal(t, []any{after}, conds[0].Args)
		assert.Equal(t, "date_time < ?", conds[1].Expr)
		assert.Equal(t, []any{before}, conds[1].Args)
	})

	t.Run("tags require every tag", func(t *testing.T) {
		conds := TransactionFilter{Tags: []string{"trip", "work"}}.conds()
		require.Len(t, conds, 1)
		assert.Equal(t, "tags @> ?::text[]", conds[0].Expr)
	})

	t.Run("state", func(t *testing.T) {
		conds := TransactionFilter{State: models.StateCleared}.conds()
		require.Len(t, conds, 1)
		assert.Equal(t, "state = ?", conds[0].Expr)
		assert.Equal(t, []any{"cleared"}, conds[0].Args)
	})

	t.Run("exchange", func(t *testing.T) {
		yes, no := true, false
		conds := TransactionFilter{Exchange: &yes}.conds()
		require.Len(t, conds, 1)
		assert.Equal(t, detailPriced, conds[0].Expr)
		assert.Empty(t, conds[0].Args)

		conds = TransactionFilter{Exchange: &no}.conds()
		require.Len(t, conds, 1)
		assert.Equal(t, detailUnpriced, conds[0].Expr)
	})

	t.Run("credited bucket constrains the sign", func(t *testing.T) {
		conds := TransactionFilter{Credited: []uuid.UUID{uuid.New()}}.conds()
		require.Len(t, conds, 1)
		assert.Contains(t, conds[0].Expr, "jsonb_array_elements(details)")
		assert.Contains(t, conds[0].Expr, "(d->'amount'->>'amount')::bigint > 0")
	})

	t.Run("debited bucket constrains the sign", func(t *testing.T) {
		conds := TransactionFilter{Debited: []uuid.UUID{uuid.New()}}.conds()
		require.Len(t, conds, 1)
		assert.Contains(t, conds[0].Expr, "(d->'amount'->>'amount')::bigint < 0")
	})

	t.Run("any bucket ignores the sign", func(t *testing.T) {
		conds := TransactionFilter{Any: []uuid.UUID{uuid.New()}}.conds()
		require.Len(t, conds, 1)
		assert.NotContains(t, conds[0].Expr, "bigint")
	})

	t.Run("empty resolved bucket still emits its clause", func(t *testing.T) {
		// A bucket that resolved to no accounts must match nothing, not
		// everything, so the clause is emitted with an empty array.
		conds := TransactionFilter{Any: []uuid.UUID{}}.conds()
		require.Len(t, conds, 1)
	})

	t.Run("renumbering keeps detail clauses valid", func(t *testing.T) {
		conds := TransactionFilter{Any: []uuid.UUID{uuid.New()}}.conds()
		require.Len(t, conds, 1)

		n := 2
		expr := renumber(conds[0].Expr, &n)
		assert.Contains(t, expr, "= ANY($2::text[])")
		assert.NotContains(t, expr, "?")
		assert.Equal(t, 3, n)
	})
}
