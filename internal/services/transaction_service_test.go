package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RationemOpum/opum-ledger/internal/store"
)

const transactionColumns = "id, ledger_id, description, date_time, details, tags, state, created_at, updated_at"

func transactionRows(id, ledgerID uuid.UUID, details string, updatedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "ledger_id", "description", "date_time", "details", "tags", "state", "created_at", "updated_at"}).
		AddRow(id, ledgerID, "groceries", updatedAt, []byte(details), "{}", "uncleared", updatedAt, updatedAt)
}

func transactionRouter(service *TransactionService) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/transactions/{ledger_id}", service.ListTransactions)
	r.Post("/transactions/{ledger_id}", service.CreateTransaction)
	r.Get("/transactions/{ledger_id}/{transaction_id}", service.GetTransaction)
	r.Put("/transactions/{ledger_id}/{transaction_id}", service.UpdateTransaction)
	r.Delete("/transactions/{ledger_id}/{transaction_id}", service.DeleteTransaction)
	return r
}

func transactionBody(amounts ...int64) string {
	details := make([]string, len(amounts))
	for i, amount := range amounts {
		details[i] = fmt.Sprintf(
			`{"account_id": %q, "amount": {"commodity_id": %q, "amount": %d}}`,
			uuid.New().String(), uuid.New().String(), amount,
		)
	}
	return fmt.Sprintf(
		`{"description": "groceries", "date_time": "2024-03-01T12:00:00Z", "details": [%s]}`,
		strings.Join(details, ", "),
	)
}

func TestGroupAccounts(t *testing.T) {
	buckets := groupAccounts([]string{
		"+Assets:Cash",
		"-Expenses:Food",
		"=Equity",
		"Liabilities:Card",
	})
	assert.Equal(t, []string{"Assets:Cash"}, buckets.credited)
	assert.Equal(t, []string{"Expenses:Food"}, buckets.debited)
	assert.Equal(t, []string{"Equity", "Liabilities:Card"}, buckets.any)

	assert.Equal(t, accountBuckets{}, groupAccounts(nil))
}

func TestParseListParams(t *testing.T) {
	parse := func(t *testing.T, rawQuery string) (listParams, string, store.TransactionFilter, error) {
		t.Helper()
		req := httptest.NewRequest("GET", "/transactions?"+rawQuery, nil)
		var filter store.TransactionFilter
		params, orderBy, err := parseListParams(req, &filter)
		return params, orderBy, filter, err
	}

	t.Run("defaults", func(t *testing.T) {
		params, orderBy, filter, err := parse(t, "")
		require.NoError(t, err)
		assert.Equal(t, listParams{Skip: 0, Limit: 20}, params)
		assert.Equal(t, "date_time DESC", orderBy)
		assert.Equal(t, store.TransactionFilter{}, filter)
	})

	t.Run("pagination and range", func(t *testing.T) {
		params, _, filter, err := parse(t, "skip=40&limit=10&after=1700000000&before=1700086400")
		require.NoError(t, err)
		assert.Equal(t, listParams{Skip: 40, Limit: 10}, params)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), *filter.After)
		assert.Equal(t, time.Unix(1700086400, 0).UTC(), *filter.Before)
	})

	t.Run("exchange tags and state", func(t *testing.T) {
		_, _, filter, err := parse(t, "exchange=true&tags=trip&tags=work&state=pending")
		require.NoError(t, err)
		require.NotNil(t, filter.Exchange)
		assert.True(t, *filter.Exchange)
		assert.Equal(t, []string{"trip", "work"}, filter.Tags)
		assert.Equal(t, "pending", string(filter.State))
	})

	t.Run("ascending order, both spellings", func(t *testing.T) {
		_, orderBy, _, err := parse(t, "order_by=date_time")
		require.NoError(t, err)
		assert.Equal(t, "date_time ASC", orderBy)

		// "+date_time" arrives URL-decoded as " date_time".
		_, orderBy, _, err = parse(t, "order_by=%2Bdate_time")
		require.NoError(t, err)
		assert.Equal(t, "date_time ASC", orderBy)

		_, orderBy, _, err = parse(t, "order_by=-date_time")
		require.NoError(t, err)
		assert.Equal(t, "date_time DESC", orderBy)
	})

	t.Run("rejects bad values", func(t *testing.T) {
		for _, rawQuery := range []string{
			"skip=abc",
			"limit=abc",
			"after=notatime",
			"exchange=maybe",
			"state=settled",
			"order_by=description",
		} {
			_, _, _, err := parse(t, rawQuery)
			assert.ErrorIs(t, err, errBadParam, rawQuery)
		}
	})
}

func TestTransactionService_CreateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	r := transactionRouter(service)
	ledgerID := uuid.New()

	t.Run("balanced transaction is created", func(t *testing.T) {
		id := uuid.New()
		details := `[{"account_id": "` + uuid.New().String() + `", "amount": {"commodity_id": "` + uuid.New().String() + `", "amount": 0}}]`

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM ledgers WHERE deleted_at IS NULL AND id = \\$1").
			WithArgs(ledgerID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT " + transactionColumns + " FROM transactions WHERE id = \\$1 AND deleted_at IS NULL").
			WillReturnRows(transactionRows(id, ledgerID, details, time.Now().UTC()))

		req := httptest.NewRequest("POST", "/transactions/"+ledgerID.String(), strings.NewReader(transactionBody(-5000, 5000)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("ETag"))
	})

	t.Run("unbalanced transaction is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/transactions/"+ledgerID.String(), strings.NewReader(transactionBody(-5000, 4000)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "not balanced")
	})

	t.Run("empty details are rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/transactions/"+ledgerID.String(), strings.NewReader(transactionBody()))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown ledger is 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM ledgers WHERE deleted_at IS NULL AND id = \\$1").
			WithArgs(ledgerID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		req := httptest.NewRequest("POST", "/transactions/"+ledgerID.String(), strings.NewReader(transactionBody(-100, 100)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionService_ListTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	r := transactionRouter(service)
	ledgerID := uuid.New()

	t.Run("default page", func(t *testing.T) {
		id := uuid.New()
		details := `[{"account_id": "` + uuid.New().String() + `", "amount": {"commodity_id": "` + uuid.New().String() + `", "amount": 0}}]`

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE deleted_at IS NULL AND ledger_id = \\$1").
			WithArgs(ledgerID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT "+transactionColumns+" FROM transactions WHERE deleted_at IS NULL AND ledger_id = \\$1 ORDER BY date_time DESC LIMIT \\$2").
			WithArgs(ledgerID, 20).
			WillReturnRows(transactionRows(id, ledgerID, details, time.Now().UTC()))

		req := httptest.NewRequest("GET", "/transactions/"+ledgerID.String(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)
		assert.Contains(t, w.Body.String(), `"limit":20`)
	})

	t.Run("limit above the cap is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/transactions/"+ledgerID.String()+"?limit=1000", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown order token is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/transactions/"+ledgerID.String()+"?order_by=description", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("account filter resolving to nothing yields an empty page", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, ledger_id, name, path, paths, created_at, updated_at FROM accounts WHERE deleted_at IS NULL AND ledger_id = \\$1 AND paths && \\$2::text\\[\\]").
			WillReturnRows(sqlmock.NewRows([]string{"id", "ledger_id", "name", "path", "paths", "created_at", "updated_at"}))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("SELECT " + transactionColumns + " FROM transactions").
			WillReturnRows(sqlmock.NewRows([]string{"id", "ledger_id", "description", "date_time", "details", "tags", "state", "created_at", "updated_at"}))

		req := httptest.NewRequest("GET", "/transactions/"+ledgerID.String()+"?accounts=Assets:Nope", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":0`)
		assert.Contains(t, w.Body.String(), `"transactions":[]`)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionService_UpdateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	r := transactionRouter(service)
	ledgerID, id := uuid.New(), uuid.New()

	t.Run("stale If-Match is 412", func(t *testing.T) {
		current := time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC)

		mock.ExpectQuery("SELECT updated_at FROM transactions WHERE id = \\$1 AND deleted_at IS NULL AND ledger_id = \\$2").
			WithArgs(id, ledgerID).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(current))

		req := httptest.NewRequest("PUT", "/transactions/"+ledgerID.String()+"/"+id.String(),
			strings.NewReader(`{"description": "renamed"}`))
		req.Header.Set("If-Match", formatETag(current.Add(-time.Minute)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	})

	t.Run("replacing details is not re-checked for balance", func(t *testing.T) {
		// Balance validation runs at creation only; a PUT may replace the
		// details with an unbalanced set. This is the currently-permitted
		// behavior of the update contract.
		unbalanced := fmt.Sprintf(
			`[{"account_id": %q, "amount": {"commodity_id": %q, "amount": -5000}}, `+
				`{"account_id": %q, "amount": {"commodity_id": %q, "amount": 4000}}]`,
			uuid.New().String(), uuid.New().String(), uuid.New().String(), uuid.New().String(),
		)

		mock.ExpectQuery("SELECT updated_at FROM transactions WHERE id = \\$1 AND deleted_at IS NULL AND ledger_id = \\$2").
			WithArgs(id, ledgerID).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now().UTC()))
		mock.ExpectExec("UPDATE transactions SET details = \\$1, updated_at = \\$2 WHERE id = \\$3 AND deleted_at IS NULL AND ledger_id = \\$4").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT " + transactionColumns + " FROM transactions WHERE id = \\$1 AND deleted_at IS NULL AND ledger_id = \\$2").
			WillReturnRows(transactionRows(id, ledgerID, unbalanced, time.Now().UTC()))

		req := httptest.NewRequest("PUT", "/transactions/"+ledgerID.String()+"/"+id.String(),
			strings.NewReader(`{"details": `+unbalanced+`}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"amount":4000`)
	})

	t.Run("wrong ledger is 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT updated_at FROM transactions WHERE id = \\$1 AND deleted_at IS NULL AND ledger_id = \\$2").
			WithArgs(id, ledgerID).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

		req := httptest.NewRequest("PUT", "/transactions/"+ledgerID.String()+"/"+id.String(),
			strings.NewReader(`{"description": "renamed"}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
