package services

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RationemOpum/opum-ledger/internal/models"
	"github.com/RationemOpum/opum-ledger/internal/store"
)

// TransactionService serves the transaction endpoints of a ledger.
type TransactionService struct {
	transactions *store.TransactionStore
	accounts     *store.AccountStore
	ledgers      *store.LedgerStore
	validator    *ValidationHelper
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{
		transactions: store.NewTransactionStore(db),
		accounts:     store.NewAccountStore(db),
		ledgers:      store.NewLedgerStore(db),
		validator:    NewValidationHelper(),
	}
}

// TransactionsPage is one page of a filtered transaction listing. Count is
// the total number of matches before skip/limit.
type TransactionsPage struct {
	Transactions []models.Transaction `json:"transactions"`
	Skip         int                  `json:"skip"`
	Limit        int                  `json:"limit"`
	Count        int                  `json:"count"`
}

// accountBuckets groups account path filters by direction sigil: "+" means
// the account must appear as the credited leg, "-" as the debited leg, "="
// or no sigil as either.
type accountBuckets struct {
	credited []string
	debited  []string
	any      []string
}

func groupAccounts(accounts []string) accountBuckets {
	var buckets accountBuckets
	for _, account := range accounts {
		switch {
		case strings.HasPrefix(account, "+"):
			buckets.credited = append(buckets.credited, account[1:])
		case strings.HasPrefix(account, "-"):
			buckets.debited = append(buckets.debited, account[1:])
		case strings.HasPrefix(account, "="):
			buckets.any = append(buckets.any, account[1:])
		default:
			buckets.any = append(buckets.any, account)
		}
	}
	return buckets
}

func accountIDs(accounts []models.Account) []uuid.UUID {
	ids := make([]uuid.UUID, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}
	return ids
}

// resolveAccounts turns each non-empty bucket of path filters into the set
// of matching account ids. A requested bucket that resolves to no accounts
// stays non-nil so the resulting clause matches nothing.
func (s *TransactionService) resolveAccounts(r *http.Request, ledgerID uuid.UUID, buckets accountBuckets, filter *store.TransactionFilter) error {
	resolve := func(paths []string) ([]uuid.UUID, error) {
		if len(paths) == 0 {
			return nil, nil
		}
		accounts, err := s.accounts.ByLedger(r.Context(), ledgerID, paths)
		if err != nil {
			return nil, err
		}
		return accountIDs(accounts), nil
	}

	var err error
	if len(buckets.credited) > 0 {
		if filter.Credited, err = resolve(buckets.credited); err != nil {
			return err
		}
	}
	if len(buckets.debited) > 0 {
		if filter.Debited, err = resolve(buckets.debited); err != nil {
			return err
		}
	}
	if len(buckets.any) > 0 {
		if filter.Any, err = resolve(buckets.any); err != nil {
			return err
		}
	}
	return nil
}

type listParams struct {
	Skip  int `validate:"min=0"`
	Limit int `validate:"min=1,max=500"`
}

var errBadParam = errors.New("invalid query parameter")

func parseListParams(r *http.Request, filter *store.TransactionFilter) (listParams, string, error) {
	params := listParams{Skip: 0, Limit: 20}
	query := r.URL.Query()

	if raw := query.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return params, "", errBadParam
		}
		params.Skip = n
	}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return params, "", errBadParam
		}
		params.Limit = n
	}
	if raw := query.Get("after"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return params, "", errBadParam
		}
		after := time.Unix(ts, 0).UTC()
		filter.After = &after
	}
	if raw := query.Get("before"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return params, "", errBadParam
		}
		before := time.Unix(ts, 0).UTC()
		filter.Before = &before
	}
	if raw := query.Get("exchange"); raw != "" {
		exchange, err := strconv.ParseBool(raw)
		if err != nil {
			return params, "", errBadParam
		}
		filter.Exchange = &exchange
	}
	filter.Tags = query["tags"]
	if raw := query.Get("state"); raw != "" {
		switch state := models.TransactionState(raw); state {
		case models.StateUncleared, models.StatePending, models.StateCleared:
			filter.State = state
		default:
			return params, "", errBadParam
		}
	}

	// A literal "+" in a query string decodes to a space, so both
	// spellings of the ascending token are accepted.
	var orderBy string
	switch strings.TrimSpace(query.Get("order_by")) {
	case "", "-date_time":
		orderBy = "date_time DESC"
	case "+date_time", "date_time":
		orderBy = "date_time ASC"
	default:
		return params, "", errBadParam
	}

	return params, orderBy, nil
}

// ListTransactions returns a filtered page of the ledger's transactions
// @Summary List transactions
// @Description Filter by accounts (with +/-/= direction sigils), date range, exchange flag, tags and state
// @Tags transactions
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param accounts query []string false "Account path filters, optionally prefixed with +, - or ="
// @Param after query int false "Inclusive lower bound, Unix seconds"
// @Param before query int false "Exclusive upper bound, Unix seconds"
// @Param exchange query bool false "Only transactions with (true) or without (false) priced details"
// @Param tags query []string false "Transaction must carry all given tags"
// @Param state query string false "uncleared, pending or cleared"
// @Param skip query int false "Offset into the filtered result"
// @Param limit query int false "Page size (default 20)"
// @Param order_by query string false "+date_time or -date_time (default)"
// @Success 200 {object} TransactionsPage
// @Failure 400 {object} ErrorResponse
// @Router /transactions/{ledger_id} [get]
func (s *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}

	var filter store.TransactionFilter
	params, orderBy, err := parseListParams(r, &filter)
	if err != nil {
		SendErrorResponse(w, "Invalid query parameter", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&params); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	buckets := groupAccounts(r.URL.Query()["accounts"])
	if err := s.resolveAccounts(r, ledgerID, buckets, &filter); err != nil {
		handleStoreError(w, err, "Transaction")
		return
	}

	transactions, count, err := s.transactions.Find(r.Context(), ledgerID, filter, orderBy, params.Skip, params.Limit)
	if err != nil {
		handleStoreError(w, err, "Transaction")
		return
	}
	writeJSON(w, http.StatusOK, TransactionsPage{
		Transactions: transactions,
		Skip:         params.Skip,
		Limit:        params.Limit,
		Count:        count,
	})
}

// CreateTransaction records a balanced transaction in the ledger
// @Summary Create transaction
// @Description Create a transaction whose details' settlement totals sum to zero
// @Tags transactions
// @Accept json
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param transaction body models.NewTransaction true "Transaction data"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{ledger_id} [post]
func (s *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	var req models.NewTransaction
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if err := req.ValidateDetails(); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	exists, err := s.ledgers.Exists(r.Context(), ledgerID)
	if err != nil {
		handleStoreError(w, err, "Transaction")
		return
	}
	if !exists {
		SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		return
	}

	transaction, err := s.transactions.Create(r.Context(), ledgerID, req)
	if err != nil {
		handleStoreError(w, err, "Transaction")
		return
	}
	zap.L().Info("Transaction created",
		zap.String("ledger_id", ledgerID.String()),
		zap.String("transaction_id", transaction.ID.String()),
		zap.Int("details", len(transaction.Details)))
	writeEntity(w, transaction, transaction.UpdatedAt)
}

// GetTransaction returns one transaction
// @Summary Get transaction
// @Tags transactions
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param transaction_id path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{ledger_id}/{transaction_id} [get]
func (s *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ledgerID, transactionID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	transaction, err := s.transactions.Get(r.Context(), ledgerID, transactionID)
	if err != nil {
		handleStoreError(w, err, "Transaction")
		return
	}
	writeEntity(w, transaction, transaction.UpdatedAt)
}

// UpdateTransaction applies a partial update under the If-Match
// precondition. Replaced details are not re-validated for balance.
// @Summary Update transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param transaction_id path string true "Transaction ID"
// @Param If-Match header string false "ETag from the previous response"
// @Param transaction body models.UpdateTransaction true "Fields to update"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /transactions/{ledger_id}/{transaction_id} [put]
func (s *TransactionService) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ledgerID, transactionID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	var req models.UpdateTransaction
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transaction, err := s.transactions.UpdateTransaction(r.Context(), ledgerID, transactionID, req, parseIfMatch(r))
	if err != nil {
		handleStoreError(w, err, "Transaction")
		return
	}
	writeEntity(w, transaction, transaction.UpdatedAt)
}

// DeleteTransaction soft-deletes a transaction
// @Summary Delete transaction
// @Tags transactions
// @Param ledger_id path string true "Ledger ID"
// @Param transaction_id path string true "Transaction ID"
// @Param If-Match header string false "ETag from the previous response"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /transactions/{ledger_id}/{transaction_id} [delete]
func (s *TransactionService) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ledgerID, transactionID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	if err := s.transactions.Delete(r.Context(), ledgerID, transactionID, parseIfMatch(r)); err != nil {
		handleStoreError(w, err, "Transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *TransactionService) pathIDs(w http.ResponseWriter, r *http.Request) (ledgerID, transactionID uuid.UUID, ok bool) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return ledgerID, transactionID, false
	}
	transactionID, err = urlUUID(r, "transaction_id")
	if err != nil {
		SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return ledgerID, transactionID, false
	}
	return ledgerID, transactionID, true
}
