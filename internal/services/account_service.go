package services

import (
	"database/sql"
	"net/http"

	"github.com/google/uuid"

	"github.com/RationemOpum/opum-ledger/internal/models"
	"github.com/RationemOpum/opum-ledger/internal/store"
)

// AccountService serves the account endpoints of a ledger.
type AccountService struct {
	accounts     *store.AccountStore
	transactions *store.TransactionStore
	validator    *ValidationHelper
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		accounts:     store.NewAccountStore(db),
		transactions: store.NewTransactionStore(db),
		validator:    NewValidationHelper(),
	}
}

// ListAccounts returns the ledger's accounts
// @Summary List accounts
// @Description Get the ledger's accounts, optionally filtered to the branches rooted at the given paths
// @Tags accounts
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param paths query []string false "Branch paths to filter by"
// @Success 200 {object} object{accounts=[]models.Account}
// @Failure 400 {object} ErrorResponse
// @Router /accounts/{ledger_id} [get]
func (s *AccountService) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	accounts, err := s.accounts.ByLedger(r.Context(), ledgerID, r.URL.Query()["paths"])
	if err != nil {
		handleStoreError(w, err, "Account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// CreateAccount adds an account to the ledger
// @Summary Create account
// @Description Create an account; the path must be rooted at Assets, Liabilities, Incomes, Expenses or Equity
// @Tags accounts
// @Accept json
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param account body models.NewAccount true "Account data"
// @Success 200 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /accounts/{ledger_id} [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	var req models.NewAccount
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if err := req.Normalize(); err != nil {
		SendErrorResponse(w, "Invalid root path", http.StatusBadRequest, nil)
		return
	}

	account, err := s.accounts.Create(r.Context(), ledgerID, req)
	if err != nil {
		handleStoreError(w, err, "Account")
		return
	}
	writeEntity(w, account, account.UpdatedAt)
}

// GetAccount returns one account
// @Summary Get account
// @Tags accounts
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param account_id path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{ledger_id}/{account_id} [get]
func (s *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	ledgerID, accountID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	account, err := s.accounts.Get(r.Context(), ledgerID, accountID)
	if err != nil {
		handleStoreError(w, err, "Account")
		return
	}
	writeEntity(w, account, account.UpdatedAt)
}

// UpdateAccount applies a partial update under the If-Match precondition
// @Summary Update account
// @Tags accounts
// @Accept json
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param account_id path string true "Account ID"
// @Param If-Match header string false "ETag from the previous response"
// @Param account body models.UpdateAccount true "Fields to update"
// @Success 200 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /accounts/{ledger_id}/{account_id} [put]
func (s *AccountService) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ledgerID, accountID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	var req models.UpdateAccount
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if err := req.Normalize(); err != nil {
		SendErrorResponse(w, "Invalid root path", http.StatusBadRequest, nil)
		return
	}

	account, err := s.accounts.UpdateAccount(r.Context(), ledgerID, accountID, req, parseIfMatch(r))
	if err != nil {
		handleStoreError(w, err, "Account")
		return
	}
	writeEntity(w, account, account.UpdatedAt)
}

// DeleteAccount soft-deletes an account
// @Summary Delete account
// @Tags accounts
// @Param ledger_id path string true "Ledger ID"
// @Param account_id path string true "Account ID"
// @Param If-Match header string false "ETag from the previous response"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /accounts/{ledger_id}/{account_id} [delete]
func (s *AccountService) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ledgerID, accountID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	if err := s.accounts.Delete(r.Context(), ledgerID, accountID, parseIfMatch(r)); err != nil {
		handleStoreError(w, err, "Account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccountsTree returns the ledger's accounts grouped by exact path
// @Summary Get accounts tree
// @Description Map from path string to the accounts sharing that exact path
// @Tags accounts
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Success 200 {object} map[string][]models.Account
// @Router /accounts/tree/{ledger_id} [get]
func (s *AccountService) GetAccountsTree(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	accounts, err := s.accounts.ByLedger(r.Context(), ledgerID, nil)
	if err != nil {
		handleStoreError(w, err, "Account")
		return
	}

	tree := map[string][]models.Account{}
	for _, account := range accounts {
		tree[account.Path] = append(tree[account.Path], account)
	}
	writeJSON(w, http.StatusOK, tree)
}

// GetAccountBalance returns the account's per-commodity balance
// @Summary Get account balance
// @Description Sum of the account's posted amounts grouped by commodity
// @Tags accounts
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param account_id path string true "Account ID"
// @Success 200 {array} models.AccountBalance
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{ledger_id}/{account_id}/balance [get]
func (s *AccountService) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	ledgerID, accountID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	if _, err := s.accounts.Get(r.Context(), ledgerID, accountID); err != nil {
		handleStoreError(w, err, "Account")
		return
	}
	balances, err := s.transactions.Balance(r.Context(), ledgerID, accountID)
	if err != nil {
		handleStoreError(w, err, "Account")
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *AccountService) pathIDs(w http.ResponseWriter, r *http.Request) (ledgerID, accountID uuid.UUID, ok bool) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return ledgerID, accountID, false
	}
	accountID, err = urlUUID(r, "account_id")
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return ledgerID, accountID, false
	}
	return ledgerID, accountID, true
}
