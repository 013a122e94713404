package services

import (
	"database/sql"
	"net/http"

	"github.com/RationemOpum/opum-ledger/internal/models"
	"github.com/RationemOpum/opum-ledger/internal/store"
)

// LedgerService serves the ledger CRUD endpoints.
type LedgerService struct {
	ledgers   *store.LedgerStore
	validator *ValidationHelper
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		ledgers:   store.NewLedgerStore(db),
		validator: NewValidationHelper(),
	}
}

// ListLedgers returns all ledgers
// @Summary List ledgers
// @Description Get all non-deleted ledgers
// @Tags ledgers
// @Produce json
// @Success 200 {array} models.Ledger
// @Router /ledgers [get]
func (s *LedgerService) ListLedgers(w http.ResponseWriter, r *http.Request) {
	ledgers, err := s.ledgers.All(r.Context())
	if err != nil {
		handleStoreError(w, err, "Ledger")
		return
	}
	writeJSON(w, http.StatusOK, ledgers)
}

// CreateLedger creates a new ledger
// @Summary Create a ledger
// @Description Create a new ledger with a unique name
// @Tags ledgers
// @Accept json
// @Produce json
// @Param ledger body models.NewLedger true "Ledger data"
// @Success 200 {object} models.Ledger
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /ledgers [post]
func (s *LedgerService) CreateLedger(w http.ResponseWriter, r *http.Request) {
	var req models.NewLedger
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ledger, err := s.ledgers.Create(r.Context(), req)
	if err != nil {
		handleStoreError(w, err, "Ledger")
		return
	}
	writeEntity(w, ledger, ledger.UpdatedAt)
}

// GetLedger returns a ledger by id
// @Summary Get ledger
// @Tags ledgers
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Success 200 {object} models.Ledger
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledger_id} [get]
func (s *LedgerService) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	ledger, err := s.ledgers.Get(r.Context(), id)
	if err != nil {
		handleStoreError(w, err, "Ledger")
		return
	}
	writeEntity(w, ledger, ledger.UpdatedAt)
}

// UpdateLedger applies a partial update under the If-Match precondition
// @Summary Update ledger
// @Tags ledgers
// @Accept json
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param If-Match header string false "ETag from the previous response"
// @Param ledger body models.UpdateLedger true "Fields to update"
// @Success 200 {object} models.Ledger
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /ledgers/{ledger_id} [put]
func (s *LedgerService) UpdateLedger(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	var req models.UpdateLedger
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ledger, err := s.ledgers.UpdateLedger(r.Context(), id, req, parseIfMatch(r))
	if err != nil {
		handleStoreError(w, err, "Ledger")
		return
	}
	writeEntity(w, ledger, ledger.UpdatedAt)
}

// DeleteLedger soft-deletes a ledger
// @Summary Delete ledger
// @Tags ledgers
// @Param ledger_id path string true "Ledger ID"
// @Param If-Match header string false "ETag from the previous response"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /ledgers/{ledger_id} [delete]
func (s *LedgerService) DeleteLedger(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	if err := s.ledgers.Delete(r.Context(), id, parseIfMatch(r)); err != nil {
		handleStoreError(w, err, "Ledger")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
