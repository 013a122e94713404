package services

import (
	"database/sql"
	"net/http"

	"github.com/google/uuid"

	"github.com/RationemOpum/opum-ledger/internal/models"
	"github.com/RationemOpum/opum-ledger/internal/store"
)

// CommodityService serves the commodity endpoints of a ledger.
type CommodityService struct {
	commodities *store.CommodityStore
	validator   *ValidationHelper
}

func NewCommodityService(db *sql.DB) *CommodityService {
	return &CommodityService{
		commodities: store.NewCommodityStore(db),
		validator:   NewValidationHelper(),
	}
}

// ListCommodities returns the ledger's commodities
// @Summary List commodities
// @Tags commodities
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Success 200 {object} object{commodities=[]models.Commodity}
// @Router /commodities/{ledger_id} [get]
func (s *CommodityService) ListCommodities(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	commodities, err := s.commodities.ByLedger(r.Context(), ledgerID)
	if err != nil {
		handleStoreError(w, err, "Commodity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commodities": commodities})
}

// CreateCommodity adds a commodity to the ledger
// @Summary Create commodity
// @Description Create a commodity; the code must be unique within the ledger
// @Tags commodities
// @Accept json
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param commodity body models.NewCommodity true "Commodity data"
// @Success 200 {object} models.Commodity
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /commodities/{ledger_id} [post]
func (s *CommodityService) CreateCommodity(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return
	}
	var req models.NewCommodity
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	commodity, err := s.commodities.Create(r.Context(), ledgerID, req)
	if err != nil {
		handleStoreError(w, err, "Commodity")
		return
	}
	writeEntity(w, commodity, commodity.UpdatedAt)
}

// GetCommodity returns one commodity
// @Summary Get commodity
// @Tags commodities
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param commodity_id path string true "Commodity ID"
// @Success 200 {object} models.Commodity
// @Failure 404 {object} ErrorResponse
// @Router /commodities/{ledger_id}/{commodity_id} [get]
func (s *CommodityService) GetCommodity(w http.ResponseWriter, r *http.Request) {
	ledgerID, commodityID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	commodity, err := s.commodities.Get(r.Context(), ledgerID, commodityID)
	if err != nil {
		handleStoreError(w, err, "Commodity")
		return
	}
	writeEntity(w, commodity, commodity.UpdatedAt)
}

// UpdateCommodity applies a partial update under the If-Match precondition
// @Summary Update commodity
// @Tags commodities
// @Accept json
// @Produce json
// @Param ledger_id path string true "Ledger ID"
// @Param commodity_id path string true "Commodity ID"
// @Param If-Match header string false "ETag from the previous response"
// @Param commodity body models.UpdateCommodity true "Fields to update"
// @Success 200 {object} models.Commodity
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /commodities/{ledger_id}/{commodity_id} [put]
func (s *CommodityService) UpdateCommodity(w http.ResponseWriter, r *http.Request) {
	ledgerID, commodityID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	var req models.UpdateCommodity
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	commodity, err := s.commodities.UpdateCommodity(r.Context(), ledgerID, commodityID, req, parseIfMatch(r))
	if err != nil {
		handleStoreError(w, err, "Commodity")
		return
	}
	writeEntity(w, commodity, commodity.UpdatedAt)
}

// DeleteCommodity soft-deletes a commodity
// @Summary Delete commodity
// @Tags commodities
// @Param ledger_id path string true "Ledger ID"
// @Param commodity_id path string true "Commodity ID"
// @Param If-Match header string false "ETag from the previous response"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 412 {object} ErrorResponse
// @Router /commodities/{ledger_id}/{commodity_id} [delete]
func (s *CommodityService) DeleteCommodity(w http.ResponseWriter, r *http.Request) {
	ledgerID, commodityID, ok := s.pathIDs(w, r)
	if !ok {
		return
	}
	if err := s.commodities.Delete(r.Context(), ledgerID, commodityID, parseIfMatch(r)); err != nil {
		handleStoreError(w, err, "Commodity")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *CommodityService) pathIDs(w http.ResponseWriter, r *http.Request) (ledgerID, commodityID uuid.UUID, ok bool) {
	ledgerID, err := urlUUID(r, "ledger_id")
	if err != nil {
		SendErrorResponse(w, "Invalid ledger id", http.StatusBadRequest, nil)
		return ledgerID, commodityID, false
	}
	commodityID, err = urlUUID(r, "commodity_id")
	if err != nil {
		SendErrorResponse(w, "Invalid commodity id", http.StatusBadRequest, nil)
		return ledgerID, commodityID, false
	}
	return ledgerID, commodityID, true
}
