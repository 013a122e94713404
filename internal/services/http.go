package services

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RationemOpum/opum-ledger/internal/store"
)

const maxBodyBytes = 1_048_576 // 1 MB

var errBadBody = errors.New("invalid request body")

// decodeJSON reads a single JSON object into dst, rejecting unknown fields,
// oversized bodies and trailing content.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return errBadBody
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errBadBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeEntity writes the entity with its ETag: the updated_at timestamp as
// decimal Unix seconds at microsecond precision.
func writeEntity(w http.ResponseWriter, v any, updatedAt time.Time) {
	w.Header().Set("ETag", formatETag(updatedAt))
	writeJSON(w, http.StatusOK, v)
}

func formatETag(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', -1, 64)
}

// parseIfMatch returns the timestamp carried by the If-Match header, or nil
// when the header is absent. An unparsable value is treated as absent rather
// than rejected, so clients without the header keep last-write-wins semantics.
func parseIfMatch(r *http.Request) *time.Time {
	value := strings.Trim(r.Header.Get("If-Match"), `" `)
	if value == "" {
		return nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Debug("Failed to parse If-Match header", zap.String("value", value))
		return nil
	}
	t := time.UnixMicro(int64(math.Round(seconds * 1e6))).UTC()
	return &t
}

func urlUUID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

// handleStoreError maps persistence errors onto the HTTP error taxonomy.
func handleStoreError(w http.ResponseWriter, err error, entity string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		SendErrorResponse(w, entity+" not found", http.StatusNotFound, nil)
	case errors.Is(err, store.ErrPreconditionFailed):
		SendErrorResponse(w, entity+" has been modified since the provided timestamp", http.StatusPreconditionFailed, nil)
	case errors.Is(err, store.ErrConflict):
		SendErrorResponse(w, "Duplicate "+strings.ToLower(entity)+" already exists", http.StatusConflict, nil)
	case errors.Is(err, store.ErrNoFields):
		SendErrorResponse(w, "No data to update", http.StatusBadRequest, nil)
	default:
		zap.L().Error("Storage failure", zap.String("entity", entity), zap.Error(err))
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
