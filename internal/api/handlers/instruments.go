package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rstrack/rstrack/internal/contracts"
	"github.com/rstrack/rstrack/internal/registry"
	"github.com/rstrack/rstrack/pkg/logger"
)

// InstrumentHandler serves the instrument registry endpoints.
type InstrumentHandler struct {
	registry *registry.Registry
	logger   *logger.Logger
}

// NewInstrumentHandler creates a new instrument handler.
func NewInstrumentHandler(reg *registry.Registry, log *logger.Logger) *InstrumentHandler {
	return &InstrumentHandler{registry: reg, logger: log}
}

// InstrumentItem is one instrument in API responses.
type InstrumentItem struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// List returns the active universe.
// GET /api/instruments
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.registry.ListActive(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list instruments")
		respondError(w, http.StatusInternalServerError, "Failed to list instruments")
		return
	}

	items := make([]InstrumentItem, 0, len(instruments))
	for _, inst := range instruments {
		items = append(items, InstrumentItem{
			Symbol:   inst.Symbol,
			Name:     inst.Name,
			Sector:   inst.Sector,
			Industry: inst.Industry,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(items),
		"items": items,
	})
}

// Upload imports a ticker CSV. The file is read from the "file"
// multipart field, or from the raw request body when the request is not
// multipart.
// POST /api/instruments/upload
func (h *InstrumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	src := r.Body
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		src = file
	}

	result, err := h.registry.ImportCSV(r.Context(), src)
	if err != nil {
		h.logger.WithError(err).Warn("CSV import rejected")
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"added":       result.Added,
		"reactivated": result.Reactivated,
		"existing":    result.Existing,
		"skipped":     result.Skipped,
	})
}

// Deactivate removes an instrument from the active universe.
// DELETE /api/instruments/{symbol}
func (h *InstrumentHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if err := h.registry.Deactivate(r.Context(), symbol); err != nil {
		var vErr *contracts.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to deactivate instrument")
		respondError(w, http.StatusInternalServerError, "Failed to deactivate instrument")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "status": "deactivated"})
}
