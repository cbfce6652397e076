package handlers

import (
	"net/http"

	"github.com/consultdesk/booking-engine/internal/schedule"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

// AdminScheduleHandler lets the practice read and replace the recurring
// schedule configuration.
type AdminScheduleHandler struct {
	store  *schedule.Store
	logger *logging.Logger
}

func NewAdminScheduleHandler(store *schedule.Store, logger *logging.Logger) *AdminScheduleHandler {
	if store == nil {
		panic("handlers: schedule store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminScheduleHandler{store: store, logger: logger}
}

type scheduleResponse struct {
	Config   *schedule.Config `json:"config"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Get returns the active schedule configuration.
// Route: GET /admin/schedule
func (h *AdminScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("schedule read failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Config: cfg})
}

// Put replaces the schedule configuration. Existing appointments are never
// touched; a shrunk schedule only stops offering future slots. Validation
// warnings come back alongside the accepted config.
// Route: PUT /admin/schedule
func (h *AdminScheduleHandler) Put(w http.ResponseWriter, r *http.Request) {
	var cfg schedule.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	warnings, err := h.store.Set(r.Context(), &cfg)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("schedule updated", "version", cfg.Version, "warnings", len(warnings))
	writeJSON(w, http.StatusOK, scheduleResponse{Config: &cfg, Warnings: warnings})
}
