package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/consultdesk/booking-engine/internal/availability"
	"github.com/consultdesk/booking-engine/internal/reservation"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

// AvailabilityHandler serves the public slot listing.
type AvailabilityHandler struct {
	manager *reservation.Manager
	logger  *logging.Logger
}

func NewAvailabilityHandler(manager *reservation.Manager, logger *logging.Logger) *AvailabilityHandler {
	if manager == nil {
		panic("handlers: reservation manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{manager: manager, logger: logger}
}

type availabilityResponse struct {
	Date  string              `json:"date"`
	Slots []availability.Slot `json:"slots"`
}

// List returns the bookable slots for a date as the caller's session sees
// them.
// Route: GET /availability?date=YYYY-MM-DD
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}

	slots, err := h.manager.AvailableSlots(r.Context(), date, sessionID(r))
	if err != nil {
		h.logger.Error("availability lookup failed", "error", err, "date", date)
		writeDomainError(w, err)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Date: date, Slots: slots})
}
