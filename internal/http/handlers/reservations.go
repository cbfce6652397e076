package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/consultdesk/booking-engine/internal/appointment"
	"github.com/consultdesk/booking-engine/internal/reservation"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

// ReservationHandler serves the hold lifecycle: claim a slot, release it, or
// confirm it into an appointment.
type ReservationHandler struct {
	manager *reservation.Manager
	logger  *logging.Logger
}

func NewReservationHandler(manager *reservation.Manager, logger *logging.Logger) *ReservationHandler {
	if manager == nil {
		panic("handlers: reservation manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReservationHandler{manager: manager, logger: logger}
}

type reserveRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type holdResponse struct {
	HoldID    uuid.UUID `json:"hold_id"`
	Date      string    `json:"date"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Reserve claims a slot with a TTL-bounded hold.
// Route: POST /reservations
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusBadRequest, "X-Session-Id header is required")
		return
	}

	var req reserveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Start) == "" || strings.TrimSpace(req.End) == "" {
		writeError(w, http.StatusBadRequest, "date, start, and end are required")
		return
	}

	hold, err := h.manager.Reserve(r.Context(), req.Date, req.Start, req.End, session)
	if err != nil {
		if err != reservation.ErrSlotUnavailable {
			h.logger.Error("reserve failed", "error", err, "date", req.Date, "start", req.Start)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, holdResponse{
		HoldID:    hold.ID,
		Date:      hold.Date,
		Start:     hold.StartTime,
		End:       hold.EndTime,
		ExpiresAt: hold.ExpiresAt,
	})
}

// Release frees a held slot before its TTL runs out.
// Route: DELETE /reservations/{holdID}
func (h *ReservationHandler) Release(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusBadRequest, "X-Session-Id header is required")
		return
	}
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "holdID must be a UUID")
		return
	}

	if err := h.manager.Release(r.Context(), holdID, session); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Confirm promotes a hold into a scheduled appointment once the caller's
// payment step has settled.
// Route: POST /reservations/{holdID}/confirm
func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusBadRequest, "X-Session-Id header is required")
		return
	}
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "holdID must be a UUID")
		return
	}

	var details appointment.Details
	if err := decodeJSON(r, &details); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := details.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	a, err := h.manager.Promote(r.Context(), holdID, session, details)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}
