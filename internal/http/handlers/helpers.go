package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/consultdesk/booking-engine/internal/appointment"
	"github.com/consultdesk/booking-engine/internal/reservation"
	"github.com/consultdesk/booking-engine/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the handler logs the detail.
func writeDomainError(w http.ResponseWriter, err error) {
	var cfgErr *schedule.ConfigError
	switch {
	case errors.Is(err, reservation.ErrSlotUnavailable), errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot is no longer available")
	case errors.Is(err, reservation.ErrHoldExpired):
		writeError(w, http.StatusGone, "hold has expired, restart slot selection")
	case errors.Is(err, reservation.ErrNotOwner):
		writeError(w, http.StatusForbidden, "hold belongs to another session")
	case errors.Is(err, reservation.ErrNotFound), errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, appointment.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": cfgErr.Msg,
			"field": cfgErr.Field,
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// sessionID extracts the caller's browser session identifier.
func sessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Session-Id"))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
