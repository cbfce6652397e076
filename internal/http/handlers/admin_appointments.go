package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/consultdesk/booking-engine/internal/appointment"
	"github.com/consultdesk/booking-engine/internal/availability"
	"github.com/consultdesk/booking-engine/internal/reservation"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

// holdLister exposes the live holds on a day for the summary view.
type holdLister interface {
	ListActiveByDate(ctx context.Context, date string, now time.Time) ([]reservation.Hold, error)
}

// AdminAppointmentsHandler serves the practice's appointment management
// surface: listing, manual creation, and lifecycle transitions.
type AdminAppointmentsHandler struct {
	svc     *appointment.Service
	manager *reservation.Manager
	holds   holdLister
	logger  *logging.Logger
	nowFunc func() time.Time
}

func NewAdminAppointmentsHandler(svc *appointment.Service, manager *reservation.Manager, holds holdLister, logger *logging.Logger) *AdminAppointmentsHandler {
	if svc == nil {
		panic("handlers: appointment service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAppointmentsHandler{
		svc:     svc,
		manager: manager,
		holds:   holds,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// List returns every appointment on a date, any status.
// Route: GET /admin/appointments?date=YYYY-MM-DD
func (h *AdminAppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	appts, err := h.svc.ListByDate(r.Context(), date)
	if err != nil {
		h.logger.Error("appointment list failed", "error", err, "date", date)
		writeDomainError(w, err)
		return
	}
	if appts == nil {
		appts = []appointment.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "appointments": appts})
}

// Get returns a single appointment.
// Route: GET /admin/appointments/{id}
func (h *AdminAppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}
	a, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type createAppointmentRequest struct {
	Date    string              `json:"date"`
	Start   string              `json:"start"`
	End     string              `json:"end"`
	Details appointment.Details `json:"details"`
}

// Create books an appointment directly, bypassing the hold flow. Used for
// phone bookings taken by staff. Slot exclusivity still applies.
// Route: POST /admin/appointments
func (h *AdminAppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Details.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	a, err := h.svc.CreateManual(r.Context(), req.Date, req.Start, req.End, req.Details)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Cancel moves a scheduled appointment to cancelled and frees its slot.
// Route: POST /admin/appointments/{id}/cancel
func (h *AdminAppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

// Complete marks a scheduled appointment as completed.
// Route: POST /admin/appointments/{id}/complete
func (h *AdminAppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkCompleted)
}

// NoShow marks a scheduled appointment as a no-show.
// Route: POST /admin/appointments/{id}/no-show
func (h *AdminAppointmentsHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkNoShow)
}

func (h *AdminAppointmentsHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, uuid.UUID) error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}
	if err := apply(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	a, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type rescheduleRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Reschedule moves a scheduled appointment to a new slot. The old slot frees
// up and the new one must be unoccupied; on conflict nothing changes.
// Route: POST /admin/appointments/{id}/reschedule
func (h *AdminAppointmentsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.svc.Reschedule(r.Context(), id, req.Date, req.Start, req.End)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type daySummaryResponse struct {
	Date         string                    `json:"date"`
	Appointments []appointment.Appointment `json:"appointments"`
	ActiveHolds  []reservation.Hold        `json:"active_holds"`
	OpenSlots    []availability.Slot       `json:"open_slots"`
}

// DaySummary gives staff one view of a day: appointments in every status,
// holds still ticking, and the slots still open to the public.
// Route: GET /admin/days/{date}/summary
func (h *AdminAppointmentsHandler) DaySummary(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(chi.URLParam(r, "date"))
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return
	}

	appts, err := h.svc.ListByDate(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := daySummaryResponse{
		Date:         date,
		Appointments: appts,
		ActiveHolds:  []reservation.Hold{},
		OpenSlots:    []availability.Slot{},
	}
	if resp.Appointments == nil {
		resp.Appointments = []appointment.Appointment{}
	}

	if h.holds != nil {
		holds, err := h.holds.ListActiveByDate(r.Context(), date, h.nowFunc())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if holds != nil {
			resp.ActiveHolds = holds
		}
	}
	if h.manager != nil {
		slots, err := h.manager.AvailableSlots(r.Context(), date, "")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if slots != nil {
			resp.OpenSlots = slots
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
