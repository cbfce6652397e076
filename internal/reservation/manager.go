package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/consultdesk/booking-engine/internal/appointment"
	"github.com/consultdesk/booking-engine/internal/availability"
	"github.com/consultdesk/booking-engine/internal/observability/metrics"
	"github.com/consultdesk/booking-engine/internal/schedule"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

var reservationTracer = otel.Tracer("booking.internal.reservation")

// ConfigGetter supplies the current schedule configuration snapshot.
type ConfigGetter interface {
	Get(ctx context.Context) (*schedule.Config, error)
}

// ScheduledLister supplies the scheduled appointments occupying a day.
type ScheduledLister interface {
	ListScheduledByDate(ctx context.Context, date string) ([]appointment.Appointment, error)
}

// Manager is the engine's concurrency-sensitive core: it computes bookable
// slots, claims them with TTL-bounded holds, and promotes holds into
// confirmed appointments. It keeps no in-process state, so any number of
// instances can run against the shared store.
type Manager struct {
	repo      *Repository
	schedules ConfigGetter
	bookings  ScheduledLister
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
	ttl       time.Duration
	nowFunc   func() time.Time
}

// NewManager constructs a reservation manager.
func NewManager(repo *Repository, schedules ConfigGetter, bookings ScheduledLister, logger *logging.Logger, m *metrics.BookingMetrics) *Manager {
	if repo == nil {
		panic("reservation: repository required")
	}
	if schedules == nil {
		panic("reservation: schedule source required")
	}
	if bookings == nil {
		panic("reservation: bookings source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		repo:      repo,
		schedules: schedules,
		bookings:  bookings,
		logger:    logger,
		metrics:   m,
		ttl:       HoldTTL,
		nowFunc:   time.Now,
	}
}

// WithTTL overrides the hold TTL, for tests.
func (mgr *Manager) WithTTL(ttl time.Duration) *Manager {
	if ttl > 0 {
		mgr.ttl = ttl
	}
	return mgr
}

// WithClock overrides the time source, for tests.
func (mgr *Manager) WithClock(now func() time.Time) *Manager {
	mgr.nowFunc = now
	return mgr
}

// AvailableSlots returns the bookable slots for a date as the given session
// sees them: foreign active holds and scheduled appointments hidden, the
// session's own hold still visible.
func (mgr *Manager) AvailableSlots(ctx context.Context, date, sessionID string) ([]availability.Slot, error) {
	ctx, span := reservationTracer.Start(ctx, "reservation.available_slots")
	defer span.End()
	span.SetAttributes(attribute.String("booking.date", date))

	started := mgr.nowFunc()
	slots, err := mgr.computeSlots(ctx, date, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	mgr.metrics.ObserveComputeLatency(mgr.nowFunc().Sub(started).Seconds())
	return slots, nil
}

func (mgr *Manager) computeSlots(ctx context.Context, date, sessionID string) ([]availability.Slot, error) {
	cfg, err := mgr.schedules.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := mgr.nowFunc()

	holds, err := mgr.repo.ListActiveByDate(ctx, date, now)
	if err != nil {
		return nil, err
	}
	booked, err := mgr.bookings.ListScheduledByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	holdInfos := make([]availability.HoldInfo, 0, len(holds))
	for _, h := range holds {
		holdInfos = append(holdInfos, availability.HoldInfo{
			StartTime: h.StartTime,
			SessionID: h.SessionID,
			ExpiresAt: h.ExpiresAt,
		})
	}
	bookingInfos := make([]availability.BookingInfo, 0, len(booked))
	for _, b := range booked {
		bookingInfos = append(bookingInfos, availability.BookingInfo{StartTime: b.StartTime})
	}

	calc := availability.NewCalculatorAt(mgr.nowFunc)
	return calc.ComputeSlots(date, cfg, holdInfos, bookingInfos, sessionID)
}

// Reserve claims a slot for a session with a TTL-bounded hold. The slot must
// be one the session could see in AvailableSlots; concurrent claims on the
// same slot resolve to exactly one winner, everyone else gets
// ErrSlotUnavailable and should re-fetch the slot list.
func (mgr *Manager) Reserve(ctx context.Context, date, start, end, sessionID string) (*Hold, error) {
	ctx, span := reservationTracer.Start(ctx, "reservation.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.date", date),
		attribute.String("booking.start", start),
	)

	// Lazy sweep keeps the holds table small; expiry correctness never
	// depends on it.
	if swept, err := mgr.repo.SweepExpired(ctx, mgr.nowFunc()); err == nil {
		mgr.metrics.ObserveHoldsSwept(swept)
	}

	slots, err := mgr.computeSlots(ctx, date, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !slotOffered(slots, start, end) {
		mgr.metrics.ObserveReserve("rejected")
		return nil, ErrSlotUnavailable
	}

	now := mgr.nowFunc()
	hold := &Hold{
		ID:        uuid.New(),
		Date:      date,
		StartTime: start,
		EndTime:   end,
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now.Add(mgr.ttl),
	}
	if err := mgr.repo.Reserve(ctx, hold, now); err != nil {
		if err == ErrSlotUnavailable {
			mgr.metrics.ObserveReserve("conflict")
		} else {
			span.RecordError(err)
		}
		return nil, err
	}

	mgr.metrics.ObserveReserve("won")
	mgr.logger.Info("slot held", "hold_id", hold.ID, "date", date, "start", start, "expires_at", hold.ExpiresAt)
	return hold, nil
}

func slotOffered(slots []availability.Slot, start, end string) bool {
	for _, s := range slots {
		if s.Start == start && s.End == end {
			return true
		}
	}
	return false
}

// Release frees a hold so the slot becomes bookable again. Only the owning
// session may release; retries after success see ErrNotFound, a benign
// no-op for callers.
func (mgr *Manager) Release(ctx context.Context, holdID uuid.UUID, sessionID string) error {
	ctx, span := reservationTracer.Start(ctx, "reservation.release")
	defer span.End()
	span.SetAttributes(attribute.String("booking.hold_id", holdID.String()))

	if err := mgr.repo.Release(ctx, holdID, sessionID, mgr.nowFunc()); err != nil {
		if err != ErrNotFound && err != ErrNotOwner {
			span.RecordError(err)
		}
		return err
	}
	mgr.logger.Info("hold released", "hold_id", holdID)
	return nil
}

// Promote converts a hold into a confirmed appointment after the caller's
// out-of-band payment step. An expired hold fails with ErrHoldExpired and
// the caller must restart slot selection; the engine never re-extends one.
func (mgr *Manager) Promote(ctx context.Context, holdID uuid.UUID, sessionID string, details appointment.Details) (*appointment.Appointment, error) {
	ctx, span := reservationTracer.Start(ctx, "reservation.promote")
	defer span.End()
	span.SetAttributes(attribute.String("booking.hold_id", holdID.String()))

	if err := details.Validate(); err != nil {
		return nil, err
	}

	a := &appointment.Appointment{
		ID:               uuid.New(),
		CustomerName:     details.CustomerName,
		CustomerEmail:    details.CustomerEmail,
		CustomerPhone:    details.CustomerPhone,
		ConsultationType: details.ConsultationType,
		PriceCents:       details.PriceCents,
		PaymentStatus:    details.PaymentStatus,
		Location:         details.Location,
	}
	if err := mgr.repo.Promote(ctx, holdID, sessionID, a, mgr.nowFunc()); err != nil {
		switch err {
		case ErrNotFound, ErrNotOwner, ErrHoldExpired, ErrSlotUnavailable:
		default:
			span.RecordError(err)
		}
		return nil, err
	}

	mgr.metrics.ObserveTransition("created")
	mgr.logger.Info("hold promoted", "hold_id", holdID, "appointment_id", a.ID, "date", a.Date, "start", a.StartTime)
	return a, nil
}

// SweepExpired purges expired holds; exposed for periodic maintenance.
func (mgr *Manager) SweepExpired(ctx context.Context) (int, error) {
	swept, err := mgr.repo.SweepExpired(ctx, mgr.nowFunc())
	if err != nil {
		return 0, err
	}
	mgr.metrics.ObserveHoldsSwept(swept)
	if swept > 0 {
		mgr.logger.Debug("expired holds swept", "count", swept)
	}
	return swept, nil
}
