package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/consultdesk/booking-engine/internal/events"
	"github.com/consultdesk/booking-engine/internal/observability/metrics"
	"github.com/consultdesk/booking-engine/internal/schedule"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

var lifecycleTracer = otel.Tracer("booking.internal.appointment")

// Service drives the appointment lifecycle. All state changes are delegated
// to the repository's single-transaction operations; the service adds input
// validation, tracing, and metrics.
type Service struct {
	repo    *Repository
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	nowFunc func() time.Time
}

// NewService constructs a lifecycle service.
func NewService(repo *Repository, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if repo == nil {
		panic("appointment: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger, metrics: m, nowFunc: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// GetByID loads one appointment.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByDate returns the day's appointments for the admin view.
func (s *Service) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	return s.repo.ListByDate(ctx, date)
}

// Cancel moves a scheduled appointment to cancelled and frees its slot.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	ctx, span := lifecycleTracer.Start(ctx, "appointment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking.appointment_id", id.String()))

	_, err := s.repo.Transition(ctx, id, StatusCancelled, events.TypeCancelled, s.nowFunc())
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.ObserveTransition(events.TypeCancelled)
	s.logger.Info("appointment cancelled", "appointment_id", id)
	return nil
}

// MarkCompleted records that the consultation took place.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	ctx, span := lifecycleTracer.Start(ctx, "appointment.complete")
	defer span.End()
	span.SetAttributes(attribute.String("booking.appointment_id", id.String()))

	_, err := s.repo.Transition(ctx, id, StatusCompleted, events.TypeCompleted, s.nowFunc())
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.ObserveTransition(events.TypeCompleted)
	s.logger.Info("appointment completed", "appointment_id", id)
	return nil
}

// MarkNoShow records that the customer did not attend.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) error {
	ctx, span := lifecycleTracer.Start(ctx, "appointment.no_show")
	defer span.End()
	span.SetAttributes(attribute.String("booking.appointment_id", id.String()))

	_, err := s.repo.Transition(ctx, id, StatusNoShow, events.TypeNoShow, s.nowFunc())
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.ObserveTransition(events.TypeNoShow)
	s.logger.Info("appointment marked no-show", "appointment_id", id)
	return nil
}

// Reschedule moves a scheduled appointment to a new slot. The new slot is
// claimed under the same exclusivity check as a reservation; identity and
// customer details are preserved.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate, newStart, newEnd string) (*Appointment, error) {
	ctx, span := lifecycleTracer.Start(ctx, "appointment.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.appointment_id", id.String()),
		attribute.String("booking.new_date", newDate),
		attribute.String("booking.new_start", newStart),
	)

	if err := validateSlotInput(newDate, newStart, newEnd); err != nil {
		return nil, err
	}

	a, err := s.repo.Reschedule(ctx, id, newDate, newStart, newEnd, s.nowFunc())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveTransition(events.TypeRescheduled)
	s.logger.Info("appointment rescheduled",
		"appointment_id", id,
		"date", newDate,
		"start", newStart,
		"prev_date", a.PreviousSlot.Date,
		"prev_start", a.PreviousSlot.StartTime,
	)
	return a, nil
}

// CreateManual is the admin bypass: it skips the hold step but still
// enforces slot exclusivity, and emits a created event identical in shape to
// the customer-initiated path.
func (s *Service) CreateManual(ctx context.Context, date, start, end string, details Details) (*Appointment, error) {
	ctx, span := lifecycleTracer.Start(ctx, "appointment.create_manual")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.date", date),
		attribute.String("booking.start", start),
	)

	if err := details.Validate(); err != nil {
		return nil, err
	}
	if err := validateSlotInput(date, start, end); err != nil {
		return nil, err
	}

	a := &Appointment{
		ID:               uuid.New(),
		CustomerName:     details.CustomerName,
		CustomerEmail:    details.CustomerEmail,
		CustomerPhone:    details.CustomerPhone,
		ConsultationType: details.ConsultationType,
		Date:             date,
		StartTime:        start,
		EndTime:          end,
		PriceCents:       details.PriceCents,
		PaymentStatus:    details.PaymentStatus,
		Location:         details.Location,
	}
	if err := s.repo.CreateScheduled(ctx, a, s.nowFunc()); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveTransition(events.TypeCreated)
	s.logger.Info("appointment created manually", "appointment_id", a.ID, "date", date, "start", start)
	return a, nil
}

func validateSlotInput(date, start, end string) error {
	if _, err := schedule.ParseDate(date, time.UTC); err != nil {
		return err
	}
	s, err := schedule.ParseClock(start)
	if err != nil {
		return err
	}
	e, err := schedule.ParseClock(end)
	if err != nil {
		return err
	}
	if s >= e {
		return ErrInvalidSlot
	}
	return nil
}
