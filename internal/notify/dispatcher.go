package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/consultdesk/booking-engine/internal/events"
	"github.com/consultdesk/booking-engine/internal/observability/metrics"
	"github.com/consultdesk/booking-engine/pkg/logging"
)

// dedup bookkeeping is keyed per consumer name, so a second dispatcher with
// a different name would redeliver everything.
const consumerName = "notify"

// QueuePublisher fans events out to a message queue.
type QueuePublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}

// EventSender posts raw event payloads to an external endpoint.
type EventSender interface {
	Send(ctx context.Context, eventType string, payload []byte) error
}

// Dispatcher routes outbox entries to the configured targets: patient email,
// partner webhook, and the event queue. Every target is optional. Delivery is
// at-least-once from the outbox, so the dispatcher dedups on the event's
// dedup key before sending.
type Dispatcher struct {
	email     EmailSender
	webhook   EventSender
	queue     QueuePublisher
	processed *events.ProcessedStore
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
}

// NewDispatcher creates a dispatcher. Nil targets are skipped; a nil
// processed store disables dedup, acceptable only in tests.
func NewDispatcher(email EmailSender, webhook EventSender, queue QueuePublisher, processed *events.ProcessedStore, logger *logging.Logger, m *metrics.BookingMetrics) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		email:     email,
		webhook:   webhook,
		queue:     queue,
		processed: processed,
		logger:    logger,
		metrics:   m,
	}
}

var _ events.DeliveryHandler = (*Dispatcher)(nil)

// Handle delivers one outbox entry. A redelivered entry whose dedup key was
// already recorded is acknowledged without resending.
func (d *Dispatcher) Handle(ctx context.Context, entry events.OutboxEntry) error {
	evt, err := entry.Event()
	if err != nil {
		return err
	}

	if d.processed != nil {
		seen, err := d.processed.AlreadyProcessed(ctx, consumerName, evt.DedupKey())
		if err != nil {
			return err
		}
		if seen {
			d.logger.Debug("event already dispatched", "dedup_key", evt.DedupKey())
			return nil
		}
	}

	if d.email != nil {
		if msg, ok := composeEmail(evt); ok {
			if err := d.email.Send(ctx, msg); err != nil {
				d.metrics.ObserveOutboxDelivery(evt.Type, "error")
				return err
			}
		}
	}
	if d.webhook != nil {
		if err := d.webhook.Send(ctx, evt.Type, entry.Payload); err != nil {
			d.metrics.ObserveOutboxDelivery(evt.Type, "error")
			return err
		}
	}
	if d.queue != nil {
		if err := d.queue.Publish(ctx, evt.Type, entry.Payload); err != nil {
			d.metrics.ObserveOutboxDelivery(evt.Type, "error")
			return err
		}
	}

	if d.processed != nil {
		if _, err := d.processed.MarkProcessed(ctx, consumerName, evt.DedupKey()); err != nil {
			return err
		}
	}

	d.metrics.ObserveOutboxDelivery(evt.Type, "ok")
	d.logger.Info("event dispatched",
		"event_type", evt.Type,
		"appointment_id", evt.Appointment.ID,
		"date", evt.Appointment.Date,
		"start", evt.Appointment.StartTime,
	)
	return nil
}

// composeEmail builds the patient-facing message for an event. No-show
// transitions are an internal bookkeeping matter, so no email goes out.
func composeEmail(evt events.LifecycleEvent) (EmailMessage, bool) {
	a := evt.Appointment
	if a.CustomerEmail == "" {
		return EmailMessage{}, false
	}

	when := formatSlot(a.Date, a.StartTime)
	msg := EmailMessage{
		To:     a.CustomerEmail,
		ToName: a.CustomerName,
	}

	switch evt.Type {
	case events.TypeCreated:
		msg.Subject = "Your consultation is confirmed"
		msg.Body = fmt.Sprintf("Hi %s,\n\nYour %s consultation is confirmed for %s.%s\n\nSee you then!",
			a.CustomerName, a.ConsultationType, when, locationLine(a.Location))
	case events.TypeRescheduled:
		prev := ""
		if evt.PreviousSlot != nil {
			prev = fmt.Sprintf(" (previously %s)", formatSlot(evt.PreviousSlot.Date, evt.PreviousSlot.StartTime))
		}
		msg.Subject = "Your consultation has been rescheduled"
		msg.Body = fmt.Sprintf("Hi %s,\n\nYour consultation has moved to %s%s.%s",
			a.CustomerName, when, prev, locationLine(a.Location))
	case events.TypeCancelled:
		msg.Subject = "Your consultation has been cancelled"
		msg.Body = fmt.Sprintf("Hi %s,\n\nYour consultation on %s has been cancelled. If this wasn't expected, please get in touch to rebook.",
			a.CustomerName, when)
	case events.TypeCompleted:
		msg.Subject = "Thanks for visiting"
		msg.Body = fmt.Sprintf("Hi %s,\n\nThank you for attending your consultation on %s.",
			a.CustomerName, when)
	default:
		return EmailMessage{}, false
	}
	return msg, true
}

func locationLine(location string) string {
	if location == "" {
		return ""
	}
	return fmt.Sprintf("\nLocation: %s", location)
}

// formatSlot renders "2026-03-09" + "09:30" as a human-readable line,
// falling back to the raw values when parsing fails.
func formatSlot(date, start string) string {
	t, err := time.Parse("2006-01-02 15:04", date+" "+start)
	if err != nil {
		return fmt.Sprintf("%s at %s", date, start)
	}
	return t.Format("Monday, January 2, 2006 at 15:04")
}
