// Package events defines the lifecycle events the engine emits on every
// appointment transition, and the outbox machinery that guarantees
// at-least-once delivery to the notification dispatcher.
package events

import (
	"fmt"
	"time"
)

// Lifecycle event types, one per appointment transition.
const (
	TypeCreated     = "created"
	TypeRescheduled = "rescheduled"
	TypeCancelled   = "cancelled"
	TypeCompleted   = "completed"
	TypeNoShow      = "no_show"
)

// AppointmentSnapshot is the full appointment state carried by every event.
type AppointmentSnapshot struct {
	ID               string    `json:"id"`
	CustomerName     string    `json:"customer_name"`
	CustomerEmail    string    `json:"customer_email"`
	CustomerPhone    string    `json:"customer_phone,omitempty"`
	ConsultationType string    `json:"consultation_type"`
	Date             string    `json:"date"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	PriceCents       int64     `json:"price_cents"`
	PaymentStatus    string    `json:"payment_status"`
	Status           string    `json:"status"`
	Location         string    `json:"location,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SlotRef identifies one slot; rescheduled events carry the previous one.
type SlotRef struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// LifecycleEvent is emitted exactly once per appointment transition.
type LifecycleEvent struct {
	Type         string              `json:"type"`
	Appointment  AppointmentSnapshot `json:"appointment"`
	PreviousSlot *SlotRef            `json:"previous_slot,omitempty"`
	TransitionAt time.Time           `json:"transition_at"`
}

// DedupKey identifies a transition for idempotent delivery. Redelivering the
// same event is safe because consumers key their bookkeeping on this value.
func (e LifecycleEvent) DedupKey() string {
	return fmt.Sprintf("%s:%s:%d", e.Appointment.ID, e.Type, e.TransitionAt.UTC().UnixMicro())
}

// Validate reports whether the event is well formed enough to emit.
func (e LifecycleEvent) Validate() error {
	switch e.Type {
	case TypeCreated, TypeRescheduled, TypeCancelled, TypeCompleted, TypeNoShow:
	default:
		return fmt.Errorf("events: unknown event type %q", e.Type)
	}
	if e.Appointment.ID == "" {
		return fmt.Errorf("events: appointment id required")
	}
	if e.TransitionAt.IsZero() {
		return fmt.Errorf("events: transition timestamp required")
	}
	if e.Type == TypeRescheduled && e.PreviousSlot == nil {
		return fmt.Errorf("events: rescheduled event requires previous slot")
	}
	return nil
}
