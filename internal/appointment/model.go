// Package appointment implements the durable booking record and its
// lifecycle: scheduled through completion, cancellation, no-show, or
// reschedule, with an event emitted on every transition.
package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/consultdesk/booking-engine/internal/events"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// ConsultationType is how the consultation is delivered.
type ConsultationType string

const (
	TypeVirtual    ConsultationType = "virtual"
	TypeTelephonic ConsultationType = "telephonic"
	TypeFaceToFace ConsultationType = "face_to_face"
)

// PaymentStatus tracks the out-of-band payment step.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentWaived  PaymentStatus = "waived"
)

// Domain errors. These are expected outcomes returned to the caller, never
// process-fatal; storage transport failures are wrapped separately.
var (
	ErrNotFound          = errors.New("appointment: not found")
	ErrInvalidTransition = errors.New("appointment: invalid transition")
	ErrSlotUnavailable   = errors.New("appointment: slot unavailable")
	ErrInvalidSlot       = errors.New("appointment: slot start must be before end")
)

// Appointment is the durable booking record.
type Appointment struct {
	ID               uuid.UUID        `json:"id"`
	CustomerName     string           `json:"customer_name"`
	CustomerEmail    string           `json:"customer_email"`
	CustomerPhone    string           `json:"customer_phone,omitempty"`
	ConsultationType ConsultationType `json:"consultation_type"`
	Date             string           `json:"date"`
	StartTime        string           `json:"start_time"`
	EndTime          string           `json:"end_time"`
	PriceCents       int64            `json:"price_cents"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	Status           Status           `json:"status"`
	Location         string           `json:"location,omitempty"`
	// PreviousSlot holds the immediately-preceding slot after a reschedule,
	// for audit and notification purposes.
	PreviousSlot *events.SlotRef `json:"previous_slot,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Snapshot converts the appointment into the event payload form.
func (a *Appointment) Snapshot() events.AppointmentSnapshot {
	return events.AppointmentSnapshot{
		ID:               a.ID.String(),
		CustomerName:     a.CustomerName,
		CustomerEmail:    a.CustomerEmail,
		CustomerPhone:    a.CustomerPhone,
		ConsultationType: string(a.ConsultationType),
		Date:             a.Date,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		PriceCents:       a.PriceCents,
		PaymentStatus:    string(a.PaymentStatus),
		Status:           string(a.Status),
		Location:         a.Location,
		CreatedAt:        a.CreatedAt,
	}
}

// Details carries the customer-provided fields needed to create an
// appointment, both on hold promotion and on manual admin creation.
type Details struct {
	CustomerName     string           `json:"customer_name"`
	CustomerEmail    string           `json:"customer_email"`
	CustomerPhone    string           `json:"customer_phone,omitempty"`
	ConsultationType ConsultationType `json:"consultation_type"`
	PriceCents       int64            `json:"price_cents"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	Location         string           `json:"location,omitempty"`
}

// Validate checks the details before any persistence.
func (d Details) Validate() error {
	if strings.TrimSpace(d.CustomerName) == "" {
		return fmt.Errorf("appointment: customer name required")
	}
	if !strings.Contains(d.CustomerEmail, "@") {
		return fmt.Errorf("appointment: valid customer email required")
	}
	switch d.ConsultationType {
	case TypeVirtual, TypeTelephonic, TypeFaceToFace:
	default:
		return fmt.Errorf("appointment: unknown consultation type %q", d.ConsultationType)
	}
	switch d.PaymentStatus {
	case PaymentPending, PaymentPaid, PaymentWaived:
	default:
		return fmt.Errorf("appointment: unknown payment status %q", d.PaymentStatus)
	}
	if d.PriceCents < 0 {
		return fmt.Errorf("appointment: price must not be negative")
	}
	if d.ConsultationType == TypeFaceToFace && strings.TrimSpace(d.Location) == "" {
		return fmt.Errorf("appointment: face-to-face consultation requires a location")
	}
	return nil
}

// CanTransitionTo reports whether the lifecycle allows moving to target.
// Only scheduled appointments move anywhere; every other state is terminal.
func (s Status) CanTransitionTo(target Status) bool {
	if s != StatusScheduled {
		return false
	}
	switch target {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}
