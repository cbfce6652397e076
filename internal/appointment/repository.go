package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/consultdesk/booking-engine/internal/events"
)

const uniqueViolation = "23505"

// DB is the pgx surface the repository needs. Both *pgxpool.Pool and the
// pgxmock pool satisfy it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointments. Every mutation runs in a single
// transaction together with its outbox event, so a transition and its
// notification are atomic: both land or neither does.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by pgx.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("appointment: db required")
	}
	return &Repository{db: db}
}

// LockSlot takes a transaction-scoped advisory lock keyed by (date, start).
// The unique indexes arbitrate concurrent writers within one table, but the
// hold and appointment existence checks each read the other table, where
// read committed hides a concurrent uncommitted claim. Every slot writer
// takes this lock before touching either table for the slot; it releases at
// commit or rollback.
func LockSlot(ctx context.Context, tx pgx.Tx, date, start string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, date+" "+start)
	return err
}

const appointmentColumns = `
	id, customer_name, customer_email, customer_phone, consultation_type,
	slot_date, start_time, end_time, price_cents, payment_status, status,
	location, prev_date, prev_start, prev_end, created_at, updated_at
`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var prevDate, prevStart, prevEnd *string
	err := row.Scan(
		&a.ID, &a.CustomerName, &a.CustomerEmail, &a.CustomerPhone, &a.ConsultationType,
		&a.Date, &a.StartTime, &a.EndTime, &a.PriceCents, &a.PaymentStatus, &a.Status,
		&a.Location, &prevDate, &prevStart, &prevEnd, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if prevDate != nil && prevStart != nil && prevEnd != nil {
		a.PreviousSlot = &events.SlotRef{Date: *prevDate, StartTime: *prevStart, EndTime: *prevEnd}
	}
	return &a, nil
}

// GetByID loads one appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointment: load: %w", err)
	}
	return a, nil
}

// ListByDate returns every appointment on a calendar day, in slot order.
func (r *Repository) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE slot_date = $1 ORDER BY start_time`, date)
	if err != nil {
		return nil, fmt.Errorf("appointment: list by date: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointment: scan: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListScheduledByDate returns the scheduled appointments occupying slots on a
// day, the availability calculator's booking input.
func (r *Repository) ListScheduledByDate(ctx context.Context, date string) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE slot_date = $1 AND status = 'scheduled' ORDER BY start_time`, date)
	if err != nil {
		return nil, fmt.Errorf("appointment: list scheduled: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointment: scan: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CreateScheduled inserts a scheduled appointment, enforcing the slot
// exclusivity invariant against both active holds and other scheduled
// appointments, and appends the created event in the same transaction.
func (r *Repository) CreateScheduled(ctx context.Context, a *Appointment, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointment: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := LockSlot(ctx, tx, a.Date, a.StartTime); err != nil {
		return fmt.Errorf("appointment: lock slot: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM holds WHERE slot_date = $1 AND start_time = $2 AND expires_at <= $3`,
		a.Date, a.StartTime, now,
	); err != nil {
		return fmt.Errorf("appointment: purge expired hold: %w", err)
	}

	var occupied int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM holds WHERE slot_date = $1 AND start_time = $2 AND expires_at > $3`,
		a.Date, a.StartTime, now,
	).Scan(&occupied)
	if err == nil {
		return ErrSlotUnavailable
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("appointment: check holds: %w", err)
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO appointments (
			id, customer_name, customer_email, customer_phone, consultation_type,
			slot_date, start_time, end_time, price_cents, payment_status, status,
			location, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (slot_date, start_time) WHERE status = 'scheduled' DO NOTHING
	`,
		a.ID, a.CustomerName, a.CustomerEmail, a.CustomerPhone, a.ConsultationType,
		a.Date, a.StartTime, a.EndTime, a.PriceCents, a.PaymentStatus, StatusScheduled,
		a.Location, now,
	)
	if err != nil {
		return fmt.Errorf("appointment: insert: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}

	a.Status = StatusScheduled
	a.CreatedAt = now
	a.UpdatedAt = now

	evt := events.LifecycleEvent{
		Type:         events.TypeCreated,
		Appointment:  a.Snapshot(),
		TransitionAt: now,
	}
	if _, err := events.AppendTx(ctx, tx, evt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointment: commit: %w", err)
	}
	return nil
}

// Transition moves a scheduled appointment to a terminal status and appends
// the matching event, all-or-nothing.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, target Status, eventType string, now time.Time) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointment: load for transition: %w", err)
	}

	if !a.Status.CanTransitionTo(target) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`,
		id, target, now,
	); err != nil {
		return nil, fmt.Errorf("appointment: update status: %w", err)
	}
	a.Status = target
	a.UpdatedAt = now

	evt := events.LifecycleEvent{
		Type:         eventType,
		Appointment:  a.Snapshot(),
		TransitionAt: now,
	}
	if _, err := events.AppendTx(ctx, tx, evt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointment: commit: %w", err)
	}
	return a, nil
}

// Reschedule moves a scheduled appointment to a new slot, recording the
// prior slot and enforcing exclusivity on the target. The appointment stays
// scheduled throughout.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, newDate, newStart, newEnd string, now time.Time) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointment: load for reschedule: %w", err)
	}
	if a.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	if err := LockSlot(ctx, tx, newDate, newStart); err != nil {
		return nil, fmt.Errorf("appointment: lock slot: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM holds WHERE slot_date = $1 AND start_time = $2 AND expires_at <= $3`,
		newDate, newStart, now,
	); err != nil {
		return nil, fmt.Errorf("appointment: purge expired hold: %w", err)
	}

	var occupied int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM holds WHERE slot_date = $1 AND start_time = $2 AND expires_at > $3`,
		newDate, newStart, now,
	).Scan(&occupied)
	if err == nil {
		return nil, ErrSlotUnavailable
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointment: check holds: %w", err)
	}

	prev := events.SlotRef{Date: a.Date, StartTime: a.StartTime, EndTime: a.EndTime}
	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET slot_date = $2, start_time = $3, end_time = $4,
		    prev_date = $5, prev_start = $6, prev_end = $7, updated_at = $8
		WHERE id = $1
	`, id, newDate, newStart, newEnd, prev.Date, prev.StartTime, prev.EndTime, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("appointment: move slot: %w", err)
	}

	a.Date = newDate
	a.StartTime = newStart
	a.EndTime = newEnd
	a.PreviousSlot = &prev
	a.UpdatedAt = now

	evt := events.LifecycleEvent{
		Type:         events.TypeRescheduled,
		Appointment:  a.Snapshot(),
		PreviousSlot: &prev,
		TransitionAt: now,
	}
	if _, err := events.AppendTx(ctx, tx, evt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointment: commit: %w", err)
	}
	return a, nil
}
