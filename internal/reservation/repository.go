package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/consultdesk/booking-engine/internal/appointment"
	"github.com/consultdesk/booking-engine/internal/events"
)

// DB is the pgx surface the repository needs. Both *pgxpool.Pool and the
// pgxmock pool satisfy it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists holds. The exclusivity domain is (slot_date,
// start_time): the holds table carries a unique index on it, and the
// scheduled-appointments partial index covers the other half, so exactly one
// winner emerges from concurrent claims no matter how many engine instances
// run against the store.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by pgx.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("reservation: db required")
	}
	return &Repository{db: db}
}

// Reserve atomically claims a slot for a session. The check-and-insert runs
// in one transaction: the per-slot advisory lock serializes claims across
// the holds and appointments tables, expired holds on the slot are purged, a
// scheduled appointment blocks the claim, and the unique index decides
// between concurrent callers.
func (r *Repository) Reserve(ctx context.Context, hold *Hold, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reservation: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := appointment.LockSlot(ctx, tx, hold.Date, hold.StartTime); err != nil {
		return fmt.Errorf("reservation: lock slot: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM holds WHERE slot_date = $1 AND start_time = $2 AND expires_at <= $3`,
		hold.Date, hold.StartTime, now,
	); err != nil {
		return fmt.Errorf("reservation: purge expired hold: %w", err)
	}

	var occupied int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM appointments WHERE slot_date = $1 AND start_time = $2 AND status = 'scheduled'`,
		hold.Date, hold.StartTime,
	).Scan(&occupied)
	if err == nil {
		return ErrSlotUnavailable
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("reservation: check appointments: %w", err)
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO holds (id, slot_date, start_time, end_time, session_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (slot_date, start_time) DO NOTHING
	`, hold.ID, hold.Date, hold.StartTime, hold.EndTime, hold.SessionID, hold.CreatedAt, hold.ExpiresAt)
	if err != nil {
		return fmt.Errorf("reservation: insert hold: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reservation: commit: %w", err)
	}
	return nil
}

const holdColumns = `id, slot_date, start_time, end_time, session_id, created_at, expires_at`

func scanHold(row pgx.Row) (*Hold, error) {
	var h Hold
	err := row.Scan(&h.ID, &h.Date, &h.StartTime, &h.EndTime, &h.SessionID, &h.CreatedAt, &h.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Release removes a hold owned by the session. An expired, promoted, or
// already-released hold reports ErrNotFound so retries are benign.
func (r *Repository) Release(ctx context.Context, holdID uuid.UUID, sessionID string, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reservation: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1 FOR UPDATE`, holdID)
	h, err := scanHold(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reservation: load hold: %w", err)
	}

	if !h.Active(now) {
		// Expired holds are absent to every caller; drop the row on the way out.
		if _, err := tx.Exec(ctx, `DELETE FROM holds WHERE id = $1`, holdID); err != nil {
			return fmt.Errorf("reservation: delete expired hold: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("reservation: commit: %w", err)
		}
		return ErrNotFound
	}
	if h.SessionID != sessionID {
		return ErrNotOwner
	}

	if _, err := tx.Exec(ctx, `DELETE FROM holds WHERE id = $1`, holdID); err != nil {
		return fmt.Errorf("reservation: delete hold: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reservation: commit: %w", err)
	}
	return nil
}

// SweepExpired purges holds whose TTL has passed. Correctness never depends
// on it running; reads already treat expired holds as absent.
func (r *Repository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM holds WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("reservation: sweep expired: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// ListActiveByDate returns the live holds on a day, the availability
// calculator's hold input.
func (r *Repository) ListActiveByDate(ctx context.Context, date string, now time.Time) ([]Hold, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+holdColumns+` FROM holds WHERE slot_date = $1 AND expires_at > $2 ORDER BY start_time`,
		date, now,
	)
	if err != nil {
		return nil, fmt.Errorf("reservation: list active holds: %w", err)
	}
	defer rows.Close()

	var out []Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("reservation: scan hold: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// Promote atomically converts a hold into a scheduled appointment: the hold
// row is deleted, the appointment inserted, and the created event appended,
// all in one transaction.
func (r *Repository) Promote(ctx context.Context, holdID uuid.UUID, sessionID string, a *appointment.Appointment, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reservation: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1`, holdID)
	h, err := scanHold(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reservation: load hold: %w", err)
	}

	if h.SessionID != sessionID {
		return ErrNotOwner
	}
	if !h.Active(now) {
		return ErrHoldExpired
	}

	// Lock the slot before claiming it; the guarded delete then decides
	// whether the hold still exists, so no row lock is held while waiting.
	if err := appointment.LockSlot(ctx, tx, h.Date, h.StartTime); err != nil {
		return fmt.Errorf("reservation: lock slot: %w", err)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM holds WHERE id = $1 AND expires_at > $2`, holdID, now)
	if err != nil {
		return fmt.Errorf("reservation: delete hold: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Released or swept between the read and the lock.
		return ErrNotFound
	}

	a.Date = h.Date
	a.StartTime = h.StartTime
	a.EndTime = h.EndTime
	a.Status = appointment.StatusScheduled
	a.CreatedAt = now
	a.UpdatedAt = now

	ct, err = tx.Exec(ctx, `
		INSERT INTO appointments (
			id, customer_name, customer_email, customer_phone, consultation_type,
			slot_date, start_time, end_time, price_cents, payment_status, status,
			location, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (slot_date, start_time) WHERE status = 'scheduled' DO NOTHING
	`,
		a.ID, a.CustomerName, a.CustomerEmail, a.CustomerPhone, a.ConsultationType,
		a.Date, a.StartTime, a.EndTime, a.PriceCents, a.PaymentStatus, appointment.StatusScheduled,
		a.Location, now,
	)
	if err != nil {
		return fmt.Errorf("reservation: insert appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}

	evt := events.LifecycleEvent{
		Type:         events.TypeCreated,
		Appointment:  a.Snapshot(),
		TransitionAt: now,
	}
	if _, err := events.AppendTx(ctx, tx, evt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reservation: commit: %w", err)
	}
	return nil
}
