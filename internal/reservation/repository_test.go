package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/consultdesk/booking-engine/internal/appointment"
	"github.com/consultdesk/booking-engine/internal/events"
)

var t0 = time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)

func testHold() *Hold {
	return &Hold{
		ID:        uuid.New(),
		Date:      "2026-03-09",
		StartTime: "09:00",
		EndTime:   "09:30",
		SessionID: "session-A",
		CreatedAt: t0,
		ExpiresAt: t0.Add(HoldTTL),
	}
}

func holdRow(h *Hold) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "slot_date", "start_time", "end_time", "session_id", "created_at", "expires_at",
	}).AddRow(h.ID, h.Date, h.StartTime, h.EndTime, h.SessionID, h.CreatedAt, h.ExpiresAt)
}

func TestReserveWinsFreeSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	mock.ExpectBegin()
	// The slot lock comes first, before either table is read.
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(h.Date + " " + h.StartTime).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM holds").WithArgs(h.Date, h.StartTime, t0).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT 1 FROM appointments").WithArgs(h.Date, h.StartTime).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO holds").
		WithArgs(h.ID, h.Date, h.StartTime, h.EndTime, h.SessionID, h.CreatedAt, h.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, NewRepository(mock).Reserve(context.Background(), h, t0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveLosesToConcurrentHold(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(h.Date + " " + h.StartTime).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM holds").WithArgs(h.Date, h.StartTime, t0).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT 1 FROM appointments").WithArgs(h.Date, h.StartTime).
		WillReturnError(pgx.ErrNoRows)
	// The unique index decides: the concurrent winner's row is already there.
	mock.ExpectExec("INSERT INTO holds").
		WithArgs(h.ID, h.Date, h.StartTime, h.EndTime, h.SessionID, h.CreatedAt, h.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	err = NewRepository(mock).Reserve(context.Background(), h, t0)
	require.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveLosesToScheduledAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(h.Date + " " + h.StartTime).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM holds").WithArgs(h.Date, h.StartTime, t0).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT 1 FROM appointments").WithArgs(h.Date, h.StartTime).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectRollback()

	err = NewRepository(mock).Reserve(context.Background(), h, t0)
	require.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(h.ID).WillReturnRows(holdRow(h))
	mock.ExpectExec("DELETE FROM holds").WithArgs(h.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, NewRepository(mock).Release(context.Background(), h.ID, "session-A", t0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseByStranger(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(h.ID).WillReturnRows(holdRow(h))
	mock.ExpectRollback()

	err = NewRepository(mock).Release(context.Background(), h.ID, "session-B", t0)
	require.ErrorIs(t, err, ErrNotOwner)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseMissingHold(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err = NewRepository(mock).Release(context.Background(), id, "session-A", t0)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseExpiredHoldIsAbsent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	later := h.ExpiresAt.Add(time.Second)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(h.ID).WillReturnRows(holdRow(h))
	mock.ExpectExec("DELETE FROM holds").WithArgs(h.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err = NewRepository(mock).Release(context.Background(), h.ID, "session-A", later)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM holds").WithArgs(t0).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	swept, err := NewRepository(mock).SweepExpired(context.Background(), t0)
	require.NoError(t, err)
	require.Equal(t, 4, swept)
	require.NoError(t, mock.ExpectationsWereMet())
}

func promoteDetails() *appointment.Appointment {
	return &appointment.Appointment{
		ID:               uuid.New(),
		CustomerName:     "Ana Torres",
		CustomerEmail:    "ana@example.com",
		ConsultationType: appointment.TypeVirtual,
		PriceCents:       6000,
		PaymentStatus:    appointment.PaymentPaid,
	}
}

func TestPromoteJustBeforeExpiry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	now := t0.Add(HoldTTL - time.Second) // t0 + 9m59s
	a := promoteDetails()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(h.ID).WillReturnRows(holdRow(h))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(h.Date + " " + h.StartTime).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM holds").WithArgs(h.ID, now).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(a.ID, a.CustomerName, a.CustomerEmail, a.CustomerPhone, a.ConsultationType,
			h.Date, h.StartTime, h.EndTime, a.PriceCents, a.PaymentStatus, appointment.StatusScheduled,
			a.Location, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), a.ID.String(), events.TypeCreated, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, NewRepository(mock).Promote(context.Background(), h.ID, "session-A", a, now))
	require.Equal(t, h.Date, a.Date)
	require.Equal(t, h.StartTime, a.StartTime)
	require.Equal(t, appointment.StatusScheduled, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteJustAfterExpiry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	now := t0.Add(HoldTTL + time.Second) // t0 + 10m01s

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(h.ID).WillReturnRows(holdRow(h))
	mock.ExpectRollback()

	err = NewRepository(mock).Promote(context.Background(), h.ID, "session-A", promoteDetails(), now)
	require.ErrorIs(t, err, ErrHoldExpired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteWrongSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(h.ID).WillReturnRows(holdRow(h))
	mock.ExpectRollback()

	err = NewRepository(mock).Promote(context.Background(), h.ID, "session-B", promoteDetails(), t0)
	require.ErrorIs(t, err, ErrNotOwner)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteHoldVanishedUnderLock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := testHold()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(h.ID).WillReturnRows(holdRow(h))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(h.Date + " " + h.StartTime).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	// Released or swept while waiting for the lock.
	mock.ExpectExec("DELETE FROM holds").WithArgs(h.ID, t0).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err = NewRepository(mock).Promote(context.Background(), h.ID, "session-A", promoteDetails(), t0)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteMissingHold(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err = NewRepository(mock).Promote(context.Background(), id, "session-A", promoteDetails(), t0)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldActive(t *testing.T) {
	h := testHold()
	require.True(t, h.Active(t0))
	require.True(t, h.Active(h.ExpiresAt.Add(-time.Second)))
	require.False(t, h.Active(h.ExpiresAt))
	require.False(t, h.Active(h.ExpiresAt.Add(time.Second)))
}
