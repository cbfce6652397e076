package appointment

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewService(NewRepository(mock), nil, nil).
		WithClock(func() time.Time { return repoNow })
	return svc, mock
}

func TestCreateManualRejectsBadDetails(t *testing.T) {
	svc, mock := newTestService(t)

	bad := validDetails()
	bad.CustomerEmail = "nope"
	_, err := svc.CreateManual(context.Background(), "2026-03-09", "09:00", "09:30", bad)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet(), "no SQL should run for invalid details")
}

func TestCreateManualRejectsInvertedSlot(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.CreateManual(context.Background(), "2026-03-09", "10:00", "09:30", validDetails())
	require.ErrorIs(t, err, ErrInvalidSlot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleRejectsMalformedDate(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.Reschedule(context.Background(), newScheduled().ID, "09/03/2026", "11:00", "11:30")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceCancelDelegatesToRepository(t *testing.T) {
	svc, mock := newTestService(t)

	a := newScheduled()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WithArgs(a.ID).WillReturnRows(appointmentRow(a.ID, StatusScheduled))
	mock.ExpectExec("UPDATE appointments").WithArgs(a.ID, StatusCancelled, repoNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), a.ID.String(), "cancelled", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, svc.Cancel(context.Background(), a.ID))
	require.NoError(t, mock.ExpectationsWereMet())
}
