package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/store"
)

const testItemID = "a7c41f52-6e0b-4d8a-8f37-9b2e4c1d0003"

var bookingCols = []string{
	"id", "item_id", "booking_time", "duration_minutes", "status",
	"customer_name", "customer_email", "notes", "created_at", "cancelled_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func testBooking(start time.Time) domain.Booking {
	return domain.Booking{
		ID:              "4b0f0c2e-9a51-4c1a-8d43-000000000001",
		ItemID:          testItemID,
		BookingTime:     start,
		DurationMinutes: 60,
		Status:          domain.BookingConfirmed,
		CustomerName:    "Ada",
		CustomerEmail:   "ada@example.com",
		CreatedAt:       start.Add(-24 * time.Hour),
	}
}

func insertBookingFn(b domain.Booking) func(ctx context.Context, tx store.BookingTx) error {
	return func(ctx context.Context, tx store.BookingTx) error {
		existing, err := tx.FindOverlapping(ctx, b.ItemID, b.BookingTime, b.EndTime())
		if err != nil {
			return err
		}
		if existing != nil {
			return store.ErrBookingConflict
		}
		_, err = tx.InsertBooking(ctx, b)
		return err
	}
}

func TestWithBookingTxLocksChecksInsertsCommits(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2031, 6, 2, 10, 0, 0, 0, time.UTC)
	b := testBooking(start)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM items WHERE id = \$1 FOR UPDATE`).
		WithArgs(testItemID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testItemID))
	mock.ExpectQuery(`booking_time < \$3 AND booking_end > \$2`).
		WithArgs(testItemID, start, start.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectQuery(`INSERT INTO bookings`).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(
			b.ID, b.ItemID, start, 60, "confirmed", b.CustomerName, b.CustomerEmail, "", b.CreatedAt, nil,
		))
	mock.ExpectCommit()

	err := s.WithBookingTx(context.Background(), testItemID, insertBookingFn(b))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithBookingTxRollsBackOnOverlap(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2031, 6, 2, 10, 0, 0, 0, time.UTC)
	b := testBooking(start)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM items WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testItemID))
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(
			"existing", testItemID, start.Add(-30*time.Minute), 60, "confirmed", "Bob", "bob@example.com", "", start, nil,
		))
	mock.ExpectRollback()

	err := s.WithBookingTx(context.Background(), testItemID, insertBookingFn(b))
	assert.ErrorIs(t, err, store.ErrBookingConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithBookingTxTranslatesExclusionViolation(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2031, 6, 2, 10, 0, 0, 0, time.UTC)
	b := testBooking(start)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM items WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testItemID))
	mock.ExpectQuery(`booking_end > \$2`).
		WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectQuery(`INSERT INTO bookings`).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"})
	mock.ExpectRollback()

	err := s.WithBookingTx(context.Background(), testItemID, insertBookingFn(b))
	assert.ErrorIs(t, err, store.ErrBookingConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithBookingTxUnknownItem(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM items WHERE id = \$1 FOR UPDATE`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err := s.WithBookingTx(context.Background(), testItemID, func(context.Context, store.BookingTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithBookingTxRollsBackOnCallbackError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM items WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testItemID))
	mock.ExpectRollback()

	err := s.WithBookingTx(context.Background(), testItemID, func(context.Context, store.BookingTx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingDistinguishesMissingFromCancelled(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2031, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE bookings`).WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := s.CancelBooking(context.Background(), "b1", at)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	mock.ExpectQuery(`UPDATE bookings`).WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = s.CancelBooking(context.Background(), "b2", at)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPricingConfigMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM pricing`).WillReturnError(sql.ErrNoRows)

	_, err := s.GetPricingConfig(context.Background(), testItemID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateAvailabilityWindowRejectsOverlap(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM items WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testItemID))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(testItemID, 1, "17:00", "19:00").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := s.CreateAvailabilityWindow(context.Background(), domain.AvailabilityWindow{
		ID: "w1", ItemID: testItemID, DayOfWeek: 1, StartTime: "17:00", EndTime: "19:00", IsActive: true,
	})
	assert.ErrorIs(t, err, store.ErrWindowOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}
