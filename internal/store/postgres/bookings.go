package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/store"
)

const bookingColumns = `
	id::text, item_id::text, booking_time, duration_minutes, status::text,
	customer_name, customer_email, COALESCE(notes, ''), created_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var (
		b           domain.Booking
		status      string
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.ItemID, &b.BookingTime, &b.DurationMinutes, &status,
		&b.CustomerName, &b.CustomerEmail, &b.Notes, &b.CreatedAt, &cancelledAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.BookingTime = b.BookingTime.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	if cancelledAt.Valid {
		at := cancelledAt.Time.UTC()
		b.CancelledAt = &at
	}
	return b, nil
}

func (s *Store) ListBookingsInRange(ctx context.Context, itemID string, from time.Time, to time.Time) ([]domain.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE item_id = $1 AND status = 'confirmed'
			AND booking_time <= $3 AND booking_end > $2
		ORDER BY booking_time
	`, itemID, from.UTC(), to.UTC())
	if err != nil {
		if isInvalidText(err) {
			return []domain.Booking{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0, 8)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) CancelBooking(ctx context.Context, id string, at time.Time) (*domain.Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = $2
		WHERE id = $1 AND status = 'confirmed'
		RETURNING `+bookingColumns,
		id, at.UTC(),
	))
	if err == nil {
		return &b, nil
	}
	if isInvalidText(err) {
		return nil, store.ErrNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrInvalidTransition
}

// WithBookingTx opens a READ COMMITTED transaction and takes a row lock on
// the item before handing control to fn. Every booking writer for the item
// queues on that lock, so the overlap check in fn sees all committed
// bookings, including ones inserted into a previously empty range.
func (s *Store) WithBookingTx(ctx context.Context, itemID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockItem(ctx, tx, itemID); err != nil {
		return err
	}

	if err := fn(ctx, &bookingTx{tx: tx, itemID: itemID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isBookingConflict(err) {
			return store.ErrBookingConflict
		}
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

type bookingTx struct {
	tx     *sql.Tx
	itemID string
}

func (b *bookingTx) FindOverlapping(ctx context.Context, itemID string, start time.Time, end time.Time) (*domain.Booking, error) {
	if itemID != b.itemID {
		return nil, fmt.Errorf("booking transaction is scoped to item %s, not %s", b.itemID, itemID)
	}
	found, err := scanBooking(b.tx.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE item_id = $1 AND status = 'confirmed'
			AND booking_time < $3 AND booking_end > $2
		ORDER BY booking_time
		LIMIT 1
		FOR UPDATE
	`, itemID, start.UTC(), end.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &found, nil
}

func (b *bookingTx) InsertBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	if booking.ItemID != b.itemID {
		return nil, fmt.Errorf("booking transaction is scoped to item %s, not %s", b.itemID, booking.ItemID)
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	inserted, err := scanBooking(b.tx.QueryRowContext(ctx, `
		INSERT INTO bookings (
			id, item_id, booking_time, booking_end, duration_minutes, status,
			customer_name, customer_email, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::booking_status, $7, $8, $9, $10)
		RETURNING `+bookingColumns,
		booking.ID, booking.ItemID, booking.BookingTime.UTC(), booking.EndTime().UTC(),
		booking.DurationMinutes, string(booking.Status),
		booking.CustomerName, booking.CustomerEmail, nullIfEmpty(booking.Notes), booking.CreatedAt,
	))
	if err != nil {
		if isBookingConflict(err) {
			return nil, store.ErrBookingConflict
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return &inserted, nil
}
