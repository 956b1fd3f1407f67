package store

import (
	"context"
	"errors"
	"time"

	"venuebook/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrBookingConflict   = errors.New("booking overlaps an existing booking")
	ErrWindowOverlap     = errors.New("availability window overlaps an existing window")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type CatalogReader interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	GetItemWithParents(ctx context.Context, id string) (*domain.ItemWithParents, error)
}

type PricingStore interface {
	GetPricingConfig(ctx context.Context, itemID string) (*domain.PricingConfig, error)
	UpsertPricingConfig(ctx context.Context, cfg domain.PricingConfig) (*domain.PricingConfig, error)
}

type AvailabilityStore interface {
	// ListAvailabilityWindows returns the active windows of an item for one
	// weekday, ordered by start time.
	ListAvailabilityWindows(ctx context.Context, itemID string, dayOfWeek int) ([]domain.AvailabilityWindow, error)
	// CreateAvailabilityWindow fails with ErrWindowOverlap when the window
	// intersects an active window of the same item and weekday.
	CreateAvailabilityWindow(ctx context.Context, window domain.AvailabilityWindow) (*domain.AvailabilityWindow, error)
}

type BookingStore interface {
	// ListBookingsInRange returns confirmed bookings that start no later than
	// to and end after from, ordered by start. A booking running past midnight
	// is listed for both days.
	ListBookingsInRange(ctx context.Context, itemID string, from time.Time, to time.Time) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	// CancelBooking moves a confirmed booking to cancelled. It returns
	// ErrInvalidTransition when the booking is not confirmed.
	CancelBooking(ctx context.Context, id string, at time.Time) (*domain.Booking, error)
	// WithBookingTx runs fn inside a transaction holding the booking lock of
	// itemID. Bookings of other items are not blocked. fn returning an error
	// rolls everything back.
	WithBookingTx(ctx context.Context, itemID string, fn func(ctx context.Context, tx BookingTx) error) error
}

// BookingTx is the locked view of one item's bookings.
type BookingTx interface {
	// FindOverlapping returns a confirmed booking of itemID intersecting
	// [start, end), or nil.
	FindOverlapping(ctx context.Context, itemID string, start time.Time, end time.Time) (*domain.Booking, error)
	InsertBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error)
}

type Repository interface {
	CatalogReader
	PricingStore
	AvailabilityStore
	BookingStore
}
