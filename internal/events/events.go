// Package events announces booking lifecycle changes to other services.
package events

import (
	"context"
	"encoding/json"
	"time"

	"venuebook/backend/internal/domain"
)

const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
)

type Event struct {
	Type            string               `json:"type"`
	BookingID       string               `json:"booking_id"`
	ItemID          string               `json:"item_id"`
	BookingTime     time.Time            `json:"booking_time"`
	DurationMinutes int                  `json:"duration_minutes"`
	Status          domain.BookingStatus `json:"status"`
	OccurredAt      time.Time            `json:"occurred_at"`
}

func BookingEvent(eventType string, b domain.Booking, at time.Time) Event {
	return Event{
		Type:            eventType,
		BookingID:       b.ID,
		ItemID:          b.ItemID,
		BookingTime:     b.BookingTime,
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
		OccurredAt:      at.UTC(),
	}
}

// Publisher delivers events after the originating transaction committed.
// Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}

func encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}
