package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/pricing"
	"venuebook/backend/internal/store"
)

const (
	// SlotStep is the distance between consecutive candidate start times
	// inside an availability window.
	SlotStep = 30 * time.Minute

	DefaultSlotMinutes = 60
	maxSlotMinutes     = 24 * 60
)

type interval struct {
	start time.Time
	end   time.Time
}

// GetAvailableSlots lists the bookable slots of an item on the UTC calendar
// day of date. The result is a snapshot; CreateBooking re-checks under lock.
func (s *Service) GetAvailableSlots(ctx context.Context, itemID string, date time.Time, durationMinutes int) ([]domain.Slot, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetAvailableSlots", trace.WithAttributes(
		attribute.String("item.id", itemID),
		attribute.String("date", date.UTC().Format(time.DateOnly)),
		attribute.Int("duration_minutes", durationMinutes),
	))
	defer span.End()

	slots, err := s.availableSlots(ctx, itemID, date, durationMinutes)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots", len(slots)))
	return slots, nil
}

func (s *Service) availableSlots(ctx context.Context, itemID string, date time.Time, durationMinutes int) ([]domain.Slot, error) {
	if durationMinutes == 0 {
		durationMinutes = DefaultSlotMinutes
	}
	if durationMinutes < 0 || durationMinutes > maxSlotMinutes {
		return nil, domain.Validation("Invalid slot duration", domain.FieldError{
			Field:   "duration",
			Message: fmt.Sprintf("must be between 1 and %d minutes", maxSlotMinutes),
		})
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound("Item not found: %s", itemID)
		}
		return nil, err
	}
	if !item.IsBookable || !item.IsActive {
		return nil, domain.BusinessRule("Item is not available for booking")
	}

	y, m, d := date.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	windows, err := s.repo.ListAvailabilityWindows(ctx, itemID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	slots := make([]domain.Slot, 0)
	if len(windows) == 0 {
		return slots, nil
	}

	endOfDay := day.Add(24*time.Hour - time.Millisecond)
	bookings, err := s.repo.ListBookingsInRange(ctx, itemID, day, endOfDay)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	duration := time.Duration(durationMinutes) * time.Minute
	var q *quoter

	for _, w := range windows {
		candidates, err := windowCandidates(day, w, duration)
		if err != nil {
			return nil, fmt.Errorf("availability window %s: %w", w.ID, err)
		}
		for c := range candidates {
			if c.start.Before(now) || overlapsAny(c, bookings) {
				continue
			}
			if q == nil {
				if q, err = s.loadQuoter(ctx, itemID); err != nil {
					return nil, err
				}
			}
			quote, err := q.price(ctx, domain.PriceParams{
				Quantity:    1,
				RequestTime: pricing.ClockOf(c.start).String(),
			}, now)
			if err != nil {
				if errors.Is(err, domain.ErrBusinessRule) {
					s.logger.Debug("slot dropped: no price at this time",
						zap.String("item_id", itemID),
						zap.Time("slot_start", c.start),
						zap.Error(err),
					)
					continue
				}
				return nil, err
			}
			slots = append(slots, domain.Slot{
				StartTime:    c.start,
				EndTime:      c.end,
				Available:    true,
				PriceDetails: &quote,
			})
		}
	}
	return slots, nil
}

// windowCandidates yields [t, t+duration) for t = start, start+SlotStep, ...
// as long as the whole interval fits before the window end.
func windowCandidates(day time.Time, w domain.AvailabilityWindow, duration time.Duration) (iter.Seq[interval], error) {
	startClock, err := pricing.ParseClock(w.StartTime)
	if err != nil {
		return nil, err
	}
	endClock, err := pricing.ParseClock(w.EndTime)
	if err != nil {
		return nil, err
	}
	windowStart, windowEnd := startClock.On(day), endClock.On(day)

	return func(yield func(interval) bool) {
		for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(SlotStep) {
			if !yield(interval{start: t, end: t.Add(duration)}) {
				return
			}
		}
	}, nil
}

func overlapsAny(c interval, bookings []domain.Booking) bool {
	for _, b := range bookings {
		if domain.Overlaps(c.start, c.end, b.BookingTime, b.EndTime()) {
			return true
		}
	}
	return false
}
