package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/pricing"
	"venuebook/backend/internal/store"
)

// AddAvailabilityWindow stores a weekly opening-hours block. Active windows
// of one item never overlap on the same weekday.
func (s *Service) AddAvailabilityWindow(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error) {
	var details []domain.FieldError
	if window.DayOfWeek < 0 || window.DayOfWeek > 6 {
		details = append(details, domain.FieldError{Field: "day_of_week", Message: "must be between 0 and 6"})
	}
	start, startErr := pricing.ParseClock(window.StartTime)
	if startErr != nil {
		details = append(details, domain.FieldError{Field: "start_time", Message: "must be in HH:MM format"})
	}
	end, endErr := pricing.ParseClock(window.EndTime)
	if endErr != nil {
		details = append(details, domain.FieldError{Field: "end_time", Message: "must be in HH:MM format"})
	}
	if startErr == nil && endErr == nil && end <= start {
		details = append(details, domain.FieldError{
			Field:   "end_time",
			Message: fmt.Sprintf("End time %s must be after start time %s", end, start),
		})
	}
	if len(details) > 0 {
		return domain.AvailabilityWindow{}, domain.Validation("Invalid availability window", details...)
	}

	window.ID = uuid.NewString()
	window.StartTime = start.String()
	window.EndTime = end.String()
	window.CreatedAt = s.clock()

	created, err := s.repo.CreateAvailabilityWindow(ctx, window)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.AvailabilityWindow{}, domain.NotFound("Item not found: %s", window.ItemID)
		case errors.Is(err, store.ErrWindowOverlap):
			return domain.AvailabilityWindow{}, domain.Conflict("Availability window %s-%s overlaps an existing window on day %d", window.StartTime, window.EndTime, window.DayOfWeek)
		}
		return domain.AvailabilityWindow{}, err
	}

	actor, _ := ActorFromContext(ctx)
	s.logger.Info("availability window added",
		zap.String("item_id", created.ItemID),
		zap.Int("day_of_week", created.DayOfWeek),
		zap.String("start", created.StartTime),
		zap.String("end", created.EndTime),
		zap.String("actor", actor.Subject),
	)
	return *created, nil
}
