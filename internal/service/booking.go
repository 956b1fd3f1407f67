package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/events"
	"venuebook/backend/internal/store"
)

const bookingConflictMessage = "The requested time slot overlaps with an existing booking"

// CreateBooking is the only path that inserts confirmed bookings. The overlap
// check and the insert run inside one store transaction holding the item's
// booking lock; any failure rolls both back.
func (s *Service) CreateBooking(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateBooking", trace.WithAttributes(attribute.String("item.id", req.ItemID)))
	defer span.End()

	booking, err := s.createBooking(ctx, req)
	if err != nil {
		recordSpanError(span, err)
		return domain.Booking{}, err
	}
	span.SetAttributes(attribute.String("booking.id", booking.ID))
	return booking, nil
}

func (s *Service) createBooking(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	req.ItemID = strings.TrimSpace(req.ItemID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validateBookingRequest(req); err != nil {
		return domain.Booking{}, err
	}

	item, err := s.repo.GetItem(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Booking{}, domain.NotFound("Item not found: %s", req.ItemID)
		}
		return domain.Booking{}, err
	}
	if !item.IsBookable || !item.IsActive {
		return domain.Booking{}, domain.BusinessRule("This item does not accept bookings")
	}

	candidate := domain.Booking{
		ID:              uuid.NewString(),
		ItemID:          item.ID,
		BookingTime:     req.BookingTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          domain.BookingConfirmed,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		Notes:           req.Notes,
		CreatedAt:       s.clock(),
	}

	var created *domain.Booking
	err = s.repo.WithBookingTx(ctx, item.ID, func(ctx context.Context, tx store.BookingTx) error {
		existing, err := tx.FindOverlapping(ctx, candidate.ItemID, candidate.BookingTime, candidate.EndTime())
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflict(bookingConflictMessage)
		}
		created, err = tx.InsertBooking(ctx, candidate)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBookingConflict):
			return domain.Booking{}, domain.Conflict(bookingConflictMessage)
		case errors.Is(err, store.ErrNotFound):
			return domain.Booking{}, domain.NotFound("Item not found: %s", item.ID)
		}
		return domain.Booking{}, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", created.ID),
		zap.String("item_id", created.ItemID),
		zap.Time("booking_time", created.BookingTime),
		zap.Int("duration_minutes", created.DurationMinutes),
	)
	s.publish(ctx, events.TypeBookingCreated, *created)
	return *created, nil
}

func (s *Service) validateBookingRequest(req domain.BookingRequest) error {
	var details []domain.FieldError
	if req.ItemID == "" {
		details = append(details, domain.FieldError{Field: "item_id", Message: "is required"})
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > maxSlotMinutes {
		details = append(details, domain.FieldError{Field: "duration_minutes", Message: "must be between 1 and 1440"})
	}
	if req.BookingTime.IsZero() {
		details = append(details, domain.FieldError{Field: "booking_time", Message: "is required"})
	} else if !req.BookingTime.After(s.clock()) {
		details = append(details, domain.FieldError{Field: "booking_time", Message: "Booking time must be in the future"})
	}
	if req.CustomerName == "" {
		details = append(details, domain.FieldError{Field: "customer_name", Message: "is required"})
	}
	if req.CustomerEmail == "" {
		details = append(details, domain.FieldError{Field: "customer_email", Message: "is required"})
	}
	if len(details) > 0 {
		return domain.Validation("Invalid booking request", details...)
	}
	return nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	b, err := s.repo.GetBooking(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Booking{}, domain.NotFound("Booking not found: %s", id)
		}
		return domain.Booking{}, err
	}
	return *b, nil
}

// AuthorizeBooking returns the booking when the caller may act on it: an
// admin actor, or a customer presenting the email it was booked with. Any
// other caller gets the same NotFound as a missing booking.
func (s *Service) AuthorizeBooking(ctx context.Context, id string, customerEmail string) (domain.Booking, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if actor, ok := ActorFromContext(ctx); ok && actor.Role == domain.RoleAdmin {
		return b, nil
	}
	email := strings.ToLower(strings.TrimSpace(customerEmail))
	if email == "" || subtle.ConstantTimeCompare([]byte(email), []byte(b.CustomerEmail)) != 1 {
		return domain.Booking{}, domain.NotFound("Booking not found: %s", strings.TrimSpace(id))
	}
	return b, nil
}

func (s *Service) CancelBooking(ctx context.Context, id string) (domain.Booking, error) {
	id = strings.TrimSpace(id)
	b, err := s.repo.CancelBooking(ctx, id, s.clock())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Booking{}, domain.NotFound("Booking not found: %s", id)
		case errors.Is(err, store.ErrInvalidTransition):
			return domain.Booking{}, domain.BusinessRule("Booking %s is already cancelled", id)
		}
		return domain.Booking{}, err
	}

	s.logger.Info("booking cancelled", zap.String("booking_id", b.ID), zap.String("item_id", b.ItemID))
	s.publish(ctx, events.TypeBookingCancelled, *b)
	return *b, nil
}

