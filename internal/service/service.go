package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/events"
	"venuebook/backend/internal/observability"
	"venuebook/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the pricing and scheduling core. It is safe for concurrent use;
// all shared state lives in the repository.
type Service struct {
	repo      store.Repository
	publisher events.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		publisher: events.NoopPublisher{},
		logger:    zap.NewNop(),
		tracer:    observability.Tracer("service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// publish runs after commit; a failed delivery never fails the request.
func (s *Service) publish(ctx context.Context, eventType string, b domain.Booking) {
	if err := s.publisher.Publish(ctx, events.BookingEvent(eventType, b, s.clock())); err != nil {
		s.logger.Warn("failed to publish booking event",
			zap.String("event", eventType),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}
