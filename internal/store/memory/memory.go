package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	categories    map[string]domain.Category
	subcategories map[string]domain.Subcategory
	items         map[string]domain.Item
	pricing       map[string]domain.PricingConfig
	windows       map[string][]domain.AvailabilityWindow
	bookingsByID  map[string]*domain.Booking

	locksMu      sync.Mutex
	bookingLocks map[string]*sync.Mutex
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		categories:    make(map[string]domain.Category),
		subcategories: make(map[string]domain.Subcategory),
		items:         make(map[string]domain.Item),
		pricing:       make(map[string]domain.PricingConfig),
		windows:       make(map[string][]domain.AvailabilityWindow),
		bookingsByID:  make(map[string]*domain.Booking),
		bookingLocks:  make(map[string]*sync.Mutex),
	}
}

// AddCategory, AddSubcategory and AddItem load catalog rows. The catalog is
// owned elsewhere; these exist for seeding and tests.
func (s *Store) AddCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

func (s *Store) AddSubcategory(sc domain.Subcategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subcategories[sc.ID] = sc
}

func (s *Store) AddItem(item domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetItemWithParents(_ context.Context, id string) (*domain.ItemWithParents, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := &domain.ItemWithParents{Item: item}
	if item.CategoryID != "" {
		if c, ok := s.categories[item.CategoryID]; ok {
			out.Category = &c
		}
	}
	if item.SubcategoryID != "" {
		if sc, ok := s.subcategories[item.SubcategoryID]; ok {
			out.Subcategory = &sc
			if c, ok := s.categories[sc.CategoryID]; ok {
				out.SubcategoryCategory = &c
			}
		}
	}
	return out, nil
}

func (s *Store) GetPricingConfig(_ context.Context, itemID string) (*domain.PricingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.pricing[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cfg.Configuration = slices.Clone(cfg.Configuration)
	return &cfg, nil
}

func (s *Store) UpsertPricingConfig(_ context.Context, cfg domain.PricingConfig) (*domain.PricingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[cfg.ItemID]; !ok {
		return nil, store.ErrNotFound
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	cfg.Configuration = slices.Clone(cfg.Configuration)
	s.pricing[cfg.ItemID] = cfg

	out := cfg
	out.Configuration = slices.Clone(cfg.Configuration)
	return &out, nil
}

func (s *Store) ListAvailabilityWindows(_ context.Context, itemID string, dayOfWeek int) ([]domain.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AvailabilityWindow, 0)
	for _, w := range s.windows[itemID] {
		if w.IsActive && w.DayOfWeek == dayOfWeek {
			result = append(result, w)
		}
	}
	slices.SortFunc(result, func(a, b domain.AvailabilityWindow) int {
		return strings.Compare(a.StartTime, b.StartTime)
	})
	return result, nil
}

// CreateAvailabilityWindow expects zero-padded "HH:MM" times so that string
// order matches time order.
func (s *Store) CreateAvailabilityWindow(_ context.Context, window domain.AvailabilityWindow) (*domain.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[window.ItemID]; !ok {
		return nil, store.ErrNotFound
	}
	if window.IsActive {
		for _, existing := range s.windows[window.ItemID] {
			if !existing.IsActive || existing.DayOfWeek != window.DayOfWeek {
				continue
			}
			if window.StartTime < existing.EndTime && window.EndTime > existing.StartTime {
				return nil, store.ErrWindowOverlap
			}
		}
	}
	if window.CreatedAt.IsZero() {
		window.CreatedAt = time.Now().UTC()
	}
	s.windows[window.ItemID] = append(s.windows[window.ItemID], window)
	return &window, nil
}

func (s *Store) ListBookingsInRange(_ context.Context, itemID string, from time.Time, to time.Time) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Booking, 0)
	for _, b := range s.bookingsByID {
		if b.ItemID != itemID || b.Status != domain.BookingConfirmed {
			continue
		}
		if b.BookingTime.After(to) || !b.EndTime().After(from) {
			continue
		}
		result = append(result, cloneBooking(b))
	}
	sortBookings(result)
	return result, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookingsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneBooking(b)
	return &out, nil
}

func (s *Store) CancelBooking(_ context.Context, id string, at time.Time) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookingsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if b.Status != domain.BookingConfirmed {
		return nil, store.ErrInvalidTransition
	}
	at = at.UTC()
	b.Status = domain.BookingCancelled
	b.CancelledAt = &at

	out := cloneBooking(b)
	return &out, nil
}

// WithBookingTx serialises booking writes per item with a dedicated mutex.
// Inserts are staged and only become visible when fn succeeds.
func (s *Store) WithBookingTx(ctx context.Context, itemID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	s.mu.RLock()
	_, ok := s.items[itemID]
	s.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}

	lock := s.bookingLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &bookingTx{store: s, itemID: itemID}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range tx.pending {
		b := tx.pending[i]
		s.bookingsByID[b.ID] = &b
	}
	return nil
}

func (s *Store) bookingLock(itemID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.bookingLocks[itemID]
	if !ok {
		lock = &sync.Mutex{}
		s.bookingLocks[itemID] = lock
	}
	return lock
}

type bookingTx struct {
	store   *Store
	itemID  string
	pending []domain.Booking
}

func (tx *bookingTx) FindOverlapping(_ context.Context, itemID string, start time.Time, end time.Time) (*domain.Booking, error) {
	if itemID != tx.itemID {
		return nil, fmt.Errorf("booking transaction is scoped to item %s, not %s", tx.itemID, itemID)
	}
	if b := tx.overlapping(start, end); b != nil {
		out := cloneBooking(b)
		return &out, nil
	}
	return nil, nil
}

// InsertBooking rejects overlaps itself, mirroring the exclusion constraint
// of the postgres schema.
func (tx *bookingTx) InsertBooking(_ context.Context, booking domain.Booking) (*domain.Booking, error) {
	if booking.ItemID != tx.itemID {
		return nil, fmt.Errorf("booking transaction is scoped to item %s, not %s", tx.itemID, booking.ItemID)
	}
	if booking.Status == domain.BookingConfirmed && tx.overlapping(booking.BookingTime, booking.EndTime()) != nil {
		return nil, store.ErrBookingConflict
	}

	tx.store.mu.RLock()
	_, exists := tx.store.bookingsByID[booking.ID]
	tx.store.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("booking %s already exists", booking.ID)
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	tx.pending = append(tx.pending, booking)

	out := booking
	return &out, nil
}

func (tx *bookingTx) overlapping(start time.Time, end time.Time) *domain.Booking {
	for i := range tx.pending {
		b := &tx.pending[i]
		if b.Status == domain.BookingConfirmed && domain.Overlaps(start, end, b.BookingTime, b.EndTime()) {
			return b
		}
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	var found *domain.Booking
	for _, b := range tx.store.bookingsByID {
		if b.ItemID != tx.itemID || b.Status != domain.BookingConfirmed {
			continue
		}
		if !domain.Overlaps(start, end, b.BookingTime, b.EndTime()) {
			continue
		}
		if found == nil || b.BookingTime.Before(found.BookingTime) {
			found = b
		}
	}
	if found == nil {
		return nil
	}
	out := cloneBooking(found)
	return &out
}

func cloneBooking(src *domain.Booking) domain.Booking {
	out := *src
	if src.CancelledAt != nil {
		at := *src.CancelledAt
		out.CancelledAt = &at
	}
	return out
}

func sortBookings(bookings []domain.Booking) {
	slices.SortFunc(bookings, func(a, b domain.Booking) int {
		return a.BookingTime.Compare(b.BookingTime)
	})
}
