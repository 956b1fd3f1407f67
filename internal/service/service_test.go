package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/events"
	"venuebook/backend/internal/store/memory"
)

const (
	catServices = "cat-services"
	catExempt   = "cat-exempt"
	subInherit  = "sub-inherit"
	subOverride = "sub-override"

	itemRoom      = "item-room"
	itemStatic    = "item-static"
	itemHidden    = "item-hidden"
	itemNoPricing = "item-no-pricing"
)

// testMonday is a Monday; the fixture clock sits on the Sunday before it.
var (
	testMonday = time.Date(2031, 6, 2, 0, 0, 0, 0, time.UTC)
	testNow    = time.Date(2031, 6, 1, 8, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc   *Service
	repo  *memory.Store
	pub   *recordingPublisher
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.New()
	repo.AddCategory(domain.Category{ID: catServices, Name: "Services", Tax: domain.OverrideTax(decimal.NewFromInt(18)), IsActive: true})
	repo.AddCategory(domain.Category{ID: catExempt, Name: "Exempt", Tax: domain.ExemptTax(), IsActive: true})
	repo.AddSubcategory(domain.Subcategory{ID: subInherit, CategoryID: catServices, Name: "Inherit", Tax: domain.InheritTax(), IsActive: true})
	repo.AddSubcategory(domain.Subcategory{ID: subOverride, CategoryID: catServices, Name: "Override", Tax: domain.OverrideTax(decimal.NewFromInt(7)), IsActive: true})

	repo.AddItem(domain.Item{ID: itemRoom, CategoryID: catServices, Name: "Room", Tax: domain.InheritTax(), IsActive: true, IsBookable: true})
	repo.AddItem(domain.Item{ID: itemStatic, CategoryID: catServices, Name: "Coffee", Tax: domain.InheritTax(), IsActive: true})
	repo.AddItem(domain.Item{ID: itemHidden, CategoryID: catServices, Name: "Closed room", Tax: domain.InheritTax(), IsActive: false, IsBookable: true})
	repo.AddItem(domain.Item{ID: itemNoPricing, CategoryID: catServices, Name: "Unpriced", Tax: domain.InheritTax(), IsActive: true, IsBookable: true})

	now := testNow
	pub := &recordingPublisher{}
	svc := New(repo, WithPublisher(pub), WithClock(func() time.Time { return now }))

	f := &fixture{svc: svc, repo: repo, pub: pub, clock: &now}
	f.setPricing(t, itemRoom, domain.PricingTiered, `{"tiers":[{"max_quantity":1,"price":1000},{"max_quantity":5,"price":4000},{"max_quantity":10,"price":7500}]}`)
	f.setPricing(t, itemStatic, domain.PricingStatic, `{"base_price":500}`)
	f.setPricing(t, itemHidden, domain.PricingStatic, `{"base_price":100}`)
	return f
}

func (f *fixture) setPricing(t *testing.T, itemID string, typ domain.PricingType, raw string) {
	t.Helper()
	_, err := f.svc.SetItemPricing(context.Background(), itemID, typ, json.RawMessage(raw))
	require.NoError(t, err)
}

func (f *fixture) addWindow(t *testing.T, itemID string, day time.Weekday, start, end string) {
	t.Helper()
	_, err := f.svc.AddAvailabilityWindow(context.Background(), domain.AvailabilityWindow{
		ItemID: itemID, DayOfWeek: int(day), StartTime: start, EndTime: end, IsActive: true,
	})
	require.NoError(t, err)
}

func (f *fixture) book(t *testing.T, itemID string, start time.Time, minutes int) domain.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), bookingRequest(itemID, start, minutes))
	require.NoError(t, err)
	return b
}

func bookingRequest(itemID string, start time.Time, minutes int) domain.BookingRequest {
	return domain.BookingRequest{
		ItemID:          itemID,
		BookingTime:     start,
		DurationMinutes: minutes,
		CustomerName:    "Grace Hopper",
		CustomerEmail:   "Grace@Example.com",
	}
}
