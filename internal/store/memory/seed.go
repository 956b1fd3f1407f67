package memory

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"venuebook/backend/internal/domain"
)

// Fixed identifiers of the demo catalog, shared with the postgres seed.
const (
	SeedCategoryFood     = "0b6f3c1e-3d4a-4c55-9a51-1f0c2a7d0001"
	SeedCategoryDrinks   = "0b6f3c1e-3d4a-4c55-9a51-1f0c2a7d0002"
	SeedCategoryServices = "0b6f3c1e-3d4a-4c55-9a51-1f0c2a7d0003"

	SeedSubcategoryWine = "5e2d7a90-8b1f-4f0e-b4c6-2c9e6b3d0001"
	SeedSubcategoryBeer = "5e2d7a90-8b1f-4f0e-b4c6-2c9e6b3d0002"

	SeedItemPizza       = "a7c41f52-6e0b-4d8a-8f37-9b2e4c1d0001"
	SeedItemWine        = "a7c41f52-6e0b-4d8a-8f37-9b2e4c1d0002"
	SeedItemMeetingRoom = "a7c41f52-6e0b-4d8a-8f37-9b2e4c1d0003"
	SeedItemHappyHour   = "a7c41f52-6e0b-4d8a-8f37-9b2e4c1d0004"
)

// NewSeeded returns a store holding the demo venue: a food item priced
// statically, a wine inheriting its subcategory's tax, a tiered bookable
// meeting room open Monday to Friday and a time-of-day priced drink.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	s.AddCategory(domain.Category{ID: SeedCategoryFood, Name: "Food", Tax: domain.OverrideTax(decimal.NewFromInt(5)), IsActive: true})
	s.AddCategory(domain.Category{ID: SeedCategoryDrinks, Name: "Beverages", Tax: domain.OverrideTax(decimal.NewFromInt(10)), IsActive: true})
	s.AddCategory(domain.Category{ID: SeedCategoryServices, Name: "Professional Services", Tax: domain.OverrideTax(decimal.NewFromInt(18)), IsActive: true})

	s.AddSubcategory(domain.Subcategory{ID: SeedSubcategoryWine, CategoryID: SeedCategoryDrinks, Name: "Fine Wines", Tax: domain.OverrideTax(decimal.NewFromInt(20)), IsActive: true})
	s.AddSubcategory(domain.Subcategory{ID: SeedSubcategoryBeer, CategoryID: SeedCategoryDrinks, Name: "Craft Beers", Tax: domain.InheritTax(), IsActive: true})

	s.AddItem(domain.Item{ID: SeedItemPizza, CategoryID: SeedCategoryFood, Name: "Margherita Pizza", Description: "Classic tomato, mozzarella, and basil", Tax: domain.InheritTax(), IsActive: true})
	s.AddItem(domain.Item{ID: SeedItemWine, SubcategoryID: SeedSubcategoryWine, Name: "Chianti Classico", Description: "Vintage 2019 red wine", Tax: domain.InheritTax(), IsActive: true})
	s.AddItem(domain.Item{ID: SeedItemMeetingRoom, CategoryID: SeedCategoryServices, Name: "Executive Meeting Room", Description: "8-person room with 4K display", Tax: domain.InheritTax(), IsActive: true, IsBookable: true})
	s.AddItem(domain.Item{ID: SeedItemHappyHour, SubcategoryID: SeedSubcategoryBeer, Name: "Pale Ale (Happy Hour)", Description: "Tax-free promotional drink", Tax: domain.OverrideTax(decimal.Zero), IsActive: true})

	pricing := []struct {
		itemID string
		typ    domain.PricingType
		cfg    any
	}{
		{SeedItemPizza, domain.PricingStatic, map[string]any{"base_price": 500}},
		{SeedItemWine, domain.PricingStatic, map[string]any{"base_price": 2500}},
		{SeedItemMeetingRoom, domain.PricingTiered, map[string]any{"tiers": []map[string]any{
			{"max_quantity": 1, "price": 1000},
			{"max_quantity": 4, "price": 3500},
			{"max_quantity": 8, "price": 6000},
		}}},
		{SeedItemHappyHour, domain.PricingDynamic, map[string]any{"time_slots": []map[string]any{
			{"start_time": "00:00", "end_time": "17:00", "price": 400},
			{"start_time": "17:00", "end_time": "20:00", "price": 250},
			{"start_time": "20:00", "end_time": "23:59", "price": 400},
		}}},
	}
	for _, p := range pricing {
		raw, _ := json.Marshal(p.cfg)
		s.pricing[p.itemID] = domain.PricingConfig{ItemID: p.itemID, Type: p.typ, Configuration: raw, UpdatedAt: now}
	}

	for day := time.Monday; day <= time.Friday; day++ {
		w := domain.AvailabilityWindow{
			ID:        windowSeedID(day),
			ItemID:    SeedItemMeetingRoom,
			DayOfWeek: int(day),
			StartTime: "09:00",
			EndTime:   "18:00",
			IsActive:  true,
			CreatedAt: now,
		}
		s.windows[w.ItemID] = append(s.windows[w.ItemID], w)
	}

	booking := domain.Booking{
		ID:              "c3e8b6d4-1a2f-4b7c-9d0e-5f6a7b8c0001",
		ItemID:          SeedItemMeetingRoom,
		BookingTime:     nextMonday(now).Add(10 * time.Hour),
		DurationMinutes: 60,
		Status:          domain.BookingConfirmed,
		CustomerName:    "Demo Customer",
		CustomerEmail:   "demo@example.com",
		CreatedAt:       now,
	}
	s.bookingsByID[booking.ID] = &booking

	return s
}

func windowSeedID(day time.Weekday) string {
	return "e91d4b27-7c3a-4f68-a2b5-8d6c0e1f000" + string(rune('0'+int(day)))
}

// nextMonday returns midnight UTC of the first Monday strictly after t.
func nextMonday(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	days := (int(time.Monday) - int(midnight.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return midnight.AddDate(0, 0, days)
}
