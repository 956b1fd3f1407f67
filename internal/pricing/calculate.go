package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"venuebook/backend/internal/domain"
)

type Params struct {
	Quantity    int
	RequestTime string
	// At is the instant used when RequestTime is empty.
	At time.Time
}

type Breakdown struct {
	BasePrice   decimal.Decimal
	Discount    decimal.Decimal
	FinalPrice  decimal.Decimal
	AppliedRule string
	Metadata    map[string]any
}

// Calculate prices params under r. A parameter no rule covers yields a
// domain business-rule error.
func Calculate(r Rule, p Params) (Breakdown, error) {
	switch r := r.(type) {
	case Static:
		return r.calculate(), nil
	case Placeholder:
		return r.Static.calculate(), nil
	case Tiered:
		return r.calculate(p.Quantity)
	case Dynamic:
		return r.calculate(p.RequestTime, p.At)
	default:
		return Breakdown{}, fmt.Errorf("%w: %T", ErrUnsupportedType, r)
	}
}

func (s Static) calculate() Breakdown {
	price := s.BasePrice.Decimal
	return Breakdown{
		BasePrice:   price,
		Discount:    decimal.Zero,
		FinalPrice:  price,
		AppliedRule: "Static Pricing",
	}
}

func (t Tiered) sorted() []Tier {
	tiers := make([]Tier, len(t.Tiers))
	copy(tiers, t.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MaxQuantity < tiers[j].MaxQuantity
	})
	return tiers
}

func (t Tiered) calculate(quantity int) (Breakdown, error) {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return Breakdown{}, domain.BusinessRule("Quantity must be at least 1, got %d", quantity)
	}
	tiers := t.sorted()
	if len(tiers) == 0 {
		return Breakdown{}, domain.BusinessRule("No pricing tiers are configured")
	}
	for _, tier := range tiers {
		if quantity > tier.MaxQuantity {
			continue
		}
		price := tier.Price.Decimal
		return Breakdown{
			BasePrice:   price,
			Discount:    decimal.Zero,
			FinalPrice:  price,
			AppliedRule: fmt.Sprintf("Tiered Pricing - Up to %d units", tier.MaxQuantity),
			Metadata: map[string]any{
				"selectedTier": map[string]any{
					"max_quantity": tier.MaxQuantity,
					"price":        price,
				},
				"requestedQuantity": quantity,
			},
		}, nil
	}
	return Breakdown{}, domain.BusinessRule(
		"Quantity %d exceeds the maximum supported tier of %d",
		quantity, tiers[len(tiers)-1].MaxQuantity,
	)
}

func (d Dynamic) calculate(requestTime string, at time.Time) (Breakdown, error) {
	var now Clock
	if requestTime == "" {
		if at.IsZero() {
			at = time.Now()
		}
		now = ClockOf(at)
		requestTime = now.String()
	} else {
		parsed, err := ParseClock(requestTime)
		if err != nil {
			return Breakdown{}, domain.Validation("Invalid request time", domain.FieldError{
				Field:   "requestTime",
				Message: "must be in HH:MM format",
			})
		}
		now = parsed
	}

	for _, slot := range d.TimeSlots {
		start, err := ParseClock(slot.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseClock(slot.EndTime)
		if err != nil {
			continue
		}
		if now < start || now >= end {
			continue
		}
		price := slot.Price.Decimal
		return Breakdown{
			BasePrice:   price,
			Discount:    decimal.Zero,
			FinalPrice:  price,
			AppliedRule: fmt.Sprintf("Dynamic Pricing - Time Slot %s to %s", slot.StartTime, slot.EndTime),
			Metadata: map[string]any{
				"slot": map[string]any{
					"start_time": slot.StartTime,
					"end_time":   slot.EndTime,
					"price":      price,
				},
				"requestTime": requestTime,
			},
		}, nil
	}
	return Breakdown{}, domain.BusinessRule("Item is not available at the time requested: %s", requestTime)
}
