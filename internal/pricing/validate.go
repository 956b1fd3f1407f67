package pricing

import (
	"fmt"
)

// Validate returns one message per problem in r, formatted "path : message".
// An empty result means r may be stored.
func Validate(r Rule) []string {
	switch r := r.(type) {
	case Static:
		return r.validate()
	case Placeholder:
		return r.Static.validate()
	case Tiered:
		return r.validate()
	case Dynamic:
		return r.validate()
	default:
		return []string{fmt.Sprintf("pricing_type : %T is not supported", r)}
	}
}

func (s Static) validate() []string {
	return checkPrice(nil, "base_price", s.BasePrice.Valid, s.BasePrice.Decimal.IsNegative())
}

func (t Tiered) validate() []string {
	if len(t.Tiers) == 0 {
		return []string{"tiers : must contain at least 1 item"}
	}
	var errs []string
	seen := make(map[int]struct{}, len(t.Tiers))
	duplicate := false
	for i, tier := range t.Tiers {
		if tier.MaxQuantity <= 0 {
			errs = append(errs, fmt.Sprintf("tiers[%d].max_quantity : must be greater than 0", i))
		}
		errs = checkPrice(errs, fmt.Sprintf("tiers[%d].price", i), tier.Price.Valid, tier.Price.Decimal.IsNegative())
		if _, ok := seen[tier.MaxQuantity]; ok {
			duplicate = true
		}
		seen[tier.MaxQuantity] = struct{}{}
	}
	if duplicate {
		errs = append(errs, "Tiers have overlapping max_quantity values")
	}
	return errs
}

func (d Dynamic) validate() []string {
	if len(d.TimeSlots) == 0 {
		return []string{"time_slots : must contain at least 1 item"}
	}
	var errs []string
	for i, slot := range d.TimeSlots {
		start, startErr := ParseClock(slot.StartTime)
		if startErr != nil {
			errs = append(errs, fmt.Sprintf("time_slots[%d].start_time : must be in HH:MM format", i))
		}
		end, endErr := ParseClock(slot.EndTime)
		if endErr != nil {
			errs = append(errs, fmt.Sprintf("time_slots[%d].end_time : must be in HH:MM format", i))
		}
		errs = checkPrice(errs, fmt.Sprintf("time_slots[%d].price", i), slot.Price.Valid, slot.Price.Decimal.IsNegative())
		if startErr == nil && endErr == nil && end <= start {
			errs = append(errs, fmt.Sprintf("End time %s must be after start time %s", slot.EndTime, slot.StartTime))
		}
	}
	return errs
}

func checkPrice(errs []string, path string, present, negative bool) []string {
	switch {
	case !present:
		return append(errs, path+" : is required")
	case negative:
		return append(errs, path+" : must be greater than or equal to 0")
	}
	return errs
}
