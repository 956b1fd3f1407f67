// Package pricing evaluates item pricing rules. Rules form a closed set:
// Parse builds one from a stored configuration, Calculate and Validate
// dispatch over it. Nothing here touches storage.
package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"venuebook/backend/internal/domain"
)

var (
	ErrUnsupportedType = errors.New("unsupported pricing type")
	ErrMalformed       = errors.New("malformed pricing configuration")
)

// Rule is one of Static, Tiered, Dynamic or Placeholder.
type Rule interface {
	Type() domain.PricingType
	sealed()
}

type Static struct {
	BasePrice decimal.NullDecimal `json:"base_price"`
}

type Tier struct {
	MaxQuantity int                 `json:"max_quantity"`
	Price       decimal.NullDecimal `json:"price"`
}

type Tiered struct {
	Tiers []Tier `json:"tiers"`
}

type TimeSlot struct {
	StartTime string              `json:"start_time"`
	EndTime   string              `json:"end_time"`
	Price     decimal.NullDecimal `json:"price"`
}

type Dynamic struct {
	TimeSlots []TimeSlot `json:"time_slots"`
}

// Placeholder stands in for pricing types that have no dedicated rule yet
// (complimentary, discounted). It evaluates its static configuration.
type Placeholder struct {
	Kind   domain.PricingType
	Static Static
}

func (Static) Type() domain.PricingType { return domain.PricingStatic }

func (Tiered) Type() domain.PricingType { return domain.PricingTiered }

func (Dynamic) Type() domain.PricingType { return domain.PricingDynamic }

func (p Placeholder) Type() domain.PricingType { return p.Kind }

func (Static) sealed() {}

func (Tiered) sealed() {}

func (Dynamic) sealed() {}

func (Placeholder) sealed() {}

// Parse decodes a stored configuration into the rule for pricingType.
// Unknown fields are rejected. Missing fields decode to their zero values and
// are reported by Validate.
func Parse(pricingType domain.PricingType, raw json.RawMessage) (Rule, error) {
	switch pricingType {
	case domain.PricingStatic:
		var r Static
		if err := decodeStrict(raw, &r); err != nil {
			return nil, err
		}
		return r, nil
	case domain.PricingTiered:
		var r Tiered
		if err := decodeStrict(raw, &r); err != nil {
			return nil, err
		}
		return r, nil
	case domain.PricingDynamic:
		var r Dynamic
		if err := decodeStrict(raw, &r); err != nil {
			return nil, err
		}
		return r, nil
	case domain.PricingComplimentary, domain.PricingDiscounted:
		var s Static
		if err := decodeStrict(raw, &s); err != nil {
			return nil, err
		}
		return Placeholder{Kind: pricingType, Static: s}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, pricingType)
	}
}

func decodeStrict(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: configuration is empty", ErrMalformed)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
