package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/pricing"
	"venuebook/backend/internal/store"
)

// CalculatePrice quotes an item: pricing rule first, then tax on top.
func (s *Service) CalculatePrice(ctx context.Context, itemID string, params domain.PriceParams) (domain.PriceResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.CalculatePrice", trace.WithAttributes(attribute.String("item.id", itemID)))
	defer span.End()

	q, err := s.loadQuoter(ctx, itemID)
	if err != nil {
		recordSpanError(span, err)
		return domain.PriceResult{}, err
	}
	result, err := q.price(ctx, params, s.clock())
	if err != nil {
		recordSpanError(span, err)
		return domain.PriceResult{}, err
	}
	span.SetAttributes(attribute.String("pricing.type", string(result.PricingType)))
	return result, nil
}

func normalizePricingType(t domain.PricingType) domain.PricingType {
	return domain.PricingType(strings.ToLower(strings.TrimSpace(string(t))))
}

// ValidatePricingConfiguration must pass before a configuration is stored.
// The type is matched case-insensitively.
func (s *Service) ValidatePricingConfiguration(pricingType domain.PricingType, configuration json.RawMessage) error {
	pricingType = normalizePricingType(pricingType)
	rule, err := pricing.Parse(pricingType, configuration)
	if err != nil {
		if errors.Is(err, pricing.ErrUnsupportedType) {
			return domain.Validation("Invalid pricing configuration", domain.FieldError{
				Field:   "pricing.pricing_type",
				Message: fmt.Sprintf("Pricing type '%s' is not supported", pricingType),
			})
		}
		return domain.Validation("Invalid pricing configuration", domain.FieldError{
			Field:   "pricing.configuration",
			Message: strings.TrimPrefix(err.Error(), pricing.ErrMalformed.Error()+": "),
		})
	}

	problems := pricing.Validate(rule)
	if len(problems) == 0 {
		return nil
	}
	details := make([]domain.FieldError, 0, len(problems))
	for _, msg := range problems {
		details = append(details, domain.FieldError{Field: "pricing.configuration", Message: msg})
	}
	return domain.Validation("Invalid pricing configuration", details...)
}

// SetItemPricing validates and stores the pricing configuration of an item.
func (s *Service) SetItemPricing(ctx context.Context, itemID string, pricingType domain.PricingType, configuration json.RawMessage) (domain.PricingConfig, error) {
	pricingType = normalizePricingType(pricingType)
	if err := s.ValidatePricingConfiguration(pricingType, configuration); err != nil {
		return domain.PricingConfig{}, err
	}

	saved, err := s.repo.UpsertPricingConfig(ctx, domain.PricingConfig{
		ItemID:        itemID,
		Type:          pricingType,
		Configuration: configuration,
		UpdatedAt:     s.clock(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PricingConfig{}, domain.NotFound("Item not found: %s", itemID)
		}
		return domain.PricingConfig{}, err
	}

	actor, _ := ActorFromContext(ctx)
	s.logger.Info("item pricing updated",
		zap.String("item_id", itemID),
		zap.String("pricing_type", string(pricingType)),
		zap.String("actor", actor.Subject),
	)
	return *saved, nil
}

// quoter holds one item's parsed rule so repeated quotes (one per slot) do
// not reload it. The tax line is resolved on first use.
type quoter struct {
	svc         *Service
	itemID      string
	pricingType domain.PricingType
	rule        pricing.Rule
	tax         *domain.EffectiveTax
}

func (s *Service) loadQuoter(ctx context.Context, itemID string) (*quoter, error) {
	cfg, err := s.repo.GetPricingConfig(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound("Pricing configuration not found for item ID: %s", itemID)
		}
		return nil, err
	}

	rule, err := pricing.Parse(cfg.Type, cfg.Configuration)
	if err != nil {
		if errors.Is(err, pricing.ErrUnsupportedType) {
			return nil, domain.BusinessRule("Pricing type '%s' is not supported", cfg.Type)
		}
		return nil, fmt.Errorf("stored pricing configuration for item %s: %w", itemID, err)
	}
	return &quoter{svc: s, itemID: itemID, pricingType: cfg.Type, rule: rule}, nil
}

func (q *quoter) price(ctx context.Context, params domain.PriceParams, at time.Time) (domain.PriceResult, error) {
	breakdown, err := pricing.Calculate(q.rule, pricing.Params{
		Quantity:    params.Quantity,
		RequestTime: strings.TrimSpace(params.RequestTime),
		At:          at,
	})
	if err != nil {
		return domain.PriceResult{}, err
	}

	if q.tax == nil {
		tax, err := q.svc.ResolveEffectiveTax(ctx, q.itemID)
		if err != nil {
			return domain.PriceResult{}, err
		}
		q.tax = &tax
	}

	amount := taxAmount(breakdown.FinalPrice, *q.tax)
	return domain.PriceResult{
		ItemID:      q.itemID,
		PricingType: q.pricingType,
		BasePrice:   breakdown.BasePrice,
		Discount:    breakdown.Discount,
		FinalPrice:  breakdown.FinalPrice,
		AppliedRule: breakdown.AppliedRule,
		Tax: domain.TaxLine{
			Applicable: q.tax.Applicable,
			Percentage: q.tax.Percentage,
			Amount:     amount,
		},
		GrandTotal: breakdown.FinalPrice.Add(amount),
		Metadata:   breakdown.Metadata,
	}, nil
}

// taxAmount is finalPrice * percentage / 100 rounded half away from zero to
// two places; zero when exempt or the price is not positive.
func taxAmount(finalPrice decimal.Decimal, tax domain.EffectiveTax) decimal.Decimal {
	if !tax.Applicable || !finalPrice.IsPositive() {
		return decimal.Zero
	}
	return finalPrice.Mul(tax.Percentage).Shift(-2).Round(2)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
