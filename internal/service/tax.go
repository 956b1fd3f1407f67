package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/store"
)

// ResolveEffectiveTax walks item, then subcategory, then category and returns
// the first explicit tax setting found.
func (s *Service) ResolveEffectiveTax(ctx context.Context, itemID string) (domain.EffectiveTax, error) {
	node, err := s.repo.GetItemWithParents(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.EffectiveTax{}, domain.NotFound("Item not found: %s", itemID)
		}
		return domain.EffectiveTax{}, err
	}

	tax, ok := effectiveTax(node)
	if !ok {
		s.logger.Warn("item has no resolvable tax ancestor, treating as exempt", zap.String("item_id", itemID))
	}
	return tax, nil
}

// effectiveTax reports false when the chain ends without an explicit
// setting, which only happens with a dangling parent reference.
func effectiveTax(node *domain.ItemWithParents) (domain.EffectiveTax, bool) {
	if tax, ok := explicitTax(node.Item.Tax); ok {
		return tax, true
	}
	if node.Subcategory != nil {
		if tax, ok := explicitTax(node.Subcategory.Tax); ok {
			return tax, true
		}
		if node.SubcategoryCategory != nil {
			return explicitTax(node.SubcategoryCategory.Tax)
		}
		return domain.EffectiveTax{Percentage: decimal.Zero}, false
	}
	if node.Category != nil {
		return explicitTax(node.Category.Tax)
	}
	return domain.EffectiveTax{Percentage: decimal.Zero}, false
}

func explicitTax(t domain.TaxSetting) (domain.EffectiveTax, bool) {
	pct := t.Percentage
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	switch t.Mode {
	case domain.TaxOverride:
		return domain.EffectiveTax{Applicable: true, Percentage: pct}, true
	case domain.TaxExempt:
		return domain.EffectiveTax{Applicable: false, Percentage: pct}, true
	default:
		return domain.EffectiveTax{Percentage: decimal.Zero}, false
	}
}
