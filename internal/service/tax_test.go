package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuebook/backend/internal/domain"
)

func TestEffectiveTaxItemOverrideIgnoresParents(t *testing.T) {
	parents := []domain.TaxSetting{
		domain.InheritTax(),
		domain.ExemptTax(),
		domain.OverrideTax(decimal.NewFromInt(30)),
	}
	own := []domain.TaxSetting{
		domain.OverrideTax(decimal.NewFromInt(12)),
		domain.ExemptTax(),
		domain.OverrideTax(decimal.Zero),
	}
	for _, item := range own {
		want, ok := explicitTax(item)
		require.True(t, ok)
		for _, sub := range parents {
			for _, cat := range parents[1:] {
				node := &domain.ItemWithParents{
					Item:                domain.Item{Tax: item, SubcategoryID: "s"},
					Subcategory:         &domain.Subcategory{Tax: sub},
					SubcategoryCategory: &domain.Category{Tax: cat},
				}
				got, ok := effectiveTax(node)
				assert.True(t, ok)
				assert.Equal(t, want, got)
			}
		}
	}
}

func TestResolveEffectiveTaxWalksHierarchy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.AddItem(domain.Item{ID: "under-inherit", SubcategoryID: subInherit, Tax: domain.InheritTax(), IsActive: true})
	f.repo.AddItem(domain.Item{ID: "under-override", SubcategoryID: subOverride, Tax: domain.InheritTax(), IsActive: true})
	f.repo.AddItem(domain.Item{ID: "own-exempt", SubcategoryID: subOverride, Tax: domain.ExemptTax(), IsActive: true})
	f.repo.AddItem(domain.Item{ID: "under-exempt-cat", CategoryID: catExempt, Tax: domain.InheritTax(), IsActive: true})

	cases := []struct {
		itemID     string
		applicable bool
		percentage string
	}{
		{"under-inherit", true, "18"},
		{"under-override", true, "7"},
		{"own-exempt", false, "0"},
		{itemStatic, true, "18"},
		{"under-exempt-cat", false, "0"},
	}
	for _, tc := range cases {
		got, err := f.svc.ResolveEffectiveTax(ctx, tc.itemID)
		require.NoError(t, err, tc.itemID)
		assert.Equal(t, tc.applicable, got.Applicable, tc.itemID)
		assert.Equal(t, tc.percentage, got.Percentage.String(), tc.itemID)
	}
}

func TestResolveEffectiveTaxUnknownItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ResolveEffectiveTax(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEffectiveTaxClampsNegativePercentage(t *testing.T) {
	got, ok := explicitTax(domain.OverrideTax(decimal.NewFromInt(-5)))
	require.True(t, ok)
	assert.True(t, got.Percentage.IsZero())
}
