package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestItem_Purchasable(t *testing.T) {
	item := &Item{
		ID:     "itemA",
		Status: StatusInStock,
		Prices: map[Variant]decimal.Decimal{
			VariantG250: decimal.NewFromInt(100),
			VariantG500: decimal.NewFromInt(190),
		},
		QuantityOptions: map[Variant]bool{VariantG500: true},
	}

	assert.True(t, item.Purchasable(VariantG250), "default variant enabled unless disabled")
	assert.True(t, item.Purchasable(VariantG500))
	assert.False(t, item.Purchasable(VariantKG1), "no price and not enabled")

	item.QuantityOptions[VariantG250] = false
	assert.False(t, item.Purchasable(VariantG250))

	item.Status = StatusComingSoon
	assert.False(t, item.Purchasable(VariantG500))

	var missing *Item
	assert.False(t, missing.Purchasable(VariantG250))
}

func TestItem_MarketPriceDefaultsToPrice(t *testing.T) {
	item := &Item{
		Status:       StatusInStock,
		Prices:       map[Variant]decimal.Decimal{VariantG250: decimal.NewFromInt(100)},
		MarketPrices: map[Variant]decimal.Decimal{},
	}
	assert.True(t, item.MarketPrice(VariantG250).Equal(decimal.NewFromInt(100)))

	item.MarketPrices[VariantG250] = decimal.NewFromInt(120)
	assert.True(t, item.MarketPrice(VariantG250).Equal(decimal.NewFromInt(120)))
}
