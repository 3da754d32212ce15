package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StatusInStock    StockStatus = "in-stock"
	StatusOutOfStock StockStatus = "out-of-stock"
	StatusComingSoon StockStatus = "coming-soon"
)

func (s StockStatus) Valid() bool {
	switch s {
	case StatusInStock, StatusOutOfStock, StatusComingSoon:
		return true
	}
	return false
}

// Item is a catalog record with per-variant pricing.
type Item struct {
	ID              string                      `json:"id"`
	Name            string                      `json:"name"`
	Description     string                      `json:"description,omitempty"`
	Image           string                      `json:"image"`
	Category        string                      `json:"category,omitempty"`
	Status          StockStatus                 `json:"status"`
	Prices          map[Variant]decimal.Decimal `json:"prices"`
	MarketPrices    map[Variant]decimal.Decimal `json:"market_prices,omitempty"`
	QuantityOptions map[Variant]bool            `json:"quantity_options,omitempty"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (i *Item) InStock() bool {
	return i != nil && i.Status == StatusInStock
}

// VariantEnabled treats the default variant as enabled unless switched off explicitly.
func (i *Item) VariantEnabled(v Variant) bool {
	if i == nil {
		return false
	}
	enabled, ok := i.QuantityOptions[v]
	if !ok {
		return v == DefaultVariant
	}
	return enabled
}

func (i *Item) Price(v Variant) (decimal.Decimal, bool) {
	if i == nil {
		return decimal.Zero, false
	}
	p, ok := i.Prices[v]
	return p, ok
}

// MarketPrice falls back to the selling price, giving zero savings.
func (i *Item) MarketPrice(v Variant) decimal.Decimal {
	if i == nil {
		return decimal.Zero
	}
	if mp, ok := i.MarketPrices[v]; ok && !mp.IsZero() {
		return mp
	}
	p, _ := i.Price(v)
	return p
}

func (i *Item) Purchasable(v Variant) bool {
	if !i.InStock() || !i.VariantEnabled(v) {
		return false
	}
	_, ok := i.Price(v)
	return ok
}
