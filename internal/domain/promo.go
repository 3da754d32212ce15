package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Promo struct {
	Code            string          `json:"code"`
	MinSubtotal     decimal.Decimal `json:"min_subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	FreeDelivery    bool            `json:"free_delivery,omitempty"`
}

var promoTable = map[string]Promo{
	"ABOVE500": {
		Code:            "ABOVE500",
		MinSubtotal:     decimal.NewFromInt(500),
		DiscountPercent: decimal.NewFromInt(5),
	},
	"ABOVE1000": {
		Code:            "ABOVE1000",
		MinSubtotal:     decimal.NewFromInt(1000),
		DiscountPercent: decimal.NewFromInt(10),
	},
	"FIRSTORDER": {
		Code:         "FIRSTORDER",
		MinSubtotal:  decimal.Zero,
		FreeDelivery: true,
	},
}

func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LookupPromo matches code case-insensitively against the fixed table.
func LookupPromo(code string) (Promo, bool) {
	p, ok := promoTable[NormalizePromoCode(code)]
	return p, ok
}

func Promos() []Promo {
	out := make([]Promo, 0, len(promoTable))
	for _, code := range []string{"ABOVE500", "ABOVE1000", "FIRSTORDER"} {
		out = append(out, promoTable[code])
	}
	return out
}
