package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vali024/valix-shop/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Rules holds the tax and delivery constants applied to every cart.
type Rules struct {
	TaxPercent  decimal.Decimal // applied twice, once per tax component
	DeliveryFee decimal.Decimal
}

var DefaultRules = Rules{
	TaxPercent:  decimal.NewFromFloat(2.5),
	DeliveryFee: decimal.NewFromInt(18),
}

type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Savings      decimal.Decimal `json:"savings"`
	SGST         decimal.Decimal `json:"sgst"`
	CGST         decimal.Decimal `json:"cgst"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	Discount     decimal.Decimal `json:"discount"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
	PromoCode    string          `json:"promo_code,omitempty"`
	PromoDropped bool            `json:"promo_dropped,omitempty"`
	// Counted lists the lines that contributed to the sums.
	Counted []domain.LineKey `json:"-"`
}

// ValidatePromo checks code against the table and the given subtotal.
func ValidatePromo(code string, subtotal decimal.Decimal) (domain.Promo, error) {
	p, ok := domain.LookupPromo(code)
	if !ok {
		return domain.Promo{}, fmt.Errorf("%q: %w", code, domain.ErrInvalidPromoCode)
	}
	if subtotal.LessThan(p.MinSubtotal) {
		return domain.Promo{}, fmt.Errorf("%s needs a subtotal of %s: %w",
			p.Code, p.MinSubtotal.StringFixed(2), domain.ErrPromoMinimumNotMet)
	}
	return p, nil
}

// ComputeTotals prices cart against an item snapshot. It performs no I/O.
// Lines whose item is missing or not purchasable are left out of every sum.
func (r Rules) ComputeTotals(cart domain.Cart, items map[string]*domain.Item) Totals {
	t := Totals{
		Subtotal:    decimal.Zero,
		Savings:     decimal.Zero,
		Discount:    decimal.Zero,
		DeliveryFee: decimal.Zero,
	}

	for _, k := range cart.Lines.Keys() {
		qty := cart.Lines[k]
		item := items[k.ItemID]
		if qty <= 0 || !item.Purchasable(k.Variant) {
			continue
		}
		price, _ := item.Price(k.Variant)
		q := decimal.NewFromInt(int64(qty))
		t.Subtotal = t.Subtotal.Add(price.Mul(q))
		t.Savings = t.Savings.Add(item.MarketPrice(k.Variant).Sub(price).Mul(q))
		t.Counted = append(t.Counted, k)
	}

	tax := t.Subtotal.Mul(r.TaxPercent).Div(hundred).Round(2)
	t.SGST = tax
	t.CGST = tax

	if t.Subtotal.IsPositive() {
		t.DeliveryFee = r.DeliveryFee
	}

	if cart.PromoCode != "" {
		p, err := ValidatePromo(cart.PromoCode, t.Subtotal)
		if err != nil {
			t.PromoDropped = true
		} else {
			t.PromoCode = p.Code
			t.Discount = t.Subtotal.Mul(p.DiscountPercent).Div(hundred).Round(2)
			if p.FreeDelivery {
				t.DeliveryFee = decimal.Zero
			}
		}
	}

	t.FinalAmount = t.Subtotal.Add(t.DeliveryFee).Add(t.SGST).Add(t.CGST).Sub(t.Discount)
	return t
}

// ComputeTotals uses DefaultRules.
func ComputeTotals(cart domain.Cart, items map[string]*domain.Item) Totals {
	return DefaultRules.ComputeTotals(cart, items)
}
