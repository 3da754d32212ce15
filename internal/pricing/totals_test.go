package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vali024/valix-shop/internal/domain"
)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func newItem(id string, price, market float64, status domain.StockStatus) *domain.Item {
	return &domain.Item{
		ID:           id,
		Name:         id,
		Status:       status,
		Prices:       map[domain.Variant]decimal.Decimal{domain.VariantG250: dec(price)},
		MarketPrices: map[domain.Variant]decimal.Decimal{domain.VariantG250: dec(market)},
	}
}

func assertDec(t *testing.T, want float64, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %v, got %s", msg, want, got)
}

func TestComputeTotals_SubtotalAndSavings(t *testing.T) {
	items := map[string]*domain.Item{"itemA": newItem("itemA", 100, 120, domain.StatusInStock)}
	cart := domain.Cart{Lines: domain.Lines{domain.NewLineKey("itemA", domain.VariantG250): 2}}

	tot := ComputeTotals(cart, items)

	assertDec(t, 200, tot.Subtotal, "subtotal")
	assertDec(t, 40, tot.Savings, "savings")
	assertDec(t, 5, tot.SGST, "sgst")
	assertDec(t, 5, tot.CGST, "cgst")
	assertDec(t, 18, tot.DeliveryFee, "delivery")
	assertDec(t, 228, tot.FinalAmount, "final")
}

func TestComputeTotals_EmptyCartWaivesDelivery(t *testing.T) {
	tot := ComputeTotals(domain.NewCart(), nil)

	assert.True(t, tot.Subtotal.IsZero())
	assert.True(t, tot.DeliveryFee.IsZero())
	assert.True(t, tot.FinalAmount.IsZero())
}

func TestComputeTotals_ExcludesUnavailableLines(t *testing.T) {
	items := map[string]*domain.Item{
		"itemA": newItem("itemA", 100, 120, domain.StatusInStock),
		"itemB": newItem("itemB", 50, 60, domain.StatusOutOfStock),
		"itemC": newItem("itemC", 70, 70, domain.StatusComingSoon),
	}
	cart := domain.Cart{Lines: domain.Lines{
		domain.NewLineKey("itemA", domain.VariantG250): 1,
		domain.NewLineKey("itemB", domain.VariantG250): 4,
		domain.NewLineKey("itemC", domain.VariantG250): 1,
		domain.NewLineKey("gone", domain.VariantG250):  3,
	}}

	tot := ComputeTotals(cart, items)

	assertDec(t, 100, tot.Subtotal, "subtotal")
	assertDec(t, 20, tot.Savings, "savings")
	assert.Equal(t, []domain.LineKey{domain.NewLineKey("itemA", domain.VariantG250)}, tot.Counted)
	assert.Len(t, cart.Lines, 4, "lines are not deleted by pricing")
}

func TestComputeTotals_PromoAbove1000(t *testing.T) {
	items := map[string]*domain.Item{"itemA": newItem("itemA", 500, 500, domain.StatusInStock)}
	cart := domain.Cart{
		Lines:     domain.Lines{domain.NewLineKey("itemA", domain.VariantG250): 2},
		PromoCode: "above1000",
	}

	tot := ComputeTotals(cart, items)

	assertDec(t, 1000, tot.Subtotal, "subtotal")
	assertDec(t, 100, tot.Discount, "discount")
	assert.Equal(t, "ABOVE1000", tot.PromoCode)
	assertDec(t, 1000+18+25+25-100, tot.FinalAmount, "final")
}

func TestComputeTotals_PromoDroppedBelowMinimum(t *testing.T) {
	items := map[string]*domain.Item{"itemA": newItem("itemA", 200, 200, domain.StatusInStock)}
	cart := domain.Cart{
		Lines:     domain.Lines{domain.NewLineKey("itemA", domain.VariantG250): 2},
		PromoCode: "ABOVE500",
	}

	tot := ComputeTotals(cart, items)

	assertDec(t, 400, tot.Subtotal, "subtotal")
	assert.True(t, tot.Discount.IsZero())
	assert.True(t, tot.PromoDropped)
	assert.Empty(t, tot.PromoCode)
}

func TestComputeTotals_FreeDeliveryPromo(t *testing.T) {
	items := map[string]*domain.Item{"itemA": newItem("itemA", 100, 100, domain.StatusInStock)}
	cart := domain.Cart{
		Lines:     domain.Lines{domain.NewLineKey("itemA", domain.VariantG250): 1},
		PromoCode: "FIRSTORDER",
	}

	tot := ComputeTotals(cart, items)

	assert.True(t, tot.DeliveryFee.IsZero())
	assert.True(t, tot.Discount.IsZero())
	assertDec(t, 105, tot.FinalAmount, "final")
}

func TestComputeTotals_CustomRules(t *testing.T) {
	rules := Rules{TaxPercent: dec(9), DeliveryFee: dec(40)}
	items := map[string]*domain.Item{"itemA": newItem("itemA", 100, 100, domain.StatusInStock)}
	cart := domain.Cart{Lines: domain.Lines{domain.NewLineKey("itemA", domain.VariantG250): 1}}

	tot := rules.ComputeTotals(cart, items)

	assertDec(t, 9, tot.SGST, "sgst")
	assertDec(t, 158, tot.FinalAmount, "final")
}

func TestValidatePromo(t *testing.T) {
	_, err := ValidatePromo("BOGUS", dec(5000))
	assert.ErrorIs(t, err, domain.ErrInvalidPromoCode)

	_, err = ValidatePromo("ABOVE500", dec(499.99))
	assert.ErrorIs(t, err, domain.ErrPromoMinimumNotMet)

	p, err := ValidatePromo("Above500", dec(500))
	require.NoError(t, err)
	assert.Equal(t, "ABOVE500", p.Code)
}

func TestComputeTotals_SavingsNeverNegative(t *testing.T) {
	items := map[string]*domain.Item{}
	cart := domain.NewCart()
	for i, p := range []float64{10, 55.5, 99, 1000} {
		id := string(rune('a' + i))
		items[id] = newItem(id, p, p+float64(i), domain.StatusInStock)
		cart.Lines[domain.NewLineKey(id, domain.VariantG250)] = i + 1
	}

	tot := ComputeTotals(cart, items)
	assert.False(t, tot.Savings.IsNegative())
}
