package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// PerProduct discounts every line item whose product is in the coupon's
// eligible set. Compute and Apply share the per-item formula, so the applied
// item discounts always sum to the computed amount.
type PerProduct struct{}

var _ Rule = PerProduct{}

// itemDiscount is subtotal*value/100 in percentage mode and
// min(value*quantity, subtotal) in flat mode.
func (PerProduct) itemDiscount(c *coupon.Coupon, item *cart.LineItem) decimal.Decimal {
	subtotal := item.Subtotal()
	flat := c.Value.Mul(decimal.NewFromInt(int64(item.Quantity)))
	return modeAmount(c, subtotal, flat, subtotal)
}

// Compute sums the discounts of the eligible items.
func (r PerProduct) Compute(c *coupon.Coupon, ct *cart.Cart) decimal.Decimal {
	eligible := coupon.NewIDSet(c.ProductIDs)
	total := decimal.Zero
	for i := range ct.Items {
		if eligible.Has(ct.Items[i].ProductID) {
			total = total.Add(r.itemDiscount(c, &ct.Items[i]))
		}
	}
	return total
}

// Check requires a non-empty eligible set and a positive discount.
func (r PerProduct) Check(c *coupon.Coupon, ct *cart.Cart) (*Applicable, bool) {
	if len(c.ProductIDs) == 0 {
		return nil, false
	}
	amount := r.Compute(c, ct)
	if !amount.IsPositive() {
		return nil, false
	}
	return applicable(c, amount, "Cart contains applicable products"), true
}

// Apply discounts eligible items and clears all others.
func (r PerProduct) Apply(c *coupon.Coupon, ct *cart.Cart) {
	eligible := coupon.NewIDSet(c.ProductIDs)
	for i := range ct.Items {
		item := &ct.Items[i]
		if !eligible.Has(item.ProductID) {
			item.ClearDiscount()
			continue
		}
		item.SetDiscount(r.itemDiscount(c, item))
	}
}
