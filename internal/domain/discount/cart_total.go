package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// CartTotal discounts the whole cart once its total exceeds the coupon's
// minimum. The discount is spread over the items in proportion to their
// subtotals.
type CartTotal struct{}

var _ Rule = CartTotal{}

// Compute returns total*value/100 in percentage mode and min(value, total)
// in flat mode.
func (CartTotal) Compute(c *coupon.Coupon, ct *cart.Cart) decimal.Decimal {
	return modeAmount(c, ct.TotalAmount, c.Value, ct.TotalAmount)
}

// Check requires the cart total to be strictly above the minimum, if any.
func (r CartTotal) Check(c *coupon.Coupon, ct *cart.Cart) (*Applicable, bool) {
	if c.MinCartTotal != nil && ct.TotalAmount.LessThanOrEqual(*c.MinCartTotal) {
		return nil, false
	}
	amount := r.Compute(c, ct)
	if !amount.IsPositive() {
		return nil, false
	}
	return applicable(c, amount, "Cart total meets minimum requirement"), true
}

// Apply distributes the computed discount proportionally. The last priced
// item takes the remainder so the shares sum to the computed amount exactly.
// A zero cart total leaves every item undiscounted.
func (r CartTotal) Apply(c *coupon.Coupon, ct *cart.Cart) {
	last := -1
	for i := range ct.Items {
		ct.Items[i].ClearDiscount()
		if ct.Items[i].Subtotal().IsPositive() {
			last = i
		}
	}
	if last < 0 {
		return
	}

	amount := r.Compute(c, ct)
	allocated := decimal.Zero
	for i := range ct.Items[:last] {
		item := &ct.Items[i]
		share := item.Subtotal().Mul(amount).Div(ct.TotalAmount)
		item.SetDiscount(share)
		allocated = allocated.Add(share)
	}
	ct.Items[last].SetDiscount(amount.Sub(allocated))
}
