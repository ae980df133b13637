package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// BuyXGetY grants GetQuantity free units of the free products for every
// BuyQuantity units of the buy products in the cart.
//
// Free units are valued at the product's catalog price, not the line's
// override price, and are handed out to free-eligible lines in cart order.
type BuyXGetY struct{}

var _ Rule = BuyXGetY{}

// grant is the free allocation for one line item.
type grant struct {
	index    int
	discount decimal.Decimal
}

// FreeQuantity returns the number of free units the cart earns: zero below
// the buy threshold, otherwise repetitions*GetQuantity with repetitions
// capped by MaxRepetitions when it is positive.
func (BuyXGetY) FreeQuantity(c *coupon.Coupon, ct *cart.Cart) int {
	if c.BuyQuantity <= 0 {
		return 0
	}

	buy := coupon.NewIDSet(c.BuyProductIDs)
	totalBuy := 0
	for i := range ct.Items {
		if buy.Has(ct.Items[i].ProductID) {
			totalBuy += ct.Items[i].Quantity
		}
	}
	if totalBuy < c.BuyQuantity {
		return 0
	}

	reps := totalBuy / c.BuyQuantity
	if c.MaxRepetitions > 0 && reps > c.MaxRepetitions {
		reps = c.MaxRepetitions
	}
	return reps * c.GetQuantity
}

// grants walks the cart in order and allocates the free units.
func (r BuyXGetY) grants(c *coupon.Coupon, ct *cart.Cart) []grant {
	remaining := r.FreeQuantity(c, ct)
	if remaining <= 0 {
		return nil
	}

	free := coupon.NewIDSet(c.FreeProductIDs)
	var out []grant
	for i := range ct.Items {
		if remaining <= 0 {
			break
		}
		item := &ct.Items[i]
		if !free.Has(item.ProductID) {
			continue
		}
		n := min(remaining, item.Quantity)
		amount := item.CatalogPrice.Mul(decimal.NewFromInt(int64(n)))
		out = append(out, grant{
			index:    i,
			discount: decimal.Min(amount, item.Subtotal()),
		})
		remaining -= n
	}
	return out
}

// Compute returns the value of all granted free units.
func (r BuyXGetY) Compute(c *coupon.Coupon, ct *cart.Cart) decimal.Decimal {
	total := decimal.Zero
	for _, g := range r.grants(c, ct) {
		total = total.Add(g.discount)
	}
	return total
}

// Check requires non-empty buy and free sets and a positive discount.
func (r BuyXGetY) Check(c *coupon.Coupon, ct *cart.Cart) (*Applicable, bool) {
	if len(c.BuyProductIDs) == 0 || len(c.FreeProductIDs) == 0 {
		return nil, false
	}
	amount := r.Compute(c, ct)
	if !amount.IsPositive() {
		return nil, false
	}
	return applicable(c, amount, "BxGy conditions met"), true
}

// Apply discounts the granted lines and clears the rest.
func (r BuyXGetY) Apply(c *coupon.Coupon, ct *cart.Cart) {
	for i := range ct.Items {
		ct.Items[i].ClearDiscount()
	}
	for _, g := range r.grants(c, ct) {
		ct.Items[g.index].SetDiscount(g.discount)
	}
}
