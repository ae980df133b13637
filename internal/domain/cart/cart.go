package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/product"
)

// ErrEmptyCart is returned when a cart specification has no items.
var ErrEmptyCart = errors.New("cart items required")

// InvalidItemError indicates a line item specification that cannot be priced.
type InvalidItemError struct {
	ProductID string
	Reason    string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid item %s: %s", e.ProductID, e.Reason)
}

// ItemSpec is one requested line: a product, a quantity and an optional
// unit price that overrides the catalog price.
type ItemSpec struct {
	ProductID string
	Quantity  int
	Price     *decimal.Decimal
}

// LineItem is a priced cart entry. DiscountAmount and DiscountedTotal are
// written only when a coupon is applied.
type LineItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	// UnitPrice is the price actually charged.
	UnitPrice decimal.Decimal
	// CatalogPrice is the product's catalog price at build time.
	CatalogPrice decimal.Decimal

	DiscountAmount  decimal.Decimal
	DiscountedTotal decimal.Decimal
}

// Subtotal returns UnitPrice * Quantity.
func (li *LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// SetDiscount records amount as the item's discount.
func (li *LineItem) SetDiscount(amount decimal.Decimal) {
	li.DiscountAmount = amount
	li.DiscountedTotal = li.Subtotal().Sub(amount)
}

// ClearDiscount resets the item to no discount at full price.
func (li *LineItem) ClearDiscount() {
	li.SetDiscount(decimal.Zero)
}

// Cart is an ordered list of line items. Item order matters: buy-X-get-Y
// hands out free units to the earliest eligible items first.
type Cart struct {
	ID    string
	Items []LineItem
	// TotalAmount is fixed by Build and never recomputed from Items.
	TotalAmount   decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalAmount   decimal.Decimal

	AppliedCouponID   string
	AppliedCouponName string
	CreatedAt         time.Time
}

// Settle sums the per-item discounts into TotalDiscount and derives
// FinalAmount from the build-time TotalAmount.
func (c *Cart) Settle() {
	sum := decimal.Zero
	for i := range c.Items {
		sum = sum.Add(c.Items[i].DiscountAmount)
	}
	c.TotalDiscount = sum
	c.FinalAmount = c.TotalAmount.Sub(sum)
}

// Build prices every spec against the catalog index and returns a cart with
// its pre-discount total. Discount fields start cleared.
func Build(specs []ItemSpec, catalog product.Index) (*Cart, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyCart
	}

	c := &Cart{Items: make([]LineItem, 0, len(specs))}
	total := decimal.Zero
	for _, s := range specs {
		if s.Quantity <= 0 {
			return nil, &InvalidItemError{ProductID: s.ProductID, Reason: "quantity must be greater than 0"}
		}
		if s.Price != nil && s.Price.IsNegative() {
			return nil, &InvalidItemError{ProductID: s.ProductID, Reason: "price must not be negative"}
		}

		p, err := catalog.Lookup(s.ProductID)
		if err != nil {
			return nil, err
		}

		price := p.Price
		if s.Price != nil {
			price = *s.Price
		}

		item := LineItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			Quantity:     s.Quantity,
			UnitPrice:    price,
			CatalogPrice: p.Price,
		}
		item.ClearDiscount()
		c.Items = append(c.Items, item)
		total = total.Add(item.Subtotal())
	}
	c.TotalAmount = total
	c.FinalAmount = total
	return c, nil
}

// ProductIDs returns the distinct product IDs referenced by specs, in first
// appearance order.
func ProductIDs(specs []ItemSpec) []string {
	seen := make(map[string]struct{}, len(specs))
	ids := make([]string, 0, len(specs))
	for _, s := range specs {
		if _, ok := seen[s.ProductID]; ok {
			continue
		}
		seen[s.ProductID] = struct{}{}
		ids = append(ids, s.ProductID)
	}
	return ids
}

// Repository persists carts after a coupon has been applied.
type Repository interface {
	Save(ctx context.Context, c *Cart) error
}
