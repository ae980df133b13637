package coupon

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var maxPercent = decimal.NewFromInt(100)

// InvalidInputError describes a coupon definition that cannot be stored.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// DefaultName returns the name given to coupons created without one.
func DefaultName(kind Kind, now time.Time) string {
	return fmt.Sprintf("Coupon-%s-%d", kind, now.UnixMilli())
}

// Validate checks that c carries every parameter its kind requires.
// It returns an *InvalidInputError describing the first problem found.
func Validate(c *Coupon) error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "coupon name is required")
	}
	if !c.Kind.Valid() {
		return invalid("type", fmt.Sprintf("unsupported coupon type %q", c.Kind))
	}
	if !c.Mode.Valid() {
		return invalid("discount_type", fmt.Sprintf("unsupported discount type %q", c.Mode))
	}
	if c.StartsAt != nil && c.EndsAt != nil && c.StartsAt.After(*c.EndsAt) {
		return invalid("start_date", "start date must be before end date")
	}
	if c.Mode == ModePercentage && c.Value.GreaterThan(maxPercent) {
		return invalid("discount", "percentage discount must not exceed 100")
	}

	switch c.Kind {
	case KindCartTotal:
		if !c.Value.IsPositive() {
			return invalid("discount", "discount value must be greater than 0")
		}
		if c.MinCartTotal == nil || !c.MinCartTotal.IsPositive() {
			return invalid("threshold", "minimum cart total is required for cart-wise coupons")
		}
	case KindPerProduct:
		if !c.Value.IsPositive() {
			return invalid("discount", "discount value must be greater than 0")
		}
		if len(c.ProductIDs) == 0 {
			return invalid("product_id", "applicable product IDs are required for product-wise coupons")
		}
	case KindBuyXGetY:
		if c.BuyQuantity <= 0 {
			return invalid("buy_products", "buy quantity is required for bxgy coupons")
		}
		if c.GetQuantity <= 0 {
			return invalid("get_products", "get quantity is required for bxgy coupons")
		}
		if len(c.BuyProductIDs) == 0 {
			return invalid("buy_products", "buy product IDs are required for bxgy coupons")
		}
		if len(c.FreeProductIDs) == 0 {
			return invalid("get_products", "free product IDs are required for bxgy coupons")
		}
		if c.MaxRepetitions < 0 {
			return invalid("repition_limit", "repetition limit must not be negative")
		}
	}
	return nil
}
