// Package discount implements the coupon discount rules and the table that
// selects a rule by coupon kind.
//
// Rules never perform I/O: everything they need, including the catalog price
// of each product, is already on the cart's line items.
package discount

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// Applicable is the evaluation result for a coupon that would discount a cart.
type Applicable struct {
	CouponID string
	Name     string
	Kind     coupon.Kind
	Discount decimal.Decimal
	Reason   string
}

// Rule evaluates and applies one coupon kind.
type Rule interface {
	// Compute returns the discount c would give ct, or zero. It does not
	// modify ct.
	Compute(c *coupon.Coupon, ct *cart.Cart) decimal.Decimal
	// Check reports whether c applies to ct and, if so, the computed discount.
	Check(c *coupon.Coupon, ct *cart.Cart) (*Applicable, bool)
	// Apply writes the discount of every line item of ct. Items the coupon
	// does not touch are reset to zero discount and full price.
	Apply(c *coupon.Coupon, ct *cart.Cart)
}

// ErrConfiguration marks a defect in the rule table, such as a coupon kind
// with no registered rule.
var ErrConfiguration = errors.New("discount rule configuration error")

// UnknownKindError is returned for a coupon kind without a rule.
type UnknownKindError struct {
	Kind coupon.Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("no discount rule for coupon type %q", e.Kind)
}

// Is matches ErrConfiguration.
func (e *UnknownKindError) Is(target error) bool {
	return target == ErrConfiguration
}

// Registry maps coupon kinds to rules. It is built once and read-only after.
type Registry struct {
	rules map[coupon.Kind]Rule
}

// NewRegistry returns the registry holding the rule for every coupon kind.
func NewRegistry() *Registry {
	r, err := newRegistry(map[coupon.Kind]Rule{
		coupon.KindCartTotal:  CartTotal{},
		coupon.KindPerProduct: PerProduct{},
		coupon.KindBuyXGetY:   BuyXGetY{},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// newRegistry fails when any kind from coupon.Kinds is missing a rule.
func newRegistry(rules map[coupon.Kind]Rule) (*Registry, error) {
	for _, k := range coupon.Kinds() {
		if _, ok := rules[k]; !ok {
			return nil, errors.Wrap(&UnknownKindError{Kind: k}, "build registry")
		}
	}
	return &Registry{rules: rules}, nil
}

// Rule returns the rule for kind or an *UnknownKindError.
func (r *Registry) Rule(kind coupon.Kind) (Rule, error) {
	rule, ok := r.rules[kind]
	if !ok {
		return nil, &UnknownKindError{Kind: kind}
	}
	return rule, nil
}

func applicable(c *coupon.Coupon, amount decimal.Decimal, reason string) *Applicable {
	return &Applicable{
		CouponID: c.ID,
		Name:     c.Name,
		Kind:     c.Kind,
		Discount: amount,
		Reason:   reason,
	}
}

// modeAmount applies the coupon mode to base. Flat amounts are capped at
// limit.
func modeAmount(c *coupon.Coupon, base, flat, limit decimal.Decimal) decimal.Decimal {
	if c.Mode == coupon.ModePercentage {
		return base.Mul(c.Value).Div(hundred)
	}
	return decimal.Min(flat, limit)
}
