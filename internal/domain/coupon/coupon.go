package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind selects the discount rule that evaluates a coupon.
type Kind string

const (
	// KindCartTotal discounts the whole cart once its total passes a threshold.
	KindCartTotal Kind = "cart-wise"
	// KindPerProduct discounts every line item of the eligible products.
	KindPerProduct Kind = "product-wise"
	// KindBuyXGetY grants free units of some products for buying others.
	KindBuyXGetY Kind = "bxgy"
)

// Kinds returns every supported coupon kind.
func Kinds() []Kind {
	return []Kind{KindCartTotal, KindPerProduct, KindBuyXGetY}
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, v := range Kinds() {
		if v == k {
			return true
		}
	}
	return false
}

// Mode is the discount arithmetic used by cart-wise and product-wise coupons.
type Mode string

const (
	// ModePercentage treats Value as a percent of the affected subtotal.
	ModePercentage Mode = "percentage"
	// ModeFlat treats Value as a currency amount.
	ModeFlat Mode = "flat"
)

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	return m == ModePercentage || m == ModeFlat
}

var (
	// ErrNotFound is returned when no coupon exists for the requested ID.
	ErrNotFound = errors.New("coupon not found")
	// ErrInvalidCoupon is returned when a coupon is inactive or outside its
	// validity window at application time.
	ErrInvalidCoupon = errors.New("invalid coupon")
	// ErrNotApplicable is returned when the cart does not satisfy the coupon.
	ErrNotApplicable = errors.New("coupon is not applicable to this cart")
)

// Coupon is a discount definition. Fields below the common block are only
// meaningful for the kinds named in their comments.
type Coupon struct {
	ID       string
	Name     string
	Kind     Kind
	Mode     Mode
	Value    decimal.Decimal
	Active   bool
	StartsAt *time.Time
	EndsAt   *time.Time

	// cart-wise
	MinCartTotal *decimal.Decimal

	// product-wise
	ProductIDs []string

	// bxgy
	BuyQuantity    int
	GetQuantity    int
	BuyProductIDs  []string
	FreeProductIDs []string
	MaxRepetitions int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidAt reports whether now falls inside the coupon's validity window.
// Both bounds are inclusive and an absent bound is unconstrained.
func (c *Coupon) ValidAt(now time.Time) bool {
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return false
	}
	return true
}

// Usable returns ErrInvalidCoupon, wrapped with the reason, when the coupon is
// inactive or not valid at now.
func (c *Coupon) Usable(now time.Time) error {
	if !c.Active {
		return errors.Wrap(ErrInvalidCoupon, "coupon is not active")
	}
	if !c.ValidAt(now) {
		return errors.Wrap(ErrInvalidCoupon, "coupon is not valid at this time")
	}
	return nil
}

// Repository provides coupon lookup and administration.
type Repository interface {
	List(ctx context.Context) ([]Coupon, error)
	GetByID(ctx context.Context, id string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
}

// IDSet is a set of product IDs.
type IDSet map[string]struct{}

// NewIDSet builds an IDSet from ids.
func NewIDSet(ids []string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}
