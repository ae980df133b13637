package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/discount"
	"github.com/xenking/coupon-engine/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, &product.NotFoundError{ProductID: id}
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Upsert(_ context.Context, p product.Product) error {
	m.byID[p.ID] = p
	return nil
}

type mockCouponRepo struct {
	coupons []coupon.Coupon
	listErr error
	created *coupon.Coupon
	updated *coupon.Coupon
	deleted string
}

func (m *mockCouponRepo) List(_ context.Context) ([]coupon.Coupon, error) {
	return m.coupons, m.listErr
}

func (m *mockCouponRepo) GetByID(_ context.Context, id string) (*coupon.Coupon, error) {
	for i := range m.coupons {
		if m.coupons[i].ID == id {
			c := m.coupons[i]
			return &c, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (m *mockCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	m.created = c
	m.coupons = append(m.coupons, *c)
	return nil
}

func (m *mockCouponRepo) Update(_ context.Context, c *coupon.Coupon) error {
	m.updated = c
	return nil
}

func (m *mockCouponRepo) Delete(_ context.Context, id string) error {
	if _, err := m.GetByID(context.Background(), id); err != nil {
		return err
	}
	m.deleted = id
	return nil
}

type mockCartRepo struct {
	saved []*cart.Cart
	err   error
}

func (m *mockCartRepo) Save(_ context.Context, c *cart.Cart) error {
	if m.err != nil {
		return m.err
	}
	c.ID = "cart-1"
	m.saved = append(m.saved, c)
	return nil
}

// --- Helpers ---

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

func newProducts() *mockProductRepo {
	return &mockProductRepo{byID: map[string]product.Product{
		"A":   {ID: "A", Name: "Laptop", Price: d("100")},
		"B":   {ID: "B", Name: "Mouse", Price: d("50")},
		"100": {ID: "100", Name: "Monitor", Price: d("100")},
		"200": {ID: "200", Name: "Webcam", Price: d("40")},
	}}
}

type fixture struct {
	svc      *Service
	products *mockProductRepo
	coupons  *mockCouponRepo
	carts    *mockCartRepo
}

func newFixture(t *testing.T, coupons ...coupon.Coupon) *fixture {
	t.Helper()
	f := &fixture{
		products: newProducts(),
		coupons:  &mockCouponRepo{coupons: coupons},
		carts:    &mockCartRepo{},
	}
	svc, err := NewService(f.products, f.coupons, f.carts, discount.NewRegistry(),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func cartWise(id, percent string) coupon.Coupon {
	return coupon.Coupon{
		ID: id, Name: "cart " + id, Kind: coupon.KindCartTotal, Mode: coupon.ModePercentage,
		Value: d(percent), Active: true,
	}
}

// --- Tests ---

func TestApply_CartTotal(t *testing.T) {
	f := newFixture(t, cartWise("c1", "10"))

	ct, err := f.svc.Apply(context.Background(), "c1", []cart.ItemSpec{
		{ProductID: "A", Quantity: 2},
	})
	require.NoError(t, err)

	assert.True(t, d("200").Equal(ct.TotalAmount))
	assert.True(t, d("20").Equal(ct.TotalDiscount))
	assert.True(t, d("180").Equal(ct.FinalAmount))
	assert.True(t, d("20").Equal(ct.Items[0].DiscountAmount))
	assert.True(t, d("180").Equal(ct.Items[0].DiscountedTotal))
	assert.Equal(t, "c1", ct.AppliedCouponID)
	assert.Equal(t, "cart c1", ct.AppliedCouponName)
	assert.Equal(t, fixedNow, ct.CreatedAt)

	require.Len(t, f.carts.saved, 1)
	assert.Equal(t, "cart-1", ct.ID)
}

func TestApply_PerProduct(t *testing.T) {
	f := newFixture(t, coupon.Coupon{
		ID: "p1", Name: "monitor", Kind: coupon.KindPerProduct, Mode: coupon.ModePercentage,
		Value: d("10"), Active: true, ProductIDs: []string{"100"},
	})

	ct, err := f.svc.Apply(context.Background(), "p1", []cart.ItemSpec{
		{ProductID: "100", Quantity: 2},
		{ProductID: "200", Quantity: 1},
	})
	require.NoError(t, err)

	assert.True(t, d("20.00").Equal(ct.Items[0].DiscountAmount))
	assert.True(t, ct.Items[1].DiscountAmount.IsZero())
	assert.True(t, d("40").Equal(ct.Items[1].DiscountedTotal))
	assert.True(t, d("20").Equal(ct.TotalDiscount))
	assert.True(t, d("220").Equal(ct.FinalAmount))
}

func TestApply_BuyXGetY(t *testing.T) {
	f := newFixture(t, coupon.Coupon{
		ID: "b1", Name: "b2g1", Kind: coupon.KindBuyXGetY, Mode: coupon.ModePercentage, Active: true,
		BuyQuantity: 2, GetQuantity: 1, BuyProductIDs: []string{"A"}, FreeProductIDs: []string{"B"},
	})

	ct, err := f.svc.Apply(context.Background(), "b1", []cart.ItemSpec{
		{ProductID: "A", Quantity: 2},
		{ProductID: "B", Quantity: 1},
	})
	require.NoError(t, err)

	assert.True(t, d("50").Equal(ct.TotalDiscount))
	assert.True(t, d("50").Equal(ct.Items[1].DiscountAmount))
	assert.True(t, d("200").Equal(ct.FinalAmount))
}

func TestApply_Errors(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)

	inactive := cartWise("inactive", "10")
	inactive.Active = false

	expired := cartWise("expired", "10")
	expired.EndsAt = &past

	notYet := cartWise("not-yet", "10")
	notYet.StartsAt = &future

	threshold := cartWise("threshold", "10")
	threshold.MinCartTotal = dp("500")

	mystery := cartWise("mystery", "10")
	mystery.Kind = "mystery"

	tests := []struct {
		name     string
		couponID string
		items    []cart.ItemSpec
		wantErr  error
	}{
		{name: "unknown coupon", couponID: "missing", items: []cart.ItemSpec{{ProductID: "A", Quantity: 1}}, wantErr: coupon.ErrNotFound},
		{name: "inactive coupon", couponID: "inactive", items: []cart.ItemSpec{{ProductID: "A", Quantity: 1}}, wantErr: coupon.ErrInvalidCoupon},
		{name: "expired coupon", couponID: "expired", items: []cart.ItemSpec{{ProductID: "A", Quantity: 1}}, wantErr: coupon.ErrInvalidCoupon},
		{name: "not yet valid", couponID: "not-yet", items: []cart.ItemSpec{{ProductID: "A", Quantity: 1}}, wantErr: coupon.ErrInvalidCoupon},
		{name: "cart below threshold", couponID: "threshold", items: []cart.ItemSpec{{ProductID: "A", Quantity: 1}}, wantErr: coupon.ErrNotApplicable},
		{name: "unknown product", couponID: "threshold", items: []cart.ItemSpec{{ProductID: "Z", Quantity: 1}}, wantErr: product.ErrNotFound},
		{name: "empty cart", couponID: "threshold", wantErr: cart.ErrEmptyCart},
		{name: "kind without rule", couponID: "mystery", items: []cart.ItemSpec{{ProductID: "A", Quantity: 1}}, wantErr: discount.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, inactive, expired, notYet, threshold, mystery)

			ct, err := f.svc.Apply(context.Background(), tt.couponID, tt.items)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, ct)
			assert.Empty(t, f.carts.saved)
		})
	}
}

func TestApply_SaveError(t *testing.T) {
	f := newFixture(t, cartWise("c1", "10"))
	f.carts.err = errors.New("db write failed")

	_, err := f.svc.Apply(context.Background(), "c1", []cart.ItemSpec{{ProductID: "A", Quantity: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
}

func TestListApplicable(t *testing.T) {
	past := fixedNow.Add(-time.Hour)

	inactive := cartWise("inactive", "50")
	inactive.Active = false
	expired := cartWise("expired", "50")
	expired.EndsAt = &past
	startsNow := cartWise("starts-now", "5")
	startsNow.StartsAt = &fixedNow
	highMin := cartWise("high-min", "10")
	highMin.MinCartTotal = dp("1000")

	f := newFixture(t,
		cartWise("c1", "10"),
		inactive,
		coupon.Coupon{
			ID: "p1", Name: "mouse", Kind: coupon.KindPerProduct, Mode: coupon.ModeFlat,
			Value: d("5"), Active: true, ProductIDs: []string{"B"},
		},
		expired,
		coupon.Coupon{
			ID: "p2", Name: "webcam", Kind: coupon.KindPerProduct, Mode: coupon.ModeFlat,
			Value: d("5"), Active: true, ProductIDs: []string{"200"},
		},
		startsNow,
		highMin,
		coupon.Coupon{
			ID: "b1", Name: "b1g1", Kind: coupon.KindBuyXGetY, Active: true,
			BuyQuantity: 1, GetQuantity: 1, BuyProductIDs: []string{"A"}, FreeProductIDs: []string{"B"},
		},
	)

	got, err := f.svc.ListApplicable(context.Background(), []cart.ItemSpec{
		{ProductID: "A", Quantity: 1},
		{ProductID: "B", Quantity: 2},
	})
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.CouponID
	}
	assert.Equal(t, []string{"c1", "p1", "starts-now", "b1"}, ids)

	assert.True(t, d("20").Equal(got[0].Discount))
	assert.Equal(t, coupon.KindCartTotal, got[0].Kind)
	assert.True(t, d("10").Equal(got[1].Discount))
	assert.True(t, d("10").Equal(got[2].Discount))
	assert.True(t, d("50").Equal(got[3].Discount))
	assert.Equal(t, "BxGy conditions met", got[3].Reason)
	assert.Empty(t, f.carts.saved)
}

func TestListApplicable_Errors(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ListApplicable(context.Background(), nil)
		require.ErrorIs(t, err, cart.ErrEmptyCart)
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newFixture(t, cartWise("c1", "10"))
		_, err := f.svc.ListApplicable(context.Background(), []cart.ItemSpec{{ProductID: "Z", Quantity: 1}})
		var nf *product.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Z", nf.ProductID)
	})

	t.Run("coupon list failure", func(t *testing.T) {
		f := newFixture(t)
		f.coupons.listErr = errors.New("db down")
		_, err := f.svc.ListApplicable(context.Background(), []cart.ItemSpec{{ProductID: "A", Quantity: 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list coupons")
	})

	t.Run("kind without rule", func(t *testing.T) {
		mystery := cartWise("m", "10")
		mystery.Kind = "mystery"
		f := newFixture(t, mystery)
		_, err := f.svc.ListApplicable(context.Background(), []cart.ItemSpec{{ProductID: "A", Quantity: 1}})
		require.ErrorIs(t, err, discount.ErrConfiguration)
	})
}

func TestCreateCoupon(t *testing.T) {
	f := newFixture(t)

	c := &coupon.Coupon{
		Kind: coupon.KindCartTotal, Mode: coupon.ModePercentage, Value: d("10"),
		MinCartTotal: dp("100"), Active: true,
	}
	require.NoError(t, f.svc.CreateCoupon(context.Background(), c))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, coupon.DefaultName(coupon.KindCartTotal, fixedNow), c.Name)
	assert.Equal(t, fixedNow, c.CreatedAt)
	assert.Same(t, c, f.coupons.created)
}

func TestCreateCoupon_Invalid(t *testing.T) {
	f := newFixture(t)

	err := f.svc.CreateCoupon(context.Background(), &coupon.Coupon{
		Name: "no products", Kind: coupon.KindPerProduct, Mode: coupon.ModeFlat, Value: d("1"),
	})
	var inv *coupon.InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Nil(t, f.coupons.created)
}

func TestUpdateCoupon(t *testing.T) {
	existing := cartWise("c1", "10")
	existing.MinCartTotal = dp("50")
	existing.CreatedAt = fixedNow.Add(-time.Hour)
	f := newFixture(t, existing)

	upd := &coupon.Coupon{
		ID: "c1", Kind: coupon.KindCartTotal, Mode: coupon.ModeFlat, Value: d("15"),
		MinCartTotal: dp("60"), Active: false,
	}
	require.NoError(t, f.svc.UpdateCoupon(context.Background(), upd))

	require.NotNil(t, f.coupons.updated)
	assert.Equal(t, "cart c1", f.coupons.updated.Name)
	assert.Equal(t, existing.CreatedAt, f.coupons.updated.CreatedAt)
	assert.Equal(t, fixedNow, f.coupons.updated.UpdatedAt)

	err := f.svc.UpdateCoupon(context.Background(), &coupon.Coupon{ID: "nope"})
	require.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestDeleteCoupon(t *testing.T) {
	f := newFixture(t, cartWise("c1", "10"))

	require.NoError(t, f.svc.DeleteCoupon(context.Background(), "c1"))
	assert.Equal(t, "c1", f.coupons.deleted)
	require.ErrorIs(t, f.svc.DeleteCoupon(context.Background(), "c2"), coupon.ErrNotFound)
}
