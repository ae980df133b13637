package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/product"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	x := d(v)
	return &x
}

var catalog = product.NewIndex([]product.Product{
	{ID: "A", Name: "Laptop", Price: d("100")},
	{ID: "B", Name: "Mouse", Price: d("50")},
	{ID: "C", Name: "Keyboard", Price: d("80")},
})

func buildCart(t *testing.T, specs ...cart.ItemSpec) *cart.Cart {
	t.Helper()
	ct, err := cart.Build(specs, catalog)
	require.NoError(t, err)
	return ct
}

func item(id string, qty int) cart.ItemSpec {
	return cart.ItemSpec{ProductID: id, Quantity: qty}
}

func itemAt(id string, qty int, price string) cart.ItemSpec {
	return cart.ItemSpec{ProductID: id, Quantity: qty, Price: dp(price)}
}

func assertDec(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, want.Equal(got), append([]any{"expected %s, got %s", want, got}, msgAndArgs...)...)
}

// assertSettled checks the cart-level invariants after Apply + Settle.
func assertSettled(t *testing.T, ct *cart.Cart) {
	t.Helper()
	sum := decimal.Zero
	for _, it := range ct.Items {
		sum = sum.Add(it.DiscountAmount)
		assert.False(t, it.DiscountAmount.IsNegative(), "negative discount on %s", it.ProductID)
		assert.True(t, it.DiscountAmount.LessThanOrEqual(it.Subtotal()), "discount above subtotal on %s", it.ProductID)
		assertDec(t, it.Subtotal().Sub(it.DiscountAmount), it.DiscountedTotal)
	}
	assertDec(t, sum, ct.TotalDiscount)
	assertDec(t, ct.TotalAmount.Sub(ct.TotalDiscount), ct.FinalAmount)
}

func TestCartTotal(t *testing.T) {
	tests := []struct {
		name       string
		coupon     *coupon.Coupon
		items      []cart.ItemSpec
		wantOK     bool
		wantAmount decimal.Decimal
		wantItems  []decimal.Decimal
	}{
		{
			name:       "10 percent of 200",
			coupon:     &coupon.Coupon{Kind: coupon.KindCartTotal, Mode: coupon.ModePercentage, Value: d("10")},
			items:      []cart.ItemSpec{item("A", 2)},
			wantOK:     true,
			wantAmount: d("20"),
			wantItems:  []decimal.Decimal{d("20")},
		},
		{
			name:       "flat capped at total",
			coupon:     &coupon.Coupon{Kind: coupon.KindCartTotal, Mode: coupon.ModeFlat, Value: d("500")},
			items:      []cart.ItemSpec{item("A", 1), item("B", 2)},
			wantOK:     true,
			wantAmount: d("200"),
			wantItems:  []decimal.Decimal{d("100"), d("100")},
		},
		{
			name:       "flat split proportionally",
			coupon:     &coupon.Coupon{Kind: coupon.KindCartTotal, Mode: coupon.ModeFlat, Value: d("30")},
			items:      []cart.ItemSpec{item("A", 1), item("B", 1), item("B", 1)},
			wantOK:     true,
			wantAmount: d("30"),
			wantItems:  []decimal.Decimal{d("15"), d("7.5"), d("7.5")},
		},
		{
			name:       "repeating shares sum to the amount",
			coupon:     &coupon.Coupon{Kind: coupon.KindCartTotal, Mode: coupon.ModeFlat, Value: d("10")},
			items:      []cart.ItemSpec{item("A", 1), item("A", 1), item("A", 1)},
			wantOK:     true,
			wantAmount: d("10"),
			wantItems:  []decimal.Decimal{d("3.3333333333333333"), d("3.3333333333333333"), d("3.3333333333333334")},
		},
		{
			name: "total equal to minimum is not enough",
			coupon: &coupon.Coupon{
				Kind: coupon.KindCartTotal, Mode: coupon.ModePercentage, Value: d("10"),
				MinCartTotal: dp("200"),
			},
			items:  []cart.ItemSpec{item("A", 2)},
			wantOK: false,
		},
		{
			name: "total above minimum",
			coupon: &coupon.Coupon{
				Kind: coupon.KindCartTotal, Mode: coupon.ModePercentage, Value: d("10"),
				MinCartTotal: dp("199.99"),
			},
			items:      []cart.ItemSpec{item("A", 2)},
			wantOK:     true,
			wantAmount: d("20"),
			wantItems:  []decimal.Decimal{d("20")},
		},
		{
			name:   "zero total yields nothing",
			coupon: &coupon.Coupon{Kind: coupon.KindCartTotal, Mode: coupon.ModeFlat, Value: d("10")},
			items:  []cart.ItemSpec{itemAt("A", 1, "0")},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := CartTotal{}
			ct := buildCart(t, tt.items...)

			got, ok := rule.Check(tt.coupon, ct)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				assert.Nil(t, got)
				return
			}
			assertDec(t, tt.wantAmount, got.Discount)
			assert.Equal(t, "Cart total meets minimum requirement", got.Reason)

			rule.Apply(tt.coupon, ct)
			ct.Settle()
			for i, want := range tt.wantItems {
				assertDec(t, want, ct.Items[i].DiscountAmount, "item %d", i)
			}
			assertDec(t, tt.wantAmount, ct.TotalDiscount)
			assertSettled(t, ct)
		})
	}
}

func TestCartTotal_ApplyZeroTotalClearsItems(t *testing.T) {
	ct := buildCart(t, itemAt("A", 2, "0"))
	ct.Items[0].DiscountAmount = d("5")

	CartTotal{}.Apply(&coupon.Coupon{Kind: coupon.KindCartTotal, Mode: coupon.ModeFlat, Value: d("10")}, ct)

	assertDec(t, decimal.Zero, ct.Items[0].DiscountAmount)
	assertDec(t, decimal.Zero, ct.Items[0].DiscountedTotal)
}

func TestPerProduct(t *testing.T) {
	tests := []struct {
		name       string
		coupon     *coupon.Coupon
		items      []cart.ItemSpec
		wantOK     bool
		wantAmount decimal.Decimal
		wantItems  []decimal.Decimal
	}{
		{
			name: "10 percent on eligible line only",
			coupon: &coupon.Coupon{
				Kind: coupon.KindPerProduct, Mode: coupon.ModePercentage, Value: d("10"),
				ProductIDs: []string{"A"},
			},
			items:      []cart.ItemSpec{item("A", 2), item("B", 1)},
			wantOK:     true,
			wantAmount: d("20"),
			wantItems:  []decimal.Decimal{d("20"), d("0")},
		},
		{
			name: "flat per unit",
			coupon: &coupon.Coupon{
				Kind: coupon.KindPerProduct, Mode: coupon.ModeFlat, Value: d("5"),
				ProductIDs: []string{"B", "C"},
			},
			items:      []cart.ItemSpec{item("A", 1), item("B", 3), item("C", 1)},
			wantOK:     true,
			wantAmount: d("20"),
			wantItems:  []decimal.Decimal{d("0"), d("15"), d("5")},
		},
		{
			name: "flat capped at line subtotal",
			coupon: &coupon.Coupon{
				Kind: coupon.KindPerProduct, Mode: coupon.ModeFlat, Value: d("60"),
				ProductIDs: []string{"B"},
			},
			items:      []cart.ItemSpec{item("B", 2)},
			wantOK:     true,
			wantAmount: d("100"),
			wantItems:  []decimal.Decimal{d("100")},
		},
		{
			name: "override price is used",
			coupon: &coupon.Coupon{
				Kind: coupon.KindPerProduct, Mode: coupon.ModePercentage, Value: d("50"),
				ProductIDs: []string{"A"},
			},
			items:      []cart.ItemSpec{itemAt("A", 1, "60")},
			wantOK:     true,
			wantAmount: d("30"),
			wantItems:  []decimal.Decimal{d("30")},
		},
		{
			name: "no eligible items",
			coupon: &coupon.Coupon{
				Kind: coupon.KindPerProduct, Mode: coupon.ModePercentage, Value: d("10"),
				ProductIDs: []string{"C"},
			},
			items:  []cart.ItemSpec{item("A", 1), item("B", 1)},
			wantOK: false,
		},
		{
			name:   "empty eligible set",
			coupon: &coupon.Coupon{Kind: coupon.KindPerProduct, Mode: coupon.ModePercentage, Value: d("10")},
			items:  []cart.ItemSpec{item("A", 1)},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := PerProduct{}
			ct := buildCart(t, tt.items...)

			got, ok := rule.Check(tt.coupon, ct)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				assertDec(t, decimal.Zero, rule.Compute(tt.coupon, ct))
				return
			}
			assertDec(t, tt.wantAmount, got.Discount)
			assert.Equal(t, "Cart contains applicable products", got.Reason)

			rule.Apply(tt.coupon, ct)
			ct.Settle()
			for i, want := range tt.wantItems {
				assertDec(t, want, ct.Items[i].DiscountAmount, "item %d", i)
			}
			assertDec(t, got.Discount, ct.TotalDiscount)
			assertSettled(t, ct)
		})
	}
}

func TestBuyXGetY(t *testing.T) {
	bxgy := func(buy, get, maxReps int, buyIDs, freeIDs []string) *coupon.Coupon {
		return &coupon.Coupon{
			Kind:           coupon.KindBuyXGetY,
			Mode:           coupon.ModePercentage,
			BuyQuantity:    buy,
			GetQuantity:    get,
			BuyProductIDs:  buyIDs,
			FreeProductIDs: freeIDs,
			MaxRepetitions: maxReps,
		}
	}

	tests := []struct {
		name       string
		coupon     *coupon.Coupon
		items      []cart.ItemSpec
		wantFree   int
		wantOK     bool
		wantAmount decimal.Decimal
		wantItems  []decimal.Decimal
	}{
		{
			name:       "buy 2 A get 1 B",
			coupon:     bxgy(2, 1, 0, []string{"A"}, []string{"B"}),
			items:      []cart.ItemSpec{item("A", 2), item("B", 1)},
			wantFree:   1,
			wantOK:     true,
			wantAmount: d("50"),
			wantItems:  []decimal.Decimal{d("0"), d("50")},
		},
		{
			name:     "below buy threshold",
			coupon:   bxgy(3, 1, 0, []string{"A"}, []string{"B"}),
			items:    []cart.ItemSpec{item("A", 2), item("B", 5)},
			wantFree: 0,
			wantOK:   false,
		},
		{
			name:       "repetitions capped",
			coupon:     bxgy(1, 1, 2, []string{"A"}, []string{"B"}),
			items:      []cart.ItemSpec{item("A", 6), item("B", 5)},
			wantFree:   2,
			wantOK:     true,
			wantAmount: d("100"),
			wantItems:  []decimal.Decimal{d("0"), d("100")},
		},
		{
			name:       "buy quantities summed across products",
			coupon:     bxgy(3, 2, 0, []string{"A", "C"}, []string{"B"}),
			items:      []cart.ItemSpec{item("A", 2), item("C", 4), item("B", 3)},
			wantFree:   4,
			wantOK:     true,
			wantAmount: d("150"),
			wantItems:  []decimal.Decimal{d("0"), d("0"), d("150")},
		},
		{
			name:       "free units consumed in cart order",
			coupon:     bxgy(1, 3, 0, []string{"A"}, []string{"B", "C"}),
			items:      []cart.ItemSpec{item("A", 1), item("C", 2), item("B", 2)},
			wantFree:   3,
			wantOK:     true,
			wantAmount: d("210"),
			wantItems:  []decimal.Decimal{d("0"), d("160"), d("50")},
		},
		{
			name:       "free units priced at catalog price",
			coupon:     bxgy(1, 1, 0, []string{"A"}, []string{"B"}),
			items:      []cart.ItemSpec{item("A", 1), itemAt("B", 2, "70")},
			wantFree:   1,
			wantOK:     true,
			wantAmount: d("50"),
			wantItems:  []decimal.Decimal{d("0"), d("50")},
		},
		{
			name:       "free discount clamped to a cheaper override",
			coupon:     bxgy(1, 1, 0, []string{"A"}, []string{"B"}),
			items:      []cart.ItemSpec{item("A", 1), itemAt("B", 1, "20")},
			wantFree:   1,
			wantOK:     true,
			wantAmount: d("20"),
			wantItems:  []decimal.Decimal{d("0"), d("20")},
		},
		{
			name:     "no free products in cart",
			coupon:   bxgy(1, 1, 0, []string{"A"}, []string{"B"}),
			items:    []cart.ItemSpec{item("A", 4)},
			wantFree: 4,
			wantOK:   false,
		},
		{
			name:     "empty free set",
			coupon:   bxgy(1, 1, 0, []string{"A"}, nil),
			items:    []cart.ItemSpec{item("A", 1), item("B", 1)},
			wantFree: 1,
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := BuyXGetY{}
			ct := buildCart(t, tt.items...)

			assert.Equal(t, tt.wantFree, rule.FreeQuantity(tt.coupon, ct))

			got, ok := rule.Check(tt.coupon, ct)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assertDec(t, tt.wantAmount, got.Discount)
			assert.Equal(t, "BxGy conditions met", got.Reason)

			rule.Apply(tt.coupon, ct)
			ct.Settle()
			for i, want := range tt.wantItems {
				assertDec(t, want, ct.Items[i].DiscountAmount, "item %d", i)
			}
			assertDec(t, got.Discount, ct.TotalDiscount)
			assertSettled(t, ct)
		})
	}
}

func TestApplyResetsStaleDiscounts(t *testing.T) {
	rules := map[string]struct {
		rule   Rule
		coupon *coupon.Coupon
	}{
		"per product": {
			rule: PerProduct{},
			coupon: &coupon.Coupon{
				Kind: coupon.KindPerProduct, Mode: coupon.ModeFlat, Value: d("1"),
				ProductIDs: []string{"A"},
			},
		},
		"bxgy": {
			rule: BuyXGetY{},
			coupon: &coupon.Coupon{
				Kind: coupon.KindBuyXGetY, BuyQuantity: 1, GetQuantity: 1,
				BuyProductIDs: []string{"A"}, FreeProductIDs: []string{"B"},
			},
		},
	}

	for name, tc := range rules {
		t.Run(name, func(t *testing.T) {
			ct := buildCart(t, item("A", 1), item("B", 1), item("C", 1))
			for i := range ct.Items {
				ct.Items[i].SetDiscount(d("3"))
			}

			tc.rule.Apply(tc.coupon, ct)

			assertDec(t, decimal.Zero, ct.Items[2].DiscountAmount)
			assertDec(t, d("80"), ct.Items[2].DiscountedTotal)
		})
	}
}

func TestCheckIsPure(t *testing.T) {
	c := &coupon.Coupon{
		ID: "c1", Name: "ten", Kind: coupon.KindCartTotal, Mode: coupon.ModePercentage, Value: d("10"),
	}
	ct := buildCart(t, item("A", 1), item("B", 1))
	before := *ct
	beforeItems := append([]cart.LineItem(nil), ct.Items...)

	first, ok1 := CartTotal{}.Check(c, ct)
	second, ok2 := CartTotal{}.Check(c, ct)

	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
	assert.Equal(t, beforeItems, ct.Items)
	assert.True(t, before.TotalAmount.Equal(ct.TotalAmount))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, k := range coupon.Kinds() {
		rule, err := r.Rule(k)
		require.NoError(t, err, k)
		assert.NotNil(t, rule)
	}

	_, err := r.Rule(coupon.Kind("mystery"))
	require.ErrorIs(t, err, ErrConfiguration)

	var uk *UnknownKindError
	require.ErrorAs(t, err, &uk)
	assert.Equal(t, coupon.Kind("mystery"), uk.Kind)

	_, err = r.Rule("")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewRegistry_MissingRule(t *testing.T) {
	_, err := newRegistry(map[coupon.Kind]Rule{
		coupon.KindCartTotal: CartTotal{},
	})
	require.ErrorIs(t, err, ErrConfiguration)
}
