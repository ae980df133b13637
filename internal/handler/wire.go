package handler

import (
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/cart"
	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/domain/discount"
	"github.com/xenking/coupon-engine/internal/domain/product"
)

const maxBodyBytes = 1 << 20

// localTimeLayout is accepted for validity dates sent without a zone; they
// are read as UTC.
const localTimeLayout = "2006-01-02T15:04:05"

// badRequestError marks a body that could not be decoded.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// newValidator returns a validator that reports JSON field names and treats
// decimals as numbers.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// readBody returns the request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &badRequestError{err: err}
	}
	return data, nil
}

// --- Requests ---

type cartItemRequest struct {
	ProductID string           `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	Price     *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (c *cartRequest) specs() []cart.ItemSpec {
	out := make([]cart.ItemSpec, len(c.Items))
	for i, it := range c.Items {
		out[i] = cart.ItemSpec{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	return out
}

// decodeCart accepts {"cart":{"items":[...]}} as well as {"items":[...]}.
func decodeCart(data []byte) (*cartRequest, error) {
	var req cartRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "cart":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "items" {
					return d.Skip()
				}
				return decodeCartItems(d, &req.Items)
			})
		case "items":
			return decodeCartItems(d, &req.Items)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, &badRequestError{err: err}
	}
	return &req, nil
}

func decodeCartItems(d *jx.Decoder, items *[]cartItemRequest) error {
	return d.Arr(func(d *jx.Decoder) error {
		var it cartItemRequest
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				it.ProductID, err = readID(d)
			case "quantity":
				it.Quantity, err = d.Int()
			case "price":
				it.Price, err = readDecimal(d)
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrap(err, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		*items = append(*items, it)
		return nil
	})
}

type productQuantity struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

type couponDetails struct {
	Threshold       *decimal.Decimal  `json:"threshold" validate:"omitempty,gte=0"`
	Discount        *decimal.Decimal  `json:"discount" validate:"omitempty,gte=0"`
	ProductIDs      []string          `json:"product_id" validate:"dive,required"`
	BuyProducts     []productQuantity `json:"buy_products" validate:"dive"`
	GetProducts     []productQuantity `json:"get_products" validate:"dive"`
	RepetitionLimit int               `json:"repition_limit" validate:"gte=0"`
	StartDate       *time.Time        `json:"start_date"`
	EndDate         *time.Time        `json:"end_date"`
}

type couponRequest struct {
	Type         string        `json:"type" validate:"required"`
	Name         string        `json:"name" validate:"max=255"`
	DiscountType string        `json:"discount_type"`
	IsActive     *bool         `json:"is_active"`
	Details      couponDetails `json:"details"`
}

func decodeCoupon(data []byte) (*couponRequest, error) {
	var req couponRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			req.Type, err = d.Str()
		case "name":
			req.Name, err = d.Str()
		case "discount_type":
			req.DiscountType, err = d.Str()
		case "is_active":
			var v bool
			v, err = d.Bool()
			req.IsActive = &v
		case "start_date":
			req.Details.StartDate, err = readTime(d)
		case "end_date":
			req.Details.EndDate, err = readTime(d)
		case "details":
			err = decodeDetails(d, &req.Details)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, &badRequestError{err: err}
	}
	return &req, nil
}

func decodeDetails(d *jx.Decoder, det *couponDetails) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "threshold":
			det.Threshold, err = readDecimal(d)
		case "discount":
			det.Discount, err = readDecimal(d)
		case "product_id", "product_ids":
			det.ProductIDs, err = readIDs(d)
		case "buy_products":
			det.BuyProducts, err = readProductQuantities(d)
		case "get_products":
			det.GetProducts, err = readProductQuantities(d)
		case "repition_limit":
			det.RepetitionLimit, err = d.Int()
		case "start_date":
			det.StartDate, err = readTime(d)
		case "end_date":
			det.EndDate, err = readTime(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

// toCoupon maps the wire shape onto a domain coupon. Buy-X-get-Y takes the
// smallest buy_products quantity as the buy threshold and the first
// get_products quantity, at least 1, as the free quantity.
func (r *couponRequest) toCoupon(id string) *coupon.Coupon {
	c := &coupon.Coupon{
		ID:             id,
		Name:           strings.TrimSpace(r.Name),
		Kind:           coupon.Kind(r.Type),
		Mode:           coupon.Mode(r.DiscountType),
		Active:         true,
		StartsAt:       r.Details.StartDate,
		EndsAt:         r.Details.EndDate,
		MinCartTotal:   r.Details.Threshold,
		ProductIDs:     r.Details.ProductIDs,
		MaxRepetitions: r.Details.RepetitionLimit,
	}
	if c.Mode == "" {
		c.Mode = coupon.ModePercentage
	}
	if r.IsActive != nil {
		c.Active = *r.IsActive
	}
	if r.Details.Discount != nil {
		c.Value = *r.Details.Discount
	}

	for i, p := range r.Details.BuyProducts {
		c.BuyProductIDs = append(c.BuyProductIDs, p.ProductID)
		if i == 0 || p.Quantity < c.BuyQuantity {
			c.BuyQuantity = p.Quantity
		}
	}
	for i, p := range r.Details.GetProducts {
		c.FreeProductIDs = append(c.FreeProductIDs, p.ProductID)
		if i == 0 {
			c.GetQuantity = max(p.Quantity, 1)
		}
	}
	return c
}

func readDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return nil, err
		}
		s = v
	default:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		s = n.String()
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// readID accepts product IDs sent as strings or integers.
func readID(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return d.Str()
}

// readIDs accepts a single ID or an array of IDs.
func readIDs(d *jx.Decoder) ([]string, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Array:
		var out []string
		err := d.Arr(func(d *jx.Decoder) error {
			id, err := readID(d)
			if err != nil {
				return err
			}
			out = append(out, id)
			return nil
		})
		return out, err
	default:
		id, err := readID(d)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}
}

func readProductQuantities(d *jx.Decoder) ([]productQuantity, error) {
	var out []productQuantity
	err := d.Arr(func(d *jx.Decoder) error {
		var p productQuantity
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				p.ProductID, err = readID(d)
			case "quantity":
				p.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func readTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.ParseInLocation(localTimeLayout, s, time.UTC)
		if err != nil {
			return nil, errors.Errorf("time %q: want RFC 3339", s)
		}
	}
	return &t, nil
}

// --- Responses ---

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	encodeDecimal(e, p.Price)
	e.ObjEnd()
}

func encodeProductQuantities(e *jx.Encoder, ids []string, qty int) {
	e.ArrStart()
	for _, id := range ids {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(id)
		e.FieldStart("quantity")
		e.Int(qty)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("type")
	e.Str(string(c.Kind))
	e.FieldStart("discount_type")
	e.Str(string(c.Mode))
	e.FieldStart("is_active")
	e.Bool(c.Active)

	e.FieldStart("details")
	e.ObjStart()
	switch c.Kind {
	case coupon.KindCartTotal:
		if c.MinCartTotal != nil {
			e.FieldStart("threshold")
			encodeDecimal(e, *c.MinCartTotal)
		}
		e.FieldStart("discount")
		encodeDecimal(e, c.Value)
	case coupon.KindPerProduct:
		if len(c.ProductIDs) > 0 {
			e.FieldStart("product_id")
			e.Str(c.ProductIDs[0])
		}
		if len(c.ProductIDs) > 1 {
			e.FieldStart("product_ids")
			e.ArrStart()
			for _, id := range c.ProductIDs {
				e.Str(id)
			}
			e.ArrEnd()
		}
		e.FieldStart("discount")
		encodeDecimal(e, c.Value)
	case coupon.KindBuyXGetY:
		e.FieldStart("buy_products")
		encodeProductQuantities(e, c.BuyProductIDs, c.BuyQuantity)
		e.FieldStart("get_products")
		encodeProductQuantities(e, c.FreeProductIDs, c.GetQuantity)
		e.FieldStart("repition_limit")
		e.Int(c.MaxRepetitions)
	}
	if c.StartsAt != nil {
		e.FieldStart("start_date")
		encodeTime(e, *c.StartsAt)
	}
	if c.EndsAt != nil {
		e.FieldStart("end_date")
		encodeTime(e, *c.EndsAt)
	}
	e.ObjEnd()

	e.FieldStart("created_at")
	encodeTime(e, c.CreatedAt)
	e.FieldStart("updated_at")
	encodeTime(e, c.UpdatedAt)
	e.ObjEnd()
}

func encodeApplicable(e *jx.Encoder, list []discount.Applicable) {
	e.ObjStart()
	e.FieldStart("applicable_coupons")
	e.ArrStart()
	for _, a := range list {
		e.ObjStart()
		e.FieldStart("coupon_id")
		e.Str(a.CouponID)
		e.FieldStart("name")
		e.Str(a.Name)
		e.FieldStart("type")
		e.Str(string(a.Kind))
		e.FieldStart("discount")
		encodeDecimal(e, a.Discount)
		e.FieldStart("reason")
		e.Str(a.Reason)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeUpdatedCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("updated_cart")
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("applied_coupon_id")
	e.Str(c.AppliedCouponID)
	e.FieldStart("items")
	e.ArrStart()
	for i := range c.Items {
		it := &c.Items[i]
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.ProductName)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		encodeDecimal(e, it.UnitPrice)
		e.FieldStart("total_discount")
		encodeDecimal(e, it.DiscountAmount)
		e.FieldStart("final_price")
		encodeDecimal(e, it.DiscountedTotal)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total_price")
	encodeDecimal(e, c.TotalAmount)
	e.FieldStart("total_discount")
	encodeDecimal(e, c.TotalDiscount)
	e.FieldStart("final_price")
	encodeDecimal(e, c.FinalAmount)
	e.ObjEnd()
	e.ObjEnd()
}
