package rediscache

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

func encodeCoupons(list []coupon.Coupon) []byte {
	var e jx.Encoder
	e.ArrStart()
	for i := range list {
		encodeCoupon(&e, &list[i])
	}
	e.ArrEnd()
	return e.Bytes()
}

func encodeOne(c *coupon.Coupon) []byte {
	var e jx.Encoder
	encodeCoupon(&e, c)
	return e.Bytes()
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("kind")
	e.Str(string(c.Kind))
	e.FieldStart("mode")
	e.Str(string(c.Mode))
	e.FieldStart("value")
	e.Str(c.Value.String())
	e.FieldStart("active")
	e.Bool(c.Active)
	if c.StartsAt != nil {
		e.FieldStart("starts_at")
		e.Str(c.StartsAt.Format(time.RFC3339Nano))
	}
	if c.EndsAt != nil {
		e.FieldStart("ends_at")
		e.Str(c.EndsAt.Format(time.RFC3339Nano))
	}
	if c.MinCartTotal != nil {
		e.FieldStart("min_cart_total")
		e.Str(c.MinCartTotal.String())
	}
	e.FieldStart("product_ids")
	encodeStrings(e, c.ProductIDs)
	e.FieldStart("buy_quantity")
	e.Int(c.BuyQuantity)
	e.FieldStart("get_quantity")
	e.Int(c.GetQuantity)
	e.FieldStart("buy_product_ids")
	encodeStrings(e, c.BuyProductIDs)
	e.FieldStart("free_product_ids")
	encodeStrings(e, c.FreeProductIDs)
	e.FieldStart("max_repetitions")
	e.Int(c.MaxRepetitions)
	e.FieldStart("created_at")
	e.Str(c.CreatedAt.Format(time.RFC3339Nano))
	e.FieldStart("updated_at")
	e.Str(c.UpdatedAt.Format(time.RFC3339Nano))
	e.ObjEnd()
}

func encodeStrings(e *jx.Encoder, v []string) {
	e.ArrStart()
	for _, s := range v {
		e.Str(s)
	}
	e.ArrEnd()
}

func decodeCoupons(data []byte) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var c coupon.Coupon
		if err := decodeCoupon(d, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode coupons")
	}
	return out, nil
}

func decodeOne(data []byte) (*coupon.Coupon, error) {
	var c coupon.Coupon
	if err := decodeCoupon(jx.DecodeBytes(data), &c); err != nil {
		return nil, errors.Wrap(err, "decode coupon")
	}
	return &c, nil
}

func decodeCoupon(d *jx.Decoder, c *coupon.Coupon) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "name":
			c.Name, err = d.Str()
		case "kind":
			var s string
			s, err = d.Str()
			c.Kind = coupon.Kind(s)
		case "mode":
			var s string
			s, err = d.Str()
			c.Mode = coupon.Mode(s)
		case "value":
			c.Value, err = decodeDecimal(d)
		case "active":
			c.Active, err = d.Bool()
		case "starts_at":
			c.StartsAt, err = decodeTimePtr(d)
		case "ends_at":
			c.EndsAt, err = decodeTimePtr(d)
		case "min_cart_total":
			var v decimal.Decimal
			v, err = decodeDecimal(d)
			c.MinCartTotal = &v
		case "product_ids":
			c.ProductIDs, err = decodeStrings(d)
		case "buy_quantity":
			c.BuyQuantity, err = d.Int()
		case "get_quantity":
			c.GetQuantity, err = d.Int()
		case "buy_product_ids":
			c.BuyProductIDs, err = decodeStrings(d)
		case "free_product_ids":
			c.FreeProductIDs, err = decodeStrings(d)
		case "max_repetitions":
			c.MaxRepetitions, err = d.Int()
		case "created_at":
			c.CreatedAt, err = decodeTime(d)
		case "updated_at":
			c.UpdatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

func decodeTimePtr(d *jx.Decoder) (*time.Time, error) {
	t, err := decodeTime(d)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
