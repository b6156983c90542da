package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/coupon"
)

// decodeCoupon parses one JSON line:
//
//	{"code":"SAVE10","type":"PERCENTAGE","value":"10","maxDiscount":"50",
//	 "minOrderAmount":"100","usageLimit":500,"userLimit":1,"category":"audio",
//	 "validFrom":"2026-01-01T00:00:00Z","validUntil":"2026-12-31T00:00:00Z",
//	 "isActive":true}
//
// Only code and type are required. isActive defaults to true and validFrom to
// now.
func decodeCoupon(line []byte, now time.Time) (*coupon.Coupon, error) {
	c := &coupon.Coupon{
		ID:        uuid.NewString(),
		ValidFrom: now,
		IsActive:  true,
	}
	d := jx.DecodeBytes(line)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			var s string
			s, err = d.Str()
			c.Code = coupon.NormalizeCode(s)
		case "type":
			var s string
			s, err = d.Str()
			c.Type = coupon.Type(s)
		case "value":
			c.Value, err = decimalField(d)
		case "maxDiscount":
			c.MaxDiscount, err = nullDecimalField(d)
		case "minOrderAmount":
			c.MinOrderAmount, err = nullDecimalField(d)
		case "usageLimit":
			c.UsageLimit, err = d.Int()
		case "userLimit":
			c.UserLimit, err = d.Int()
		case "category":
			c.Category, err = d.Str()
		case "validFrom":
			c.ValidFrom, err = timeField(d)
		case "validUntil":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var t time.Time
			t, err = timeField(d)
			c.ValidUntil = &t
		case "isActive":
			c.IsActive, err = d.Bool()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	}); err != nil {
		return nil, err
	}

	switch {
	case c.Code == "":
		return nil, errors.New("code is required")
	case !c.Type.Valid():
		return nil, errors.Errorf("unknown type %q", c.Type)
	case c.Value.IsNegative():
		return nil, errors.New("value must not be negative")
	case c.UsageLimit < 0 || c.UserLimit < 0:
		return nil, errors.New("limits must not be negative")
	case c.ValidUntil != nil && !c.ValidUntil.After(c.ValidFrom):
		return nil, errors.New("validUntil must be after validFrom")
	}
	return c, nil
}

func decimalField(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	}
	return decimal.NewFromString(raw)
}

func nullDecimalField(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decimalField(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func timeField(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}

// peekCode returns the normalized code of a line without decoding the rest.
func peekCode(line []byte) (string, bool) {
	var code string
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "code" {
			return d.Skip()
		}
		s, err := d.Str()
		code = coupon.NormalizeCode(s)
		return err
	})
	return code, err == nil && code != ""
}
