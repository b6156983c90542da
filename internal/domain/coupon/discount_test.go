package coupon

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeDiscount(t *testing.T) {
	shipping := d("10")

	tests := []struct {
		name   string
		coupon *Coupon
		amount decimal.Decimal
		want   decimal.Decimal
	}{
		{
			name:   "percentage capped by max discount",
			coupon: &Coupon{Type: TypePercentage, Value: d("10"), MaxDiscount: nd("80")},
			amount: d("1000"),
			want:   d("80"),
		},
		{
			name:   "percentage under max discount",
			coupon: &Coupon{Type: TypePercentage, Value: d("10"), MaxDiscount: nd("80")},
			amount: d("500"),
			want:   d("50"),
		},
		{
			name:   "percentage without cap",
			coupon: &Coupon{Type: TypePercentage, Value: d("18")},
			amount: d("100"),
			want:   d("18"),
		},
		{
			name:   "percentage rounds half up",
			coupon: &Coupon{Type: TypePercentage, Value: d("15")},
			amount: d("0.1"),
			want:   d("0.02"),
		},
		{
			name:   "percentage above 100 clamps to order amount",
			coupon: &Coupon{Type: TypePercentage, Value: d("150")},
			amount: d("40"),
			want:   d("40"),
		},
		{
			name:   "fixed amount below total",
			coupon: &Coupon{Type: TypeFixedAmount, Value: d("9")},
			amount: d("100"),
			want:   d("9"),
		},
		{
			name:   "fixed amount capped to order total",
			coupon: &Coupon{Type: TypeFixedAmount, Value: d("75")},
			amount: d("50"),
			want:   d("50"),
		},
		{
			name:   "free shipping uses offset",
			coupon: &Coupon{Type: TypeFreeShipping},
			amount: d("100"),
			want:   d("10"),
		},
		{
			name:   "free shipping capped to order total",
			coupon: &Coupon{Type: TypeFreeShipping},
			amount: d("4.50"),
			want:   d("4.50"),
		},
		{
			name:   "zero order amount",
			coupon: &Coupon{Type: TypeFixedAmount, Value: d("5")},
			amount: decimal.Zero,
			want:   decimal.Zero,
		},
		{
			name:   "negative fixed value floors at zero",
			coupon: &Coupon{Type: TypeFixedAmount, Value: d("-5")},
			amount: d("20"),
			want:   decimal.Zero,
		},
		{
			name:   "unknown type",
			coupon: &Coupon{Type: Type("BOGO"), Value: d("5")},
			amount: d("20"),
			want:   decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(tt.coupon, tt.amount, shipping)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestComputeDiscount_SubCentAmount(t *testing.T) {
	fixed := &Coupon{Type: TypeFixedAmount, Value: d("75")}
	full := &Coupon{Type: TypePercentage, Value: d("100")}

	for _, tt := range []struct {
		name   string
		coupon *Coupon
		amount string
		want   string
	}{
		{name: "FixedAboveAmount", coupon: fixed, amount: "49.995", want: "49.99"},
		{name: "FullPercentage", coupon: full, amount: "49.995", want: "49.99"},
		{name: "BelowOneCent", coupon: fixed, amount: "0.004", want: "0"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			amount := d(tt.amount)
			got := ComputeDiscount(tt.coupon, amount, decimal.Zero)
			assert.True(t, d(tt.want).Equal(got), "want %s, got %s", tt.want, got)
			assert.False(t, amount.Sub(got).IsNegative())
		})
	}
}

func TestComputeDiscount_Bounds(t *testing.T) {
	amounts := []string{"0.004", "0.01", "0.05", "1", "9.99", "49.995", "49.999", "50", "99.99", "1000", "123456.78"}
	values := []string{"0", "0.5", "1", "10", "33.333", "75", "100", "250"}
	caps := []decimal.NullDecimal{{}, nd("0"), nd("5"), nd("80")}
	types := []Type{TypePercentage, TypeFixedAmount, TypeFreeShipping}

	for _, typ := range types {
		for _, a := range amounts {
			for _, v := range values {
				for _, cp := range caps {
					c := &Coupon{Type: typ, Value: d(v), MaxDiscount: cp}
					amount := d(a)
					name := fmt.Sprintf("%s/%s/%s/%v", typ, a, v, cp)

					got := ComputeDiscount(c, amount, d(v))

					assert.False(t, got.IsNegative(), name)
					assert.True(t, got.LessThanOrEqual(amount), name)
					assert.True(t, got.Equal(got.Round(2)), name)
					if typ == TypePercentage && cp.Valid {
						assert.True(t, got.LessThanOrEqual(cp.Decimal), name)
					}
				}
			}
		}
	}
}
