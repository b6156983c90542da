package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/coupon"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/money"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
)

func decodeQuoteRequest(d *jx.Decoder) (coupon.QuoteRequest, error) {
	var (
		req       coupon.QuoteRequest
		hasAmount bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "userId":
			req.UserID, err = d.Str()
		case "orderAmount":
			req.OrderAmount, err = decodeDecimal(d)
			hasAmount = true
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, badRequest("decode quote request: %v", err)
	}
	if req.Code == "" {
		return req, badRequest("code is required")
	}
	if !hasAmount {
		req.OrderAmount = itemsTotal(req.Items)
	}
	for _, it := range req.Items {
		if !wholeCents(it.Price) {
			return req, badRequest("item %q price must have at most %d decimal places", it.ProductID, money.Places)
		}
	}
	if req.OrderAmount.IsNegative() {
		return req, badRequest("orderAmount must not be negative")
	}
	if !wholeCents(req.OrderAmount) {
		return req, badRequest("orderAmount must have at most %d decimal places", money.Places)
	}
	return req, nil
}

func decodeItem(d *jx.Decoder) (coupon.Item, error) {
	var it coupon.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = d.Str()
		case "price":
			it.Price, err = decodeDecimal(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "categories":
			it.Categories, err = decodeStrings(d)
		case "category":
			var c string
			c, err = d.Str()
			it.Categories = append(it.Categories, c)
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && it.Quantity <= 0 {
		it.Quantity = 1
	}
	return it, err
}

func wholeCents(v decimal.Decimal) bool {
	return v.Equal(money.Round(v))
}

func itemsTotal(items []coupon.Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// validateCoupon answers 200 for both outcomes: a rejected coupon is a
// normal answer to "would this code work?".
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := decodeQuoteRequest(d)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	q, err := h.Coupons.Quote(r.Context(), req)
	if err != nil {
		rej, ok := reject.As(err)
		if !ok {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("valid", func(e *jx.Encoder) { e.Bool(false) })
				fieldStr(e, "code", rej.Code)
				fieldStr(e, "message", rej.Message)
			})
		})
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("valid", func(e *jx.Encoder) { e.Bool(true) })
			fieldStr(e, "couponId", q.CouponID)
			fieldStr(e, "couponCode", q.Code)
			fieldMoney(e, "discount", q.Discount)
			fieldMoney(e, "newTotal", q.NewTotal)
		})
	})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req := coupon.ApplyRequest{OrderID: r.PathValue("orderID")}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "userId":
			req.UserID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		h.fail(w, r, badRequest("decode apply request: %v", err))
		return
	}
	if req.Code == "" || req.UserID == "" {
		h.fail(w, r, badRequest("code and userId are required"))
		return
	}

	app, err := h.Coupons.Apply(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			fieldStr(e, "orderId", app.OrderID)
			fieldStr(e, "couponId", app.CouponID)
			fieldMoney(e, "discount", app.Discount)
			fieldMoney(e, "newTotal", app.NewTotal)
		})
	})
}
