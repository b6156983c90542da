package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/commission"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/payout"
)

func (h *Handler) settleOrder(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settler.SettleOrder(r.Context(), r.PathValue("orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			fieldStr(e, "orderId", s.OrderID)
			e.Field("split", func(e *jx.Encoder) { encodeSplit(e, s.Split) })
			e.Field("payouts", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, p := range s.Payouts {
						encodePayout(e, &p)
					}
				})
			})
		})
	})
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ledger.MarkPaid(r.Context(), r.PathValue("payoutID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePayout(e, p) })
}

func (h *Handler) markFailed(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var reason string
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "reason" {
			var err error
			reason, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		h.fail(w, r, badRequest("decode failure request: %v", err))
		return
	}

	p, err := h.Ledger.MarkFailed(r.Context(), r.PathValue("payoutID"), reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePayout(e, p) })
}

func (h *Handler) payoutSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rcpt := payout.Recipient{
		Role: commission.Role(strings.ToUpper(q.Get("role"))),
		ID:   q.Get("recipientId"),
	}
	if rcpt.Role == "" {
		h.fail(w, r, badRequest("role is required"))
		return
	}
	rng, err := h.rangeFromQuery(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	s, err := h.Ledger.SummaryFor(r.Context(), rcpt, rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			fieldStr(e, "role", string(s.Recipient.Role))
			if s.Recipient.ID != "" {
				fieldStr(e, "recipientId", s.Recipient.ID)
			}
			fieldTime(e, "from", s.Range.From)
			fieldTime(e, "to", s.Range.To)
			fieldMoney(e, "totalEarnings", s.TotalEarnings)
			fieldMoney(e, "totalCommission", s.TotalCommission)
			fieldInt(e, "pendingCount", s.PendingCount)
			fieldInt(e, "paidCount", s.PaidCount)
			fieldInt(e, "failedCount", s.FailedCount)
		})
	})
}

func encodeSplit(e *jx.Encoder, s commission.Split) {
	e.Obj(func(e *jx.Encoder) {
		fieldMoney(e, "orderTotal", s.OrderTotal)
		fieldMoney(e, "profit", s.Profit)
		fieldMoney(e, "owner", s.Owner)
		fieldMoney(e, "worker", s.Worker)
		fieldMoney(e, "store", s.Store)
		fieldMoney(e, "sellerResidual", s.SellerResidual)
		fieldMoney(e, "margin", s.Margin())
	})
}

func encodePayout(e *jx.Encoder, p *payout.Payout) {
	e.Obj(func(e *jx.Encoder) {
		fieldStr(e, "id", p.ID)
		fieldStr(e, "orderId", p.OrderID)
		fieldStr(e, "role", string(p.Role))
		if p.RecipientID != "" {
			fieldStr(e, "recipientId", p.RecipientID)
		}
		fieldMoney(e, "amount", p.Amount)
		fieldMoney(e, "commission", p.Commission)
		fieldStr(e, "status", string(p.Status))
		if p.FailureReason != "" {
			fieldStr(e, "failureReason", p.FailureReason)
		}
		fieldTime(e, "createdAt", p.CreatedAt)
		if p.PaidAt != nil {
			fieldTime(e, "paidAt", *p.PaidAt)
		}
	})
}
