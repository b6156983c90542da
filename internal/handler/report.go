package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/jx"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/accounting"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
)

const dateLayout = "2006-01-02"

// rangeFromQuery reads either ?period= or ?from=&to=. Explicit bounds win;
// with neither the configured default period is used.
func (h *Handler) rangeFromQuery(q url.Values) (window.Range, error) {
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		p := window.Period(q.Get("period"))
		if p == "" {
			p = h.cfg.DefaultPeriod
		}
		return window.Trailing(p, h.now().UTC())
	}
	if from == "" || to == "" {
		return window.Range{}, badRequest("from and to must be given together")
	}
	f, err := parseBound(from)
	if err != nil {
		return window.Range{}, badRequest("from: %v", err)
	}
	t, err := parseBound(to)
	if err != nil {
		return window.Range{}, badRequest("to: %v", err)
	}
	return window.New(f, t)
}

// parseBound accepts RFC 3339 timestamps or plain dates, read as UTC midnight.
func parseBound(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func (h *Handler) accountingReport(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFromQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rep, err := h.Reports.Report(r.Context(), rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReport(e, rep) })
}

func encodeReport(e *jx.Encoder, rep *accounting.Report) {
	e.Obj(func(e *jx.Encoder) {
		fieldTime(e, "from", rep.Range.From)
		fieldTime(e, "to", rep.Range.To)
		fieldMoney(e, "totalRevenue", rep.TotalRevenue)
		fieldInt(e, "totalOrders", rep.TotalOrders)
		fieldMoney(e, "averageOrderValue", rep.AverageOrderValue)
		fieldInt(e, "refundedOrders", rep.RefundedOrders)
		fieldMoney(e, "refundRate", rep.RefundRate)
		e.Field("growth", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				fieldMoney(e, "revenue", rep.RevenueGrowth)
				fieldMoney(e, "orders", rep.OrdersGrowth)
				fieldMoney(e, "averageOrderValue", rep.AverageOrderValueGrowth)
			})
		})
		e.Field("commission", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				fieldMoney(e, "profit", rep.Commission.Profit)
				fieldMoney(e, "owner", rep.Commission.Owner)
				fieldMoney(e, "worker", rep.Commission.Worker)
				fieldMoney(e, "store", rep.Commission.Store)
				fieldMoney(e, "sellerResidual", rep.Commission.SellerResidual)
			})
		})
		e.Field("monthlyRevenue", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, m := range rep.MonthlyRevenue {
					e.Obj(func(e *jx.Encoder) {
						fieldStr(e, "month", m.Month.Format("2006-01"))
						fieldMoney(e, "revenue", m.Revenue)
						fieldInt(e, "orders", m.Orders)
					})
				}
			})
		})
		e.Field("topProducts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range rep.TopProducts {
					e.Obj(func(e *jx.Encoder) {
						fieldStr(e, "productId", p.ProductID)
						fieldStr(e, "name", p.Name)
						fieldMoney(e, "revenue", p.Revenue)
						fieldInt(e, "quantity", p.Quantity)
					})
				}
			})
		})
		e.Field("recentTransactions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, t := range rep.RecentTransactions {
					e.Obj(func(e *jx.Encoder) {
						fieldStr(e, "id", t.ID)
						fieldStr(e, "orderId", t.OrderID)
						fieldStr(e, "kind", t.Kind)
						if t.Role != "" {
							fieldStr(e, "role", string(t.Role))
						}
						fieldStr(e, "description", t.Description)
						fieldMoney(e, "amount", t.Amount)
						fieldTime(e, "date", t.Date)
					})
				}
			})
		})
		fieldTime(e, "generatedAt", rep.GeneratedAt)
	})
}
