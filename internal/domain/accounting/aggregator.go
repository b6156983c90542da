package accounting

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/commission"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/money"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/telemetry"
)

var hundred = decimal.NewFromInt(100)

// Aggregator composes order data and commission splits into reports. It
// performs reads only.
type Aggregator struct {
	orders order.Reader
	rates  rate.Loader
	now    func() time.Time
	tracer trace.Tracer
}

// NewAggregator creates an Aggregator.
func NewAggregator(orders order.Reader, rates rate.Loader, tp trace.TracerProvider) *Aggregator {
	return &Aggregator{
		orders: orders,
		rates:  rates,
		now:    time.Now,
		tracer: tp.Tracer("accounting"),
	}
}

// ReportForPeriod builds the report of the trailing period ending now.
func (a *Aggregator) ReportForPeriod(ctx context.Context, p window.Period) (*Report, error) {
	r, err := window.Trailing(p, a.now())
	if err != nil {
		return nil, err
	}
	return a.Report(ctx, r)
}

// Report builds the report of r. Only PAID orders count toward revenue.
func (a *Aggregator) Report(ctx context.Context, r window.Range) (_ *Report, err error) {
	ctx, span := a.tracer.Start(ctx, "accounting.Report", trace.WithAttributes(
		attribute.String("range.from", r.From.Format(time.RFC3339)),
		attribute.String("range.to", r.To.Format(time.RFC3339)),
	))
	defer func() { telemetry.Finish(span, err) }()

	if !r.From.Before(r.To) {
		return nil, window.ErrInvalidRange
	}

	prevRange := r.Previous()
	months := window.MonthsEnding(r.To.Add(-time.Nanosecond), monthsInReport)

	var (
		current, previous order.Totals
		paid              []order.Order
		rates             rate.Config
		monthly           = make([]order.Totals, len(months))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := a.orders.Totals(gctx, r)
		if err != nil {
			return errors.Wrap(err, "current totals")
		}
		current = t
		return nil
	})
	g.Go(func() error {
		t, err := a.orders.Totals(gctx, prevRange)
		if err != nil {
			return errors.Wrap(err, "previous totals")
		}
		previous = t
		return nil
	})
	g.Go(func() error {
		o, err := a.orders.ListPaid(gctx, r)
		if err != nil {
			return errors.Wrap(err, "list paid orders")
		}
		paid = o
		return nil
	})
	g.Go(func() error {
		cfg, err := a.rates.Load(gctx)
		if err != nil {
			return errors.Wrap(err, "load rates")
		}
		rates = cfg
		return nil
	})
	for i, m := range months {
		g.Go(func() error {
			t, err := a.orders.Totals(gctx, m)
			if err != nil {
				return errors.Wrapf(err, "totals for %s", m.From.Format("2006-01"))
			}
			monthly[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aov := averageOrderValue(current)
	prevAOV := averageOrderValue(previous)

	rep := &Report{
		Range:             r,
		PreviousRange:     prevRange,
		TotalRevenue:      money.Round(current.PaidRevenue),
		TotalOrders:       current.PaidCount,
		AverageOrderValue: aov,
		RefundedOrders:    current.RefundedCount,
		RefundRate:        ratio(current.RefundedCount, current.PaidCount+current.RefundedCount),

		RevenueGrowth:           Growth(current.PaidRevenue, previous.PaidRevenue),
		OrdersGrowth:            Growth(decimal.NewFromInt(int64(current.PaidCount)), decimal.NewFromInt(int64(previous.PaidCount))),
		AverageOrderValueGrowth: Growth(aov, prevAOV),

		Commission:         commissionTotals(paid, rates),
		MonthlyRevenue:     monthlyRevenue(months, monthly),
		TopProducts:        topProducts(paid, topProductsLimit),
		RecentTransactions: recentTransactions(paid, rates, transactionsLimit),
		GeneratedAt:        a.now(),
	}
	return rep, nil
}

// Growth returns the percentage change from previous to current, or zero
// when previous is zero.
func Growth(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return money.Round(current.Sub(previous).Div(previous).Mul(hundred))
}

func averageOrderValue(t order.Totals) decimal.Decimal {
	if t.PaidCount == 0 {
		return decimal.Zero
	}
	return money.Round(t.PaidRevenue.Div(decimal.NewFromInt(int64(t.PaidCount))))
}

func ratio(part, whole int) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return money.Round(decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))))
}

func commissionTotals(paid []order.Order, rates rate.Config) CommissionTotals {
	var t CommissionTotals
	for _, o := range paid {
		s := commission.Compute(o.Total, rates)
		t.Profit = t.Profit.Add(s.Profit)
		t.Owner = t.Owner.Add(s.Owner)
		t.Worker = t.Worker.Add(s.Worker)
		t.Store = t.Store.Add(s.Store)
		t.SellerResidual = t.SellerResidual.Add(s.SellerResidual)
	}
	return t
}

func monthlyRevenue(months []window.Range, totals []order.Totals) []MonthRevenue {
	out := make([]MonthRevenue, len(months))
	for i, m := range months {
		out[i] = MonthRevenue{
			Month:   m.From,
			Revenue: money.Round(totals[i].PaidRevenue),
			Orders:  totals[i].PaidCount,
		}
	}
	return out
}

func topProducts(paid []order.Order, limit int) []ProductSales {
	byID := make(map[string]*ProductSales)
	for _, o := range paid {
		for _, it := range o.Items {
			ps, ok := byID[it.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: it.ProductID, Name: it.Name}
				byID[it.ProductID] = ps
			}
			ps.Revenue = ps.Revenue.Add(it.LineTotal())
			ps.Quantity += it.Quantity
		}
	}

	out := make([]ProductSales, 0, len(byID))
	for _, ps := range byID {
		ps.Revenue = money.Round(ps.Revenue)
		out = append(out, *ps)
	}
	slices.SortFunc(out, func(a, b ProductSales) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func recentTransactions(paid []order.Order, rates rate.Config, limit int) []Transaction {
	feed := make([]Transaction, 0, len(paid)*(1+len(commission.Roles)))
	for _, o := range paid {
		feed = append(feed, Transaction{
			ID:          "sale-" + o.ID,
			OrderID:     o.ID,
			Kind:        transactionSale,
			Description: fmt.Sprintf("Sale %s", o.ID),
			Amount:      money.Round(o.Total),
			Date:        o.CreatedAt,
		})

		s := commission.Compute(o.Total, rates)
		for _, role := range commission.Roles {
			share := s.Share(role)
			if share.IsZero() {
				continue
			}
			feed = append(feed, Transaction{
				ID:          fmt.Sprintf("commission-%s-%s", strings.ToLower(string(role)), o.ID),
				OrderID:     o.ID,
				Kind:        transactionPayable,
				Role:        role,
				Description: fmt.Sprintf("%s commission for %s", roleLabel(role), o.ID),
				Amount:      share.Neg(),
				Date:        o.CreatedAt,
			})
		}
	}

	slices.SortStableFunc(feed, func(a, b Transaction) int {
		return cmp.Compare(b.Date.UnixNano(), a.Date.UnixNano())
	})
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed
}

func roleLabel(r commission.Role) string {
	switch r {
	case commission.RoleOwner:
		return "Owner"
	case commission.RoleWorker:
		return "Worker"
	case commission.RoleStore:
		return "Store"
	default:
		return string(r)
	}
}
