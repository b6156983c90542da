package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/commission"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type memOrders struct {
	orders   []order.Order
	totalErr error
}

func (m *memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrders) ListPaid(_ context.Context, r window.Range) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if o.PaymentStatus == order.StatusPaid && r.Contains(o.CreatedAt) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) Totals(_ context.Context, r window.Range) (order.Totals, error) {
	if m.totalErr != nil {
		return order.Totals{}, m.totalErr
	}
	var t order.Totals
	for _, o := range m.orders {
		if !r.Contains(o.CreatedAt) {
			continue
		}
		switch o.PaymentStatus {
		case order.StatusPaid:
			t.PaidCount++
			t.PaidRevenue = t.PaidRevenue.Add(o.Total)
		case order.StatusRefunded:
			t.RefundedCount++
		}
	}
	return t, nil
}

type staticRates struct{ cfg rate.Config }

func (s staticRates) Load(context.Context) (rate.Config, error) { return s.cfg, nil }

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestAggregator(orders *memOrders) *Aggregator {
	a := NewAggregator(orders, staticRates{cfg: rate.Defaults()}, tracenoop.NewTracerProvider())
	a.now = func() time.Time { return testNow }
	return a
}

func paid(id string, total string, at time.Time, items ...order.Item) order.Order {
	return order.Order{ID: id, Total: d(total), PaymentStatus: order.StatusPaid, CreatedAt: at, Items: items}
}

func TestAggregator_Report(t *testing.T) {
	r := window.Range{From: testNow.AddDate(0, 0, -30), To: testNow}
	inWindow := testNow.AddDate(0, 0, -1)
	inPrevious := testNow.AddDate(0, 0, -45)

	orders := &memOrders{orders: []order.Order{
		paid("o1", "1000", inWindow,
			order.Item{ProductID: "p1", Name: "Helmet", Price: d("400"), Quantity: 2},
			order.Item{ProductID: "p2", Name: "Gloves", Price: d("200"), Quantity: 1},
		),
		paid("o2", "200", inWindow.Add(-time.Hour),
			order.Item{ProductID: "p2", Name: "Gloves", Price: d("200"), Quantity: 1},
		),
		{ID: "o3", Total: d("300"), PaymentStatus: order.StatusRefunded, CreatedAt: inWindow},
		{ID: "o4", Total: d("50"), PaymentStatus: order.StatusPending, CreatedAt: inWindow},
		paid("o5", "400", inPrevious),
	}}

	rep, err := newTestAggregator(orders).Report(context.Background(), r)
	require.NoError(t, err)

	assert.True(t, d("1200").Equal(rep.TotalRevenue), rep.TotalRevenue.String())
	assert.Equal(t, 2, rep.TotalOrders)
	assert.True(t, d("600").Equal(rep.AverageOrderValue))
	assert.Equal(t, 1, rep.RefundedOrders)
	assert.True(t, d("33.33").Equal(rep.RefundRate), rep.RefundRate.String())

	// previous: 1 order, revenue 400, aov 400
	assert.True(t, d("200").Equal(rep.RevenueGrowth), rep.RevenueGrowth.String())
	assert.True(t, d("100").Equal(rep.OrdersGrowth))
	assert.True(t, d("50").Equal(rep.AverageOrderValueGrowth))

	assert.True(t, d("600").Equal(rep.Commission.Profit))
	assert.True(t, d("120").Equal(rep.Commission.Owner))
	assert.True(t, d("120").Equal(rep.Commission.Worker))
	assert.True(t, d("60").Equal(rep.Commission.Store))
	assert.True(t, d("600").Equal(rep.Commission.SellerResidual))

	require.Len(t, rep.MonthlyRevenue, 6)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), rep.MonthlyRevenue[0].Month)
	last := rep.MonthlyRevenue[5]
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), last.Month)
	assert.True(t, d("1200").Equal(last.Revenue))
	assert.Equal(t, 2, last.Orders)
	assert.True(t, d("400").Equal(rep.MonthlyRevenue[4].Revenue))

	require.Len(t, rep.TopProducts, 2)
	assert.Equal(t, "p1", rep.TopProducts[0].ProductID)
	assert.True(t, d("800").Equal(rep.TopProducts[0].Revenue))
	assert.Equal(t, "p2", rep.TopProducts[1].ProductID)
	assert.True(t, d("400").Equal(rep.TopProducts[1].Revenue))
	assert.Equal(t, 2, rep.TopProducts[1].Quantity)

	// 2 sales + 3 commission debits each.
	require.Len(t, rep.RecentTransactions, 8)
	first := rep.RecentTransactions[0]
	assert.Equal(t, "o1", first.OrderID)
	assert.Equal(t, transactionSale, first.Kind)
	assert.True(t, d("1000").Equal(first.Amount))
	owner := rep.RecentTransactions[1]
	assert.Equal(t, commission.RoleOwner, owner.Role)
	assert.True(t, d("-100").Equal(owner.Amount))
	for i := 1; i < len(rep.RecentTransactions); i++ {
		assert.False(t, rep.RecentTransactions[i].Date.After(rep.RecentTransactions[i-1].Date))
	}

	assert.Equal(t, testNow, rep.GeneratedAt)
}

func TestAggregator_ReportEmpty(t *testing.T) {
	rep, err := newTestAggregator(&memOrders{}).ReportForPeriod(context.Background(), window.PeriodWeek)
	require.NoError(t, err)

	assert.True(t, rep.TotalRevenue.IsZero())
	assert.Zero(t, rep.TotalOrders)
	assert.True(t, rep.AverageOrderValue.IsZero())
	assert.True(t, rep.RevenueGrowth.IsZero())
	assert.True(t, rep.OrdersGrowth.IsZero())
	assert.True(t, rep.RefundRate.IsZero())
	assert.Empty(t, rep.TopProducts)
	assert.Empty(t, rep.RecentTransactions)
	assert.Len(t, rep.MonthlyRevenue, 6)
	assert.Equal(t, testNow.AddDate(0, 0, -7), rep.Range.From)
}

func TestAggregator_Limits(t *testing.T) {
	o := &memOrders{}
	for i := range 12 {
		at := testNow.Add(-time.Duration(i+1) * time.Hour)
		id := string(rune('a' + i))
		o.orders = append(o.orders, paid(id, "10", at,
			order.Item{ProductID: "p-" + id, Name: id, Price: decimal.NewFromInt(int64(i + 1)), Quantity: 1},
		))
	}

	rep, err := newTestAggregator(o).ReportForPeriod(context.Background(), window.PeriodWeek)
	require.NoError(t, err)

	require.Len(t, rep.TopProducts, topProductsLimit)
	assert.Equal(t, "p-l", rep.TopProducts[0].ProductID)
	require.Len(t, rep.RecentTransactions, transactionsLimit)
	assert.Equal(t, "a", rep.RecentTransactions[0].OrderID)
}

func TestAggregator_Errors(t *testing.T) {
	t.Run("UnknownPeriod", func(t *testing.T) {
		_, err := newTestAggregator(&memOrders{}).ReportForPeriod(context.Background(), "2d")
		require.ErrorIs(t, err, window.ErrUnknownPeriod)
	})
	t.Run("InvalidRange", func(t *testing.T) {
		_, err := newTestAggregator(&memOrders{}).Report(context.Background(), window.Range{From: testNow, To: testNow})
		require.ErrorIs(t, err, window.ErrInvalidRange)
	})
	t.Run("Infrastructure", func(t *testing.T) {
		boom := errors.New("connection reset")
		_, err := newTestAggregator(&memOrders{totalErr: boom}).ReportForPeriod(context.Background(), window.PeriodMonth)
		require.ErrorIs(t, err, boom)
	})
}

func TestGrowth(t *testing.T) {
	for _, tt := range []struct {
		name      string
		cur, prev string
		want      string
	}{
		{"Up", "150", "100", "50"},
		{"Down", "50", "100", "-50"},
		{"NoPrevious", "100", "0", "0"},
		{"Rounded", "1", "3", "-66.67"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := Growth(d(tt.cur), d(tt.prev))
			assert.True(t, d(tt.want).Equal(got), got.String())
		})
	}
}
