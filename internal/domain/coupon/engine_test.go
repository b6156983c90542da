package coupon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
)

// --- In-memory store ---

type usageKey struct{ coupon, user, order string }

type memState struct {
	coupons map[string]Coupon
	orders  map[string]order.Order
	usages  map[usageKey]Usage
}

func (s memState) clone() memState {
	out := memState{
		coupons: make(map[string]Coupon, len(s.coupons)),
		orders:  make(map[string]order.Order, len(s.orders)),
		usages:  make(map[usageKey]Usage, len(s.usages)),
	}
	for k, v := range s.coupons {
		out.coupons[k] = v
	}
	for k, v := range s.orders {
		out.orders[k] = v
	}
	for k, v := range s.usages {
		out.usages[k] = v
	}
	return out
}

// memStore serializes transactions and commits only when fn succeeds,
// mirroring row locks plus rollback.
type memStore struct {
	mu    sync.Mutex
	state memState
	txErr error
}

func newMemStore(coupons []Coupon, orders []order.Order) *memStore {
	st := memState{
		coupons: map[string]Coupon{},
		orders:  map[string]order.Order{},
		usages:  map[usageKey]Usage{},
	}
	for _, c := range coupons {
		st.coupons[NormalizeCode(c.Code)] = c
	}
	for _, o := range orders {
		st.orders[o.ID] = o
	}
	return &memStore{state: st}
}

func (m *memStore) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.coupons[NormalizeCode(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memStore) CountUserUsages(_ context.Context, couponID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return countUsages(m.state, couponID, userID), nil
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txErr != nil {
		return m.txErr
	}
	tx := &memTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) coupon(code string) Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.coupons[NormalizeCode(code)]
}

func (m *memStore) order(id string) order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.orders[id]
}

func (m *memStore) usageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.usages)
}

func countUsages(s memState, couponID, userID string) int {
	n := 0
	for k := range s.usages {
		if k.coupon == couponID && k.user == userID {
			n++
		}
	}
	return n
}

type memTx struct {
	state memState
}

func (t *memTx) LockByCode(_ context.Context, code string) (*Coupon, error) {
	c, ok := t.state.coupons[NormalizeCode(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (t *memTx) LockOrder(_ context.Context, orderID string) (*order.Order, error) {
	o, ok := t.state.orders[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (t *memTx) CountUserUsages(_ context.Context, couponID, userID string) (int, error) {
	return countUsages(t.state, couponID, userID), nil
}

func (t *memTx) UsageExists(_ context.Context, couponID, userID, orderID string) (bool, error) {
	_, ok := t.state.usages[usageKey{couponID, userID, orderID}]
	return ok, nil
}

func (t *memTx) InsertUsage(_ context.Context, u *Usage) error {
	k := usageKey{u.CouponID, u.UserID, u.OrderID}
	if _, ok := t.state.usages[k]; ok {
		return ErrAlreadyApplied
	}
	t.state.usages[k] = *u
	return nil
}

func (t *memTx) IncrementUsage(_ context.Context, couponID string) error {
	for code, c := range t.state.coupons {
		if c.ID != couponID {
			continue
		}
		if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
			return ErrUsageLimitExceeded
		}
		c.UsageCount++
		t.state.coupons[code] = c
		return nil
	}
	return ErrNotFound
}

func (t *memTx) DecrementOrderTotal(_ context.Context, orderID string, amount decimal.Decimal) (decimal.Decimal, error) {
	o, ok := t.state.orders[orderID]
	if !ok {
		return decimal.Zero, order.ErrNotFound
	}
	o.Total = o.Total.Sub(amount)
	t.state.orders[orderID] = o
	return o.Total, nil
}

type staticRates struct {
	cfg rate.Config
	err error
}

func (s staticRates) Load(context.Context) (rate.Config, error) {
	return s.cfg, s.err
}

// --- Helpers ---

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store Store) *Engine {
	t.Helper()
	e, err := NewEngine(store, staticRates{cfg: rate.Defaults()}, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	e.now = func() time.Time { return testNow }
	return e
}

func pendingOrder(id, total string) order.Order {
	return order.Order{
		ID:            id,
		Total:         d(total),
		PaymentStatus: order.StatusPending,
		Items: []order.Item{
			{ProductID: "p1", Price: d(total), Quantity: 1, Categories: []string{"shoes"}},
		},
		CreatedAt: testNow.Add(-time.Hour),
	}
}

func activeCoupon(code string, typ Type, value string) Coupon {
	return Coupon{
		ID:        "cp-" + code,
		Code:      code,
		Type:      typ,
		Value:     d(value),
		ValidFrom: testNow.Add(-48 * time.Hour),
		IsActive:  true,
	}
}

// --- Tests ---

func TestEngine_Apply_PercentageCapped(t *testing.T) {
	c := activeCoupon("TENOFF", TypePercentage, "10")
	c.MaxDiscount = nd("80")
	store := newMemStore([]Coupon{c}, []order.Order{pendingOrder("o1", "1000.00")})
	e := newTestEngine(t, store)

	res, err := e.Apply(context.Background(), ApplyRequest{Code: "tenoff", UserID: "u1", OrderID: "o1"})
	require.NoError(t, err)

	assert.True(t, d("80.00").Equal(res.Discount), "discount %s", res.Discount)
	assert.True(t, d("920.00").Equal(res.NewTotal), "new total %s", res.NewTotal)
	assert.True(t, d("920.00").Equal(store.order("o1").Total))
	assert.Equal(t, 1, store.coupon("TENOFF").UsageCount)
}

func TestEngine_Apply_FixedCappedToTotal(t *testing.T) {
	store := newMemStore(
		[]Coupon{activeCoupon("BIG75", TypeFixedAmount, "75.00")},
		[]order.Order{pendingOrder("o1", "50.00")},
	)
	e := newTestEngine(t, store)

	res, err := e.Apply(context.Background(), ApplyRequest{Code: "BIG75", UserID: "u1", OrderID: "o1"})
	require.NoError(t, err)

	assert.True(t, d("50.00").Equal(res.Discount))
	assert.True(t, decimal.Zero.Equal(res.NewTotal))
}

func TestEngine_Apply_Twice(t *testing.T) {
	store := newMemStore(
		[]Coupon{activeCoupon("FIVE", TypeFixedAmount, "5")},
		[]order.Order{pendingOrder("o1", "100")},
	)
	e := newTestEngine(t, store)
	req := ApplyRequest{Code: "FIVE", UserID: "u1", OrderID: "o1"}

	_, err := e.Apply(context.Background(), req)
	require.NoError(t, err)

	_, err = e.Apply(context.Background(), req)
	require.ErrorIs(t, err, ErrAlreadyApplied)

	assert.Equal(t, 1, store.coupon("FIVE").UsageCount)
	assert.True(t, d("95").Equal(store.order("o1").Total))
}

func TestEngine_Apply_Concurrent(t *testing.T) {
	store := newMemStore(
		[]Coupon{activeCoupon("RACE", TypePercentage, "10")},
		[]order.Order{pendingOrder("o1", "200")},
	)
	e := newTestEngine(t, store)
	req := ApplyRequest{Code: "RACE", UserID: "u1", OrderID: "o1"}

	const callers = 2
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Apply(context.Background(), req)
		}()
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyApplied):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, already)
	assert.Equal(t, 1, store.coupon("RACE").UsageCount)
	assert.True(t, d("180").Equal(store.order("o1").Total))
}

func TestEngine_Apply_UsageLimitUnderContention(t *testing.T) {
	const (
		limit   = 3
		callers = 25
	)
	c := activeCoupon("FEW", TypeFixedAmount, "1")
	c.UsageLimit = limit

	orders := make([]order.Order, callers)
	for i := range callers {
		orders[i] = pendingOrder(fmt.Sprintf("o%d", i), "10")
	}
	store := newMemStore([]Coupon{c}, orders)
	e := newTestEngine(t, store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Apply(context.Background(), ApplyRequest{
				Code:    "FEW",
				UserID:  fmt.Sprintf("u%d", i%4),
				OrderID: fmt.Sprintf("o%d", i),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrUsageLimitExceeded)
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, succeeded)
	assert.Equal(t, limit, store.coupon("FEW").UsageCount)
	assert.Equal(t, limit, store.usageCount())
}

func TestEngine_Apply_Rejections(t *testing.T) {
	expired := activeCoupon("OLD", TypeFixedAmount, "5")
	until := testNow.Add(-time.Hour)
	expired.ValidUntil = &until

	limited := activeCoupon("ONCE", TypeFixedAmount, "5")
	limited.UserLimit = 1

	category := activeCoupon("TECH", TypeFixedAmount, "5")
	category.Category = "electronics"

	paid := pendingOrder("paid", "100")
	paid.PaymentStatus = order.StatusPaid

	store := newMemStore(
		[]Coupon{expired, limited, category},
		[]order.Order{pendingOrder("o1", "100"), pendingOrder("o2", "100"), paid},
	)
	e := newTestEngine(t, store)

	_, err := e.Apply(context.Background(), ApplyRequest{Code: "ONCE", UserID: "u1", OrderID: "o1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     ApplyRequest
		wantErr error
	}{
		{"unknown coupon", ApplyRequest{Code: "NOPE", UserID: "u1", OrderID: "o2"}, ErrNotFound},
		{"unknown order", ApplyRequest{Code: "ONCE", UserID: "u2", OrderID: "missing"}, order.ErrNotFound},
		{"order already paid", ApplyRequest{Code: "ONCE", UserID: "u2", OrderID: "paid"}, order.ErrNotPending},
		{"expired", ApplyRequest{Code: "OLD", UserID: "u1", OrderID: "o2"}, ErrExpired},
		{"user limit on another order", ApplyRequest{Code: "ONCE", UserID: "u1", OrderID: "o2"}, ErrUserLimitExceeded},
		{"category mismatch", ApplyRequest{Code: "TECH", UserID: "u1", OrderID: "o2"}, ErrCategoryMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Apply(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.True(t, d("100").Equal(store.order("o2").Total), "rejected applications must not touch the order")
	assert.Equal(t, 1, store.usageCount())
}

func TestEngine_Apply_InfrastructureFailure(t *testing.T) {
	store := newMemStore(nil, nil)
	store.txErr = errors.New("connection reset")
	e := newTestEngine(t, store)

	_, err := e.Apply(context.Background(), ApplyRequest{Code: "X", UserID: "u1", OrderID: "o1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestEngine_Quote(t *testing.T) {
	c := activeCoupon("SHIPFREE", TypeFreeShipping, "0")
	c.MinOrderAmount = nd("30")
	store := newMemStore([]Coupon{c}, nil)
	e := newTestEngine(t, store)

	q, err := e.Quote(context.Background(), QuoteRequest{
		Code:        "shipfree",
		UserID:      "u1",
		OrderAmount: d("45.00"),
	})
	require.NoError(t, err)
	assert.True(t, d("10").Equal(q.Discount))
	assert.True(t, d("35").Equal(q.NewTotal))
	assert.Equal(t, 0, store.coupon("SHIPFREE").UsageCount, "quote must not record usage")

	_, err = e.Quote(context.Background(), QuoteRequest{Code: "shipfree", UserID: "u1", OrderAmount: d("29.99")})
	require.ErrorIs(t, err, ErrMinOrderNotMet)
}
