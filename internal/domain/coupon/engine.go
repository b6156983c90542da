package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/telemetry"
)

// QuoteRequest asks what a coupon would be worth on a cart.
type QuoteRequest struct {
	Code        string
	UserID      string
	OrderAmount decimal.Decimal
	Items       []Item
}

// Quote is the outcome of a successful validation.
type Quote struct {
	CouponID string
	Code     string
	Discount decimal.Decimal
	NewTotal decimal.Decimal
}

// ApplyRequest applies a coupon to a pending order.
type ApplyRequest struct {
	Code    string
	UserID  string
	OrderID string
}

// Application is the outcome of a successful Apply.
type Application struct {
	CouponID string
	OrderID  string
	Discount decimal.Decimal
	NewTotal decimal.Decimal
}

// Engine validates coupons and applies them to orders.
type Engine struct {
	store Store
	rates rate.Loader
	now   func() time.Time
	newID func() string

	tracer  trace.Tracer
	applies metric.Int64Counter
}

// NewEngine creates an Engine backed by store, reading the FREE_SHIPPING
// offset from rates.
func NewEngine(store Store, rates rate.Loader, tp trace.TracerProvider, mp metric.MeterProvider) (*Engine, error) {
	applies, err := mp.Meter("coupon").Int64Counter("coupon.apply.count",
		metric.WithDescription("Coupon application attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create apply counter")
	}
	return &Engine{
		store:   store,
		rates:   rates,
		now:     time.Now,
		newID:   uuid.NewString,
		tracer:  tp.Tracer("coupon"),
		applies: applies,
	}, nil
}

// Quote validates the coupon against the cart and computes its discount
// without recording anything.
func (e *Engine) Quote(ctx context.Context, req QuoteRequest) (_ *Quote, err error) {
	ctx, span := e.tracer.Start(ctx, "coupon.Quote",
		trace.WithAttributes(attribute.String("coupon.code", NormalizeCode(req.Code))),
	)
	defer func() { telemetry.Finish(span, err) }()

	c, err := e.store.FindByCode(ctx, NormalizeCode(req.Code))
	if err != nil {
		return nil, errors.Wrap(err, "find coupon")
	}

	used, err := e.store.CountUserUsages(ctx, c.ID, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "count user usages")
	}

	if err := Validate(c, Check{
		UserID:         req.UserID,
		OrderAmount:    req.OrderAmount,
		UserUsageCount: used,
		Items:          req.Items,
	}, e.now()); err != nil {
		return nil, err
	}

	rates, err := e.rates.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load rates")
	}

	discount := ComputeDiscount(c, req.OrderAmount, rates.FreeShipping)
	return &Quote{
		CouponID: c.ID,
		Code:     c.Code,
		Discount: discount,
		NewTotal: req.OrderAmount.Sub(discount),
	}, nil
}

// Apply re-validates the coupon against the locked order and, in the same
// transaction, records the usage, increments the coupon's counter and
// decrements the order total. A second application of the same coupon to
// the same order by the same user fails with ErrAlreadyApplied.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (_ *Application, err error) {
	code := NormalizeCode(req.Code)
	ctx, span := e.tracer.Start(ctx, "coupon.Apply",
		trace.WithAttributes(
			attribute.String("coupon.code", code),
			attribute.String("order.id", req.OrderID),
		),
	)
	defer func() {
		e.applies.Add(ctx, 1, metric.WithAttributes(telemetry.ResultAttr(err)))
		telemetry.Finish(span, err)
	}()

	rates, err := e.rates.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load rates")
	}

	var res *Application
	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.LockByCode(ctx, code)
		if err != nil {
			return errors.Wrap(err, "lock coupon")
		}

		o, err := tx.LockOrder(ctx, req.OrderID)
		if err != nil {
			return errors.Wrap(err, "lock order")
		}
		if o.PaymentStatus != order.StatusPending {
			return order.ErrNotPending
		}

		exists, err := tx.UsageExists(ctx, c.ID, req.UserID, o.ID)
		if err != nil {
			return errors.Wrap(err, "check usage")
		}
		if exists {
			return ErrAlreadyApplied
		}

		used, err := tx.CountUserUsages(ctx, c.ID, req.UserID)
		if err != nil {
			return errors.Wrap(err, "count user usages")
		}

		now := e.now()
		if err := Validate(c, Check{
			UserID:         req.UserID,
			OrderAmount:    o.Total,
			UserUsageCount: used,
			Items:          ItemsFromOrder(o.Items),
		}, now); err != nil {
			return err
		}

		discount := ComputeDiscount(c, o.Total, rates.FreeShipping)

		if err := tx.InsertUsage(ctx, &Usage{
			ID:        e.newID(),
			CouponID:  c.ID,
			UserID:    req.UserID,
			OrderID:   o.ID,
			Discount:  discount,
			CreatedAt: now,
		}); err != nil {
			return errors.Wrap(err, "insert usage")
		}

		if err := tx.IncrementUsage(ctx, c.ID); err != nil {
			return errors.Wrap(err, "increment usage")
		}

		newTotal, err := tx.DecrementOrderTotal(ctx, o.ID, discount)
		if err != nil {
			return errors.Wrap(err, "decrement order total")
		}

		res = &Application{
			CouponID: c.ID,
			OrderID:  o.ID,
			Discount: discount,
			NewTotal: newTotal,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
