package payout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/commission"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/telemetry"
)

// Settlement is the result of settling one order.
type Settlement struct {
	OrderID string
	Split   commission.Split
	// Rates is the snapshot the split was computed with.
	Rates     rate.Config
	Payouts   []Payout
	SettledAt time.Time
}

// Settler runs the one-time settlement of a paid order.
type Settler struct {
	store  Store
	ledger *Ledger
	rates  rate.Loader

	tracer  trace.Tracer
	settles metric.Int64Counter
}

// NewSettler creates a Settler.
func NewSettler(store Store, ledger *Ledger, rates rate.Loader, tp trace.TracerProvider, mp metric.MeterProvider) (*Settler, error) {
	settles, err := mp.Meter("payout").Int64Counter("settlement.count",
		metric.WithDescription("Order settlement attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create settlement counter")
	}
	return &Settler{
		store:   store,
		ledger:  ledger,
		rates:   rates,
		tracer:  tp.Tracer("payout"),
		settles: settles,
	}, nil
}

// SettleOrder splits a PAID order's total and records its payouts in one
// transaction. Rates are read once, before the transaction, and never
// re-applied to a settled order. Settling an order twice fails with
// ErrAlreadySettled.
func (s *Settler) SettleOrder(ctx context.Context, orderID string) (_ *Settlement, err error) {
	ctx, span := s.tracer.Start(ctx, "payout.SettleOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer func() {
		s.settles.Add(ctx, 1, metric.WithAttributes(telemetry.ResultAttr(err)))
		telemetry.Finish(span, err)
	}()

	rates, err := s.rates.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load rates")
	}

	var res *Settlement
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "lock order")
		}
		if o.PaymentStatus != order.StatusPaid {
			return order.ErrNotPayable
		}

		settled, err := tx.IsSettled(ctx, o.ID)
		if err != nil {
			return errors.Wrap(err, "check settlement")
		}
		if settled {
			return ErrAlreadySettled
		}

		split := commission.Compute(o.Total, rates)
		rows, err := s.ledger.RecordSettlement(ctx, tx, o.ID, o.WorkerID, split)
		if err != nil {
			return err
		}

		// The record is written even when every share rounded to zero, so
		// the order can never be settled again under other rates.
		settledAt := s.ledger.now()
		if err := tx.InsertRecord(ctx, Record{
			OrderID:    o.ID,
			OrderTotal: split.OrderTotal,
			Profit:     split.Profit,
			Margin:     split.Margin(),
			Rates:      rates,
			SettledAt:  settledAt,
		}); err != nil {
			return errors.Wrap(err, "insert settlement record")
		}

		res = &Settlement{
			OrderID:   o.ID,
			Split:     split,
			Rates:     rates,
			Payouts:   rows,
			SettledAt: settledAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
