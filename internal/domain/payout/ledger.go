package payout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/commission"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
)

// Ledger writes and reads payout rows.
type Ledger struct {
	repo  Repository
	now   func() time.Time
	newID func() string

	transitions metric.Int64Counter
}

// NewLedger creates a Ledger over repo.
func NewLedger(repo Repository, mp metric.MeterProvider) (*Ledger, error) {
	transitions, err := mp.Meter("payout").Int64Counter("payout.transition.count",
		metric.WithDescription("Payout status transitions by target status and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create transition counter")
	}
	return &Ledger{
		repo:        repo,
		now:         time.Now,
		newID:       uuid.NewString,
		transitions: transitions,
	}, nil
}

// Rows builds one PENDING payout per non-zero share of split.
func (l *Ledger) Rows(orderID, workerID string, split commission.Split) []Payout {
	now := l.now()
	rows := make([]Payout, 0, len(commission.Roles))
	for _, role := range commission.Roles {
		amount := split.Share(role)
		if amount.IsZero() {
			continue
		}
		recipient := ""
		if role == commission.RoleWorker {
			recipient = workerID
		}
		rows = append(rows, Payout{
			ID:          l.newID(),
			OrderID:     orderID,
			Role:        role,
			RecipientID: recipient,
			Amount:      amount,
			Commission:  split.Profit,
			Status:      StatusPending,
			CreatedAt:   now,
		})
	}
	return rows
}

// RecordSettlement inserts the payout rows for split inside tx.
//
// It does not deduplicate: the caller must have verified, in the same
// transaction, that the order has no settlement record yet.
func (l *Ledger) RecordSettlement(ctx context.Context, tx Tx, orderID, workerID string, split commission.Split) ([]Payout, error) {
	rows := l.Rows(orderID, workerID, split)
	if len(rows) == 0 {
		return rows, nil
	}
	if err := tx.InsertPayouts(ctx, rows); err != nil {
		return nil, errors.Wrap(err, "insert payouts")
	}
	return rows, nil
}

// MarkPaid moves a pending payout to PAID.
func (l *Ledger) MarkPaid(ctx context.Context, id string) (*Payout, error) {
	return l.transition(ctx, id, StatusPaid, "")
}

// MarkFailed moves a pending payout to FAILED with a reason.
func (l *Ledger) MarkFailed(ctx context.Context, id, reason string) (*Payout, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return l.transition(ctx, id, StatusFailed, reason)
}

func (l *Ledger) transition(ctx context.Context, id string, to Status, reason string) (p *Payout, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "rejected"
			if errors.Is(err, ErrNotFound) {
				result = "not_found"
			} else if !errors.Is(err, ErrFinalized) {
				result = "error"
			}
		}
		l.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(to)),
			attribute.String("result", result),
		))
	}()

	p, err = l.repo.Transition(ctx, id, to, reason, l.now())
	if err != nil {
		return nil, errors.Wrapf(err, "transition payout %s to %s", id, to)
	}
	return p, nil
}

// SummaryFor aggregates the recipient's payouts created inside w.
func (l *Ledger) SummaryFor(ctx context.Context, r Recipient, w window.Range) (*Summary, error) {
	if !r.Role.Valid() {
		return nil, ErrUnknownRole
	}
	s, err := l.repo.Summary(ctx, r, w)
	if err != nil {
		return nil, errors.Wrap(err, "payout summary")
	}
	return s, nil
}

// ForOrder lists the payouts recorded for an order.
func (l *Ledger) ForOrder(ctx context.Context, orderID string) ([]Payout, error) {
	rows, err := l.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "list payouts")
	}
	return rows, nil
}
