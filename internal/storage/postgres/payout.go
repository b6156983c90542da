package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/commission"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/payout"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
)

const (
	payoutColumns = `id, order_id, recipient_role, recipient_id, amount, commission,
		status, failure_reason, created_at, paid_at`

	getPayoutSQL          = `SELECT ` + payoutColumns + ` FROM seller_payouts WHERE id = $1`
	listPayoutsByOrderSQL = `SELECT ` + payoutColumns + ` FROM seller_payouts
		WHERE order_id = $1 ORDER BY recipient_role`

	isSettledSQL = `SELECT EXISTS (SELECT 1 FROM order_settlements WHERE order_id = $1)`

	insertSettlementSQL = `INSERT INTO order_settlements (order_id, order_total, profit, margin, rates, settled_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`

	insertPayoutSQL = `INSERT INTO seller_payouts (id, order_id, recipient_role, recipient_id,
		amount, commission, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	transitionPayoutSQL = `UPDATE seller_payouts SET
			status = $2::text,
			failure_reason = $3,
			paid_at = CASE WHEN $2::text = 'PAID' THEN $4::timestamptz ELSE paid_at END
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + payoutColumns

	payoutStatusSQL = `SELECT status FROM seller_payouts WHERE id = $1`

	payoutSummarySQL = `SELECT
		COALESCE(sum(amount) FILTER (WHERE status <> 'FAILED'), 0),
		COALESCE(sum(commission) FILTER (WHERE status <> 'FAILED'), 0),
		count(*) FILTER (WHERE status = 'PENDING'),
		count(*) FILTER (WHERE status = 'PAID'),
		count(*) FILTER (WHERE status = 'FAILED')
		FROM seller_payouts
		WHERE recipient_role = $1 AND ($2::text = '' OR recipient_id = $2)
			AND created_at >= $3 AND created_at < $4`
)

var _ payout.Store = (*PayoutRepository)(nil)

// PayoutRepository implements payout.Store backed by PostgreSQL.
type PayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutRepository returns a PayoutRepository that uses the given pool.
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

// Get returns the payout with the given id.
func (r *PayoutRepository) Get(ctx context.Context, id string) (*payout.Payout, error) {
	rows, err := r.pool.Query(ctx, getPayoutSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get payout %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayout)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payout.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get payout %q", id)
	}
	return &p, nil
}

// ListByOrder returns the payouts recorded for an order.
func (r *PayoutRepository) ListByOrder(ctx context.Context, orderID string) ([]payout.Payout, error) {
	rows, err := r.pool.Query(ctx, listPayoutsByOrderSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "list payouts of order %q", orderID)
	}
	out, err := pgx.CollectRows(rows, scanPayout)
	if err != nil {
		return nil, errors.Wrapf(err, "list payouts of order %q", orderID)
	}
	return out, nil
}

// Transition moves a PENDING payout to status. The status check and the
// update happen in one statement.
func (r *PayoutRepository) Transition(ctx context.Context, id string, status payout.Status, reason string, at time.Time) (*payout.Payout, error) {
	rows, err := r.pool.Query(ctx, transitionPayoutSQL, id, string(status), reason, at)
	if err != nil {
		return nil, errors.Wrapf(err, "transition payout %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayout)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(err, "transition payout %q", id)
	}

	var current string
	if err := r.pool.QueryRow(ctx, payoutStatusSQL, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payout.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get status of payout %q", id)
	}
	return nil, payout.ErrFinalized
}

// Summary aggregates payouts of a recipient created inside w. FAILED rows are
// counted but excluded from the totals.
func (r *PayoutRepository) Summary(ctx context.Context, rcpt payout.Recipient, w window.Range) (*payout.Summary, error) {
	s := &payout.Summary{Recipient: rcpt, Range: w}
	if err := r.pool.QueryRow(ctx, payoutSummarySQL, string(rcpt.Role), rcpt.ID, w.From, w.To).Scan(
		&s.TotalEarnings, &s.TotalCommission, &s.PendingCount, &s.PaidCount, &s.FailedCount,
	); err != nil {
		return nil, errors.Wrap(err, "payout summary")
	}
	return s, nil
}

// InTx runs fn in a transaction. The transaction is rolled back when fn
// returns an error.
func (r *PayoutRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx payout.Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &payoutTx{tx: tx})
	})
}

type payoutTx struct {
	tx pgx.Tx
}

var _ payout.Tx = (*payoutTx)(nil)

func (t *payoutTx) LockOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return getOrder(ctx, t.tx, lockOrderSQL, orderID)
}

func (t *payoutTx) IsSettled(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, isSettledSQL, orderID).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "check settlement of order %q", orderID)
	}
	return exists, nil
}

func (t *payoutTx) InsertRecord(ctx context.Context, rec payout.Record) error {
	if _, err := t.tx.Exec(ctx, insertSettlementSQL,
		rec.OrderID, rec.OrderTotal, rec.Profit, rec.Margin, encodeRateSnapshot(rec.Rates), rec.SettledAt,
	); err != nil {
		if isUniqueViolation(err) {
			return payout.ErrAlreadySettled
		}
		return errors.Wrapf(err, "insert settlement of order %q", rec.OrderID)
	}
	return nil
}

// encodeRateSnapshot renders cfg as a JSON object of key to decimal string.
func encodeRateSnapshot(cfg rate.Config) string {
	var e jx.Encoder
	e.ObjStart()
	for _, k := range rate.Keys {
		v, _ := cfg.Get(k)
		e.FieldStart(string(k))
		e.Str(v.String())
	}
	e.ObjEnd()
	return e.String()
}

func (t *payoutTx) InsertPayouts(ctx context.Context, payouts []payout.Payout) error {
	batch := &pgx.Batch{}
	for _, p := range payouts {
		batch.Queue(insertPayoutSQL,
			p.ID, p.OrderID, string(p.Role), p.RecipientID, p.Amount, p.Commission, string(p.Status), p.CreatedAt,
		)
	}

	br := t.tx.SendBatch(ctx, batch)
	for range payouts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if isUniqueViolation(err) {
				return payout.ErrAlreadySettled
			}
			return errors.Wrap(err, "insert payout")
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "insert payouts")
	}
	return nil
}

func scanPayout(row pgx.CollectableRow) (payout.Payout, error) {
	var (
		p      payout.Payout
		role   string
		status string
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &role, &p.RecipientID, &p.Amount, &p.Commission,
		&status, &p.FailureReason, &p.CreatedAt, &p.PaidAt,
	)
	p.Role = commission.Role(role)
	p.Status = payout.Status(status)
	return p, err
}
