package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/coupon"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
)

const (
	couponColumns = `id, code, type, value, max_discount, min_order_amount,
		usage_limit, user_limit, usage_count, category, valid_from, valid_until, is_active`

	getCouponByCodeSQL  = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`
	lockCouponByCodeSQL = getCouponByCodeSQL + ` FOR UPDATE`

	countUserUsagesSQL = `SELECT count(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`

	usageExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2 AND order_id = $3)`

	insertUsageSQL = `INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, discount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// The guard keeps usage_count within usage_limit even if a caller skipped
	// the row lock.
	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`

	upsertCouponSQL = `INSERT INTO coupons (id, code, type, value, max_discount, min_order_amount,
		usage_limit, user_limit, category, valid_from, valid_until, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			max_discount = EXCLUDED.max_discount,
			min_order_amount = EXCLUDED.min_order_amount,
			usage_limit = GREATEST(EXCLUDED.usage_limit, coupons.usage_count),
			user_limit = EXCLUDED.user_limit,
			category = EXCLUDED.category,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			is_active = EXCLUDED.is_active`
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code, case-insensitively.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return findCoupon(ctx, r.pool, getCouponByCodeSQL, code)
}

// CountUserUsages counts how many times userID has used the coupon.
func (r *CouponRepository) CountUserUsages(ctx context.Context, couponID, userID string) (int, error) {
	return countUserUsages(ctx, r.pool, couponID, userID)
}

// InTx runs fn in a transaction. The transaction is rolled back when fn
// returns an error.
func (r *CouponRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx coupon.Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &couponTx{tx: tx})
	})
}

// Upsert creates a coupon or updates the definition of the one with the same
// code. UsageCount is never overwritten.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	if _, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.ID, coupon.NormalizeCode(c.Code), string(c.Type), c.Value, c.MaxDiscount, c.MinOrderAmount,
		c.UsageLimit, c.UserLimit, c.Category, c.ValidFrom, c.ValidUntil, c.IsActive,
	); err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.Code)
	}
	return nil
}

type couponTx struct {
	tx pgx.Tx
}

var _ coupon.Tx = (*couponTx)(nil)

func (t *couponTx) LockByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return findCoupon(ctx, t.tx, lockCouponByCodeSQL, code)
}

func (t *couponTx) LockOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return getOrder(ctx, t.tx, lockOrderSQL, orderID)
}

func (t *couponTx) CountUserUsages(ctx context.Context, couponID, userID string) (int, error) {
	return countUserUsages(ctx, t.tx, couponID, userID)
}

func (t *couponTx) UsageExists(ctx context.Context, couponID, userID, orderID string) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, usageExistsSQL, couponID, userID, orderID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check coupon usage")
	}
	return exists, nil
}

func (t *couponTx) InsertUsage(ctx context.Context, u *coupon.Usage) error {
	if _, err := t.tx.Exec(ctx, insertUsageSQL,
		u.ID, u.CouponID, u.UserID, u.OrderID, u.Discount, u.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrAlreadyApplied
		}
		return errors.Wrap(err, "insert coupon usage")
	}
	return nil
}

func (t *couponTx) IncrementUsage(ctx context.Context, couponID string) error {
	tag, err := t.tx.Exec(ctx, incrementCouponUsageSQL, couponID)
	if err != nil {
		return errors.Wrapf(err, "increment usage of coupon %q", couponID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitExceeded
	}
	return nil
}

func (t *couponTx) DecrementOrderTotal(ctx context.Context, orderID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return decrementOrderTotal(ctx, t.tx, orderID, amount)
}

func findCoupon(ctx context.Context, q querier, query, code string) (*coupon.Coupon, error) {
	rows, err := q.Query(ctx, query, coupon.NormalizeCode(code))
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &c, nil
}

func countUserUsages(ctx context.Context, q querier, couponID, userID string) (int, error) {
	var n int
	if err := q.QueryRow(ctx, countUserUsagesSQL, couponID, userID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count coupon usages")
	}
	return n, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c   coupon.Coupon
		typ string
	)
	err := row.Scan(
		&c.ID, &c.Code, &typ, &c.Value, &c.MaxDiscount, &c.MinOrderAmount,
		&c.UsageLimit, &c.UserLimit, &c.UsageCount, &c.Category, &c.ValidFrom, &c.ValidUntil, &c.IsActive,
	)
	c.Type = coupon.Type(typ)
	return c, err
}
