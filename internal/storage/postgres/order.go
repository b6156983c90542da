package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
)

const (
	orderColumns = `id, total, payment_status, customer_email, worker_id, created_at`

	getOrderSQL  = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	lockOrderSQL = getOrderSQL + ` FOR UPDATE`

	listPaidOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = 'PAID' AND created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id`

	listOrderItemsSQL = `SELECT order_id, product_id, name, price, quantity, categories
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line`

	orderTotalsSQL = `SELECT
		count(*) FILTER (WHERE payment_status = 'PAID'),
		COALESCE(sum(total) FILTER (WHERE payment_status = 'PAID'), 0),
		count(*) FILTER (WHERE payment_status = 'REFUNDED')
		FROM orders WHERE created_at >= $1 AND created_at < $2`

	decrementOrderTotalSQL = `UPDATE orders SET total = total - $2 WHERE id = $1 RETURNING total`

	insertOrderSQL = `INSERT INTO orders (id, total, payment_status, customer_email, worker_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, line, product_id, name, price, quantity, categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var _ order.Reader = (*OrderRepository)(nil)

// OrderRepository reads checkout orders for settlement and reporting.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns the order with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.pool, getOrderSQL, id)
}

// ListPaid returns PAID orders created inside w, newest first.
func (r *OrderRepository) ListPaid(ctx context.Context, w window.Range) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listPaidOrdersSQL, w.From, w.To)
	if err != nil {
		return nil, errors.Wrap(err, "list paid orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list paid orders")
	}
	if err := loadItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Totals aggregates orders created inside w.
func (r *OrderRepository) Totals(ctx context.Context, w window.Range) (order.Totals, error) {
	var t order.Totals
	if err := r.pool.QueryRow(ctx, orderTotalsSQL, w.From, w.To).Scan(
		&t.PaidCount, &t.PaidRevenue, &t.RefundedCount,
	); err != nil {
		return order.Totals{}, errors.Wrap(err, "order totals")
	}
	return t, nil
}

// Insert stores an order with its items. Checkout owns order creation; this
// is used by seeding and tests.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.Total, string(o.PaymentStatus), o.CustomerEmail, o.WorkerID, o.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "insert order %q", o.ID)
		}
		for i, it := range o.Items {
			categories := it.Categories
			if categories == nil {
				categories = []string{}
			}
			if _, err := tx.Exec(ctx, insertOrderItemSQL,
				o.ID, i, it.ProductID, it.Name, it.Price, it.Quantity, categories,
			); err != nil {
				return errors.Wrapf(err, "insert item %d of order %q", i, o.ID)
			}
		}
		return nil
	})
}

func getOrder(ctx context.Context, q querier, query, id string) (*order.Order, error) {
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	orders := []order.Order{o}
	if err := loadItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func decrementOrderTotal(ctx context.Context, q querier, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := q.QueryRow(ctx, decrementOrderTotalSQL, id, amount).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, order.ErrNotFound
		}
		return decimal.Zero, errors.Wrapf(err, "decrement total of order %q", id)
	}
	return total, nil
}

// loadItems attaches items to orders in place.
func loadItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = i
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Price, &it.Quantity, &it.Categories); err != nil {
			return errors.Wrap(err, "scan order item")
		}
		i := byID[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "list order items")
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.Total, &status, &o.CustomerEmail, &o.WorkerID, &o.CreatedAt)
	o.PaymentStatus = order.PaymentStatus(status)
	return o, err
}
