package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
)

// PaymentStatus is the checkout-owned payment state of an order.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusPaid     PaymentStatus = "PAID"
	StatusRefunded PaymentStatus = "REFUNDED"
	StatusFailed   PaymentStatus = "FAILED"
)

var (
	ErrNotFound   = reject.New("order_not_found", "order not found")
	ErrNotPayable = reject.New("order_not_payable", "order has not been paid")
	ErrNotPending = reject.New("order_not_pending", "order is no longer pending")
)

// Order is the checkout subsystem's order record as seen by settlement.
// Total is only ever decremented here, by a coupon applied while PENDING.
type Order struct {
	ID            string
	Total         decimal.Decimal
	PaymentStatus PaymentStatus
	CustomerEmail string
	// WorkerID identifies the worker who fulfilled the order, if assigned.
	WorkerID  string
	Items     []Item
	CreatedAt time.Time
}

// Item is an order line. Categories are the catalog tags of the product,
// captured at checkout.
type Item struct {
	ProductID  string
	Name       string
	Price      decimal.Decimal
	Quantity   int
	Categories []string
}

// LineTotal returns price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Totals aggregates orders of a window by payment status.
type Totals struct {
	PaidCount     int
	PaidRevenue   decimal.Decimal
	RefundedCount int
}

// Reader exposes the reads settlement and reporting need from checkout.
type Reader interface {
	// Get returns ErrNotFound when no order has the given id.
	Get(ctx context.Context, id string) (*Order, error)
	// ListPaid returns PAID orders created inside r, with their items.
	ListPaid(ctx context.Context, r window.Range) ([]Order, error)
	// Totals aggregates orders created inside r.
	Totals(ctx context.Context, r window.Range) (Totals, error)
}
