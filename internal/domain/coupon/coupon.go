package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage takes Value percent of the order amount, capped by MaxDiscount.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixedAmount takes Value off the order amount.
	TypeFixedAmount Type = "FIXED_AMOUNT"
	// TypeFreeShipping takes the configured shipping offset off the order amount.
	TypeFreeShipping Type = "FREE_SHIPPING"
)

// Valid reports whether t is a known discount type.
func (t Type) Valid() bool {
	switch t {
	case TypePercentage, TypeFixedAmount, TypeFreeShipping:
		return true
	default:
		return false
	}
}

// Rejections, in the order Validate checks them.
var (
	ErrNotFound           = reject.New("coupon_not_found", "coupon code not found")
	ErrInactive           = reject.New("coupon_inactive", "this coupon is not active")
	ErrNotYetValid        = reject.New("coupon_not_yet_valid", "this coupon is not valid yet")
	ErrExpired            = reject.New("coupon_expired", "this coupon has expired")
	ErrUsageLimitExceeded = reject.New("coupon_usage_limit_exceeded", "this coupon has reached its usage limit")
	ErrUserLimitExceeded  = reject.New("coupon_user_limit_exceeded", "you have already used this coupon the maximum number of times")
	ErrMinOrderNotMet     = reject.New("coupon_min_order_not_met", "order amount is below this coupon's minimum")
	ErrCategoryMismatch   = reject.New("coupon_category_mismatch", "this coupon does not apply to the items in your order")
	ErrAlreadyApplied     = reject.New("coupon_already_applied", "this coupon was already applied to this order")
)

// Coupon is an admin-managed discount rule. Settlement only reads it and
// increments UsageCount.
type Coupon struct {
	ID    string
	Code  string
	Type  Type
	Value decimal.Decimal
	// MaxDiscount caps PERCENTAGE discounts when valid.
	MaxDiscount    decimal.NullDecimal
	MinOrderAmount decimal.NullDecimal
	// UsageLimit and UserLimit of 0 mean unlimited.
	UsageLimit int
	UserLimit  int
	UsageCount int
	// Category restricts eligibility to orders with at least one item
	// tagged with it. Empty means any item.
	Category   string
	ValidFrom  time.Time
	ValidUntil *time.Time
	IsActive   bool
}

// Usage records one application of a coupon to an order by a user. The
// (CouponID, UserID, OrderID) triple is unique at the storage layer.
type Usage struct {
	ID        string
	CouponID  string
	UserID    string
	OrderID   string
	Discount  decimal.Decimal
	CreatedAt time.Time
}

// Item is a line item as seen by category matching and discounting.
type Item struct {
	ProductID  string
	Price      decimal.Decimal
	Quantity   int
	Categories []string
}

// ItemsFromOrder converts order lines to coupon items.
func ItemsFromOrder(items []order.Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{
			ProductID:  it.ProductID,
			Price:      it.Price,
			Quantity:   it.Quantity,
			Categories: it.Categories,
		}
	}
	return out
}

// NormalizeCode returns the canonical form of a coupon code. Codes are
// unique case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides coupon reads outside a transaction.
type Repository interface {
	// FindByCode returns ErrNotFound when no coupon matches code.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	CountUserUsages(ctx context.Context, couponID, userID string) (int, error)
}

// Tx is the set of operations performed atomically by Apply.
type Tx interface {
	// LockByCode reads the coupon row for update. Returns ErrNotFound.
	LockByCode(ctx context.Context, code string) (*Coupon, error)
	// LockOrder reads the order row for update. Returns order.ErrNotFound.
	LockOrder(ctx context.Context, orderID string) (*order.Order, error)
	CountUserUsages(ctx context.Context, couponID, userID string) (int, error)
	UsageExists(ctx context.Context, couponID, userID, orderID string) (bool, error)
	// InsertUsage returns ErrAlreadyApplied when the triple already exists.
	InsertUsage(ctx context.Context, u *Usage) error
	// IncrementUsage returns ErrUsageLimitExceeded when the counter is
	// already at the coupon's limit.
	IncrementUsage(ctx context.Context, couponID string) error
	// DecrementOrderTotal subtracts amount from the order total and returns
	// the new total.
	DecrementOrderTotal(ctx context.Context, orderID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Store is a Repository that can run a function in one transaction. The
// transaction is rolled back when fn returns an error.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
