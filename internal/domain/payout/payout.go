// Package payout records what each platform role is owed per order and
// tracks those rows through their lifecycle.
package payout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/commission"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
)

// Status is the lifecycle state of a payout. PAID and FAILED are terminal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

var (
	ErrNotFound       = reject.New("payout_not_found", "payout not found")
	ErrFinalized      = reject.New("payout_finalized", "payout is already paid or failed")
	ErrReasonRequired = reject.New("failure_reason_required", "a failure reason is required")
	ErrAlreadySettled = reject.New("order_already_settled", "order has already been settled")
	ErrUnknownRole    = reject.New("unknown_role", "unknown recipient role")
)

// Payout is one ledger row: the amount owed to a role for an order.
type Payout struct {
	ID      string
	OrderID string
	Role    commission.Role
	// RecipientID names the concrete recipient when the role has one (the
	// fulfilling worker). Empty for platform-held roles.
	RecipientID string
	Amount      decimal.Decimal
	// Commission is the order's profit pool the share was taken from.
	Commission    decimal.Decimal
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	PaidAt        *time.Time
}

// Record marks an order as settled, whether or not any share was large
// enough to produce a payout row. It keeps the rate snapshot the split was
// computed with.
type Record struct {
	OrderID    string
	OrderTotal decimal.Decimal
	Profit     decimal.Decimal
	Margin     decimal.Decimal
	Rates      rate.Config
	SettledAt  time.Time
}

// Recipient selects payouts for a summary. An empty ID matches every
// recipient of the role.
type Recipient struct {
	Role commission.Role
	ID   string
}

// Summary aggregates a recipient's payouts created inside a window. Failed
// payouts are counted but excluded from the totals.
type Summary struct {
	Recipient       Recipient
	Range           window.Range
	TotalEarnings   decimal.Decimal
	TotalCommission decimal.Decimal
	PendingCount    int
	PaidCount       int
	FailedCount     int
}

// Repository provides payout reads and status transitions.
type Repository interface {
	// Get returns ErrNotFound when no payout has the given id.
	Get(ctx context.Context, id string) (*Payout, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payout, error)
	// Transition moves a PENDING payout to status and returns the updated
	// row. It returns ErrNotFound or ErrFinalized when it cannot.
	Transition(ctx context.Context, id string, status Status, reason string, at time.Time) (*Payout, error)
	Summary(ctx context.Context, r Recipient, w window.Range) (*Summary, error)
}

// Tx is the set of operations settlement performs atomically.
type Tx interface {
	// LockOrder reads the order row for update. Returns order.ErrNotFound.
	LockOrder(ctx context.Context, orderID string) (*order.Order, error)
	// IsSettled reports whether a settlement record exists for the order.
	IsSettled(ctx context.Context, orderID string) (bool, error)
	// InsertRecord returns ErrAlreadySettled when the order already has one.
	InsertRecord(ctx context.Context, rec Record) error
	// InsertPayouts returns ErrAlreadySettled when a row for the same
	// (order, role) exists.
	InsertPayouts(ctx context.Context, payouts []Payout) error
}

// Store is a Repository that can run a function in one transaction. The
// transaction is rolled back when fn returns an error.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
