// Package commission splits a settled order total into the profit pool and
// its per-role shares.
//
// The owner, worker and store percentages are not normalized: when they sum
// to less than 100 the rest of the pool stays with the platform as margin.
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/money"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
)

// Role identifies a profit-pool recipient.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleWorker Role = "WORKER"
	RoleStore  Role = "STORE"
)

// Roles lists the recipients in settlement order.
var Roles = []Role{RoleOwner, RoleWorker, RoleStore}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleWorker, RoleStore:
		return true
	default:
		return false
	}
}

// Split is the distribution of one order total. All amounts are rounded to
// the currency minor unit.
type Split struct {
	OrderTotal decimal.Decimal
	Profit     decimal.Decimal
	Owner      decimal.Decimal
	Worker     decimal.Decimal
	Store      decimal.Decimal
	// SellerResidual is what remains with the product's seller. It is paid
	// through the base order price, not as a payout row.
	SellerResidual decimal.Decimal
}

// Share returns the amount assigned to role.
func (s Split) Share(role Role) decimal.Decimal {
	switch role {
	case RoleOwner:
		return s.Owner
	case RoleWorker:
		return s.Worker
	case RoleStore:
		return s.Store
	default:
		return decimal.Zero
	}
}

// Distributed returns the sum of the role shares.
func (s Split) Distributed() decimal.Decimal {
	return s.Owner.Add(s.Worker).Add(s.Store)
}

// Margin returns the part of the profit pool no role receives.
func (s Split) Margin() decimal.Decimal {
	return s.Profit.Sub(s.Distributed())
}

// Compute splits orderTotal using rates.
//
// Each share is taken from the unrounded pool and rounded half-up. When
// rounding pushes the shares above the rounded pool, the excess (never more
// than a few minor units) is taken back from the last non-zero share so the
// shares never exceed the pool.
func Compute(orderTotal decimal.Decimal, rates rate.Config) Split {
	total := money.Round(orderTotal)
	if total.IsNegative() {
		total = decimal.Zero
	}

	pool := money.Clamp(money.Percent(total, rates.CommissionTotal), decimal.Zero, total)
	profit := money.Round(pool)

	shares := []decimal.Decimal{
		money.Round(money.Percent(pool, nonNegative(rates.Owner))),
		money.Round(money.Percent(pool, nonNegative(rates.Worker))),
		money.Round(money.Percent(pool, nonNegative(rates.Store))),
	}

	sum := shares[0].Add(shares[1]).Add(shares[2])
	for i := len(shares) - 1; i >= 0 && sum.GreaterThan(profit); i-- {
		excess := sum.Sub(profit)
		take := money.Min(excess, shares[i])
		shares[i] = shares[i].Sub(take)
		sum = sum.Sub(take)
	}

	return Split{
		OrderTotal:     total,
		Profit:         profit,
		Owner:          shares[0],
		Worker:         shares[1],
		Store:          shares[2],
		SellerResidual: total.Sub(profit),
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
