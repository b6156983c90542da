// Package rate provides read access to the named percentage settings that
// drive commission splitting and coupon defaults.
//
// Business logic never reads settings from ambient state: a Config value is
// loaded once per operation and passed down explicitly. Settlement uses the
// snapshot it loaded, so later rate changes never affect settled payouts.
package rate

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/money"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
)

// Key names a rate setting row.
type Key string

const (
	// KeyCommissionTotal is the share of the order total treated as the profit pool.
	KeyCommissionTotal Key = "commission_total_percentage"
	// KeyCommissionOwner is the platform owner's share of the profit pool.
	KeyCommissionOwner Key = "commission_owner_percentage"
	// KeyCommissionWorker is the fulfilling worker's share of the profit pool.
	KeyCommissionWorker Key = "commission_worker_percentage"
	// KeyCommissionStore is the platform store fund's share of the profit pool.
	KeyCommissionStore Key = "commission_store_percentage"
	// KeyFreeShipping is the amount a FREE_SHIPPING coupon takes off an order.
	KeyFreeShipping Key = "coupon_free_shipping_amount"
)

// Keys lists every known setting in display order.
var Keys = []Key{
	KeyCommissionTotal,
	KeyCommissionOwner,
	KeyCommissionWorker,
	KeyCommissionStore,
	KeyFreeShipping,
}

var (
	ErrUnknownKey  = reject.New("unknown_rate_key", "unknown rate setting")
	ErrOutOfRange  = reject.New("rate_out_of_range", "rate value is out of range")
	ErrEmptyUpdate = reject.New("empty_rate_update", "no rate settings provided")
)

var hundred = decimal.NewFromInt(100)

// Config is a point-in-time snapshot of all rate settings.
//
// The owner, worker and store percentages are shares of the profit pool and
// are not required to sum to 100; the remainder is platform margin.
type Config struct {
	CommissionTotal decimal.Decimal
	Owner           decimal.Decimal
	Worker          decimal.Decimal
	Store           decimal.Decimal
	FreeShipping    decimal.Decimal
}

// Defaults returns the values used for settings that have no stored row.
func Defaults() Config {
	return Config{
		CommissionTotal: decimal.NewFromInt(50),
		Owner:           decimal.NewFromInt(20),
		Worker:          decimal.NewFromInt(20),
		Store:           decimal.NewFromInt(10),
		FreeShipping:    decimal.NewFromInt(10),
	}
}

// FromSettings builds a Config from stored rows, falling back to Defaults
// for missing keys. Unknown keys are ignored.
func FromSettings(settings map[Key]decimal.Decimal) Config {
	cfg := Defaults()
	for k, v := range settings {
		switch k {
		case KeyCommissionTotal:
			cfg.CommissionTotal = v
		case KeyCommissionOwner:
			cfg.Owner = v
		case KeyCommissionWorker:
			cfg.Worker = v
		case KeyCommissionStore:
			cfg.Store = v
		case KeyFreeShipping:
			cfg.FreeShipping = v
		}
	}
	return cfg
}

// Get returns the value of a single setting.
func (c Config) Get(key Key) (decimal.Decimal, bool) {
	switch key {
	case KeyCommissionTotal:
		return c.CommissionTotal, true
	case KeyCommissionOwner:
		return c.Owner, true
	case KeyCommissionWorker:
		return c.Worker, true
	case KeyCommissionStore:
		return c.Store, true
	case KeyFreeShipping:
		return c.FreeShipping, true
	default:
		return decimal.Zero, false
	}
}

// Settings returns the snapshot as key/value pairs.
func (c Config) Settings() map[Key]decimal.Decimal {
	out := make(map[Key]decimal.Decimal, len(Keys))
	for _, k := range Keys {
		v, _ := c.Get(k)
		out[k] = v
	}
	return out
}

// IsPercentage reports whether key holds a percentage in [0, 100].
func IsPercentage(key Key) bool {
	return key != KeyFreeShipping
}

// ValidateSetting checks that key is known and v is in range for it. Values
// are stored with two fractional digits, so finer values are rejected rather
// than rounded.
func ValidateSetting(key Key, v decimal.Decimal) error {
	if _, ok := Defaults().Get(key); !ok {
		return errors.Wrapf(ErrUnknownKey, "%s", key)
	}
	if v.IsNegative() || !v.Equal(money.Round(v)) {
		return errors.Wrapf(ErrOutOfRange, "%s", key)
	}
	if IsPercentage(key) && v.GreaterThan(hundred) {
		return errors.Wrapf(ErrOutOfRange, "%s", key)
	}
	return nil
}

// Store persists rate settings. Only the admin surface writes.
type Store interface {
	ListSettings(ctx context.Context) (map[Key]decimal.Decimal, error)
	PutSettings(ctx context.Context, settings map[Key]decimal.Decimal) error
}

// Loader produces a Config snapshot.
type Loader interface {
	Load(ctx context.Context) (Config, error)
}

// Invalidator drops cached snapshots after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
