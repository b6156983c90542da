package rate

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Admin applies rate changes and drops every cached snapshot afterwards.
type Admin struct {
	store  Store
	loader Loader
	caches []Invalidator
}

// NewAdmin creates an Admin. Caches are invalidated in the given order,
// outermost last.
func NewAdmin(store Store, loader Loader, caches ...Invalidator) *Admin {
	return &Admin{store: store, loader: loader, caches: caches}
}

// Current returns the snapshot seen by business operations.
func (a *Admin) Current(ctx context.Context) (Config, error) {
	return a.loader.Load(ctx)
}

// Update validates and stores settings, then invalidates caches.
func (a *Admin) Update(ctx context.Context, settings map[Key]decimal.Decimal) (Config, error) {
	if len(settings) == 0 {
		return Config{}, ErrEmptyUpdate
	}
	for k, v := range settings {
		if err := ValidateSetting(k, v); err != nil {
			return Config{}, err
		}
	}
	if err := a.store.PutSettings(ctx, settings); err != nil {
		return Config{}, errors.Wrap(err, "put rate settings")
	}
	for _, c := range a.caches {
		if err := c.Invalidate(ctx); err != nil {
			return Config{}, errors.Wrap(err, "invalidate rate cache")
		}
	}
	return a.loader.Load(ctx)
}
