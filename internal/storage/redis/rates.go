package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
)

// DefaultRatesKey is the hash holding the shared rate snapshot.
const DefaultRatesKey = "tienda:rates"

var (
	_ rate.Loader      = (*RateCache)(nil)
	_ rate.Invalidator = (*RateCache)(nil)
)

// RateCache is a read-through cache of the rate snapshot, shared across
// replicas so that an admin update is seen by all of them on invalidation.
// Redis failures degrade to reading through next.
type RateCache struct {
	client redis.UniversalClient
	next   rate.Loader
	key    string
	ttl    time.Duration
}

// NewRateCache creates a RateCache storing snapshots for ttl.
func NewRateCache(client redis.UniversalClient, next rate.Loader, ttl time.Duration) *RateCache {
	return &RateCache{
		client: client,
		next:   next,
		key:    DefaultRatesKey,
		ttl:    ttl,
	}
}

// Load returns the cached snapshot, loading and storing it on a miss.
func (c *RateCache) Load(ctx context.Context) (rate.Config, error) {
	lg := zctx.From(ctx)

	cached, err := c.client.HGetAll(ctx, c.key).Result()
	switch {
	case err != nil:
		lg.Warn("Read rate snapshot from redis", zap.Error(err))
	case len(cached) > 0:
		cfg, err := decode(cached)
		if err == nil {
			return cfg, nil
		}
		lg.Warn("Decode cached rate snapshot", zap.Error(err))
	}

	cfg, err := c.next.Load(ctx)
	if err != nil {
		return rate.Config{}, err
	}

	if err := c.store(ctx, cfg); err != nil {
		lg.Warn("Store rate snapshot in redis", zap.Error(err))
	}
	return cfg, nil
}

// Invalidate drops the shared snapshot.
func (c *RateCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return errors.Wrap(err, "delete rate snapshot")
	}
	return nil
}

func (c *RateCache) store(ctx context.Context, cfg rate.Config) error {
	fields := make(map[string]any, len(rate.Keys))
	for k, v := range cfg.Settings() {
		fields[string(k)] = v.String()
	}
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, c.key)
		p.HSet(ctx, c.key, fields)
		p.Expire(ctx, c.key, c.ttl)
		return nil
	})
	return err
}

func decode(fields map[string]string) (rate.Config, error) {
	settings := make(map[rate.Key]decimal.Decimal, len(fields))
	for _, k := range rate.Keys {
		raw, ok := fields[string(k)]
		if !ok {
			return rate.Config{}, errors.Errorf("missing field %q", k)
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return rate.Config{}, errors.Wrapf(err, "parse %q", k)
		}
		settings[k] = v
	}
	return rate.FromSettings(settings), nil
}
