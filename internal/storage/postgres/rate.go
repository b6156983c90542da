package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
)

const (
	listRateSettingsSQL = `SELECT key, value FROM rate_settings`

	putRateSettingSQL = `INSERT INTO rate_settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

var _ rate.Store = (*RateRepository)(nil)

// RateRepository persists rate overrides. Keys without a row fall back to
// the defaults.
type RateRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRateRepository returns a RateRepository that uses the given pool.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool, now: time.Now}
}

// ListSettings returns every stored override.
func (r *RateRepository) ListSettings(ctx context.Context) (map[rate.Key]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, listRateSettingsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list rate settings")
	}
	defer rows.Close()

	out := make(map[rate.Key]decimal.Decimal)
	for rows.Next() {
		var (
			key   string
			value decimal.Decimal
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "scan rate setting")
		}
		out[rate.Key(key)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list rate settings")
	}
	return out, nil
}

// PutSettings upserts all settings in one transaction.
func (r *RateRepository) PutSettings(ctx context.Context, settings map[rate.Key]decimal.Decimal) error {
	at := r.now()
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for k, v := range settings {
			if _, err := tx.Exec(ctx, putRateSettingSQL, string(k), v, at); err != nil {
				return errors.Wrapf(err, "put rate setting %q", k)
			}
		}
		return nil
	})
}
