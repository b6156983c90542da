package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/auth"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/coupon"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/order"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		adminKey     string
		apiKeyPepper string
		demoOrders   bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or TIENDA_SEED_API_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "API key with the admin scope to seed (optional)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or TIENDA_API_KEY_PEPPER env)")
	flag.BoolVar(&demoOrders, "demo-orders", true, "insert demo orders")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("TIENDA_SEED_API_KEY")
	}
	if apiKey == "" {
		lg.Fatal("API key is required: set --api-key or TIENDA_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("TIENDA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s := seeder{lg: lg, pepper: []byte(apiKeyPepper), now: time.Now().UTC()}
	if err := s.run(ctx, databaseURL, apiKey, adminKey, demoOrders); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

type seeder struct {
	lg     *zap.Logger
	pepper []byte
	now    time.Time
}

func (s seeder) run(ctx context.Context, databaseURL, apiKey, adminKey string, demoOrders bool) error {
	s.lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := s.seedRates(ctx, pool); err != nil {
		return errors.Wrap(err, "seed rates")
	}
	if err := s.seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if demoOrders {
		if err := s.seedOrders(ctx, pool); err != nil {
			return errors.Wrap(err, "seed orders")
		}
	}

	keys := postgres.NewAPIKeyRepository(pool)
	if err := s.seedAPIKey(ctx, keys, "default", "Default key", apiKey); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	if adminKey != "" {
		if err := s.seedAPIKey(ctx, keys, "admin", "Admin key", adminKey, auth.ScopeAdmin); err != nil {
			return errors.Wrap(err, "seed admin key")
		}
	}
	return nil
}

// seedRates stores the defaults only when no setting exists yet, so
// re-seeding never reverts an admin change.
func (s seeder) seedRates(ctx context.Context, pool *pgxpool.Pool) error {
	repo := postgres.NewRateRepository(pool)
	existing, err := repo.ListSettings(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.lg.Info("Rates already set", zap.Int("count", len(existing)))
		return nil
	}
	if err := repo.PutSettings(ctx, rate.Defaults().Settings()); err != nil {
		return err
	}
	s.lg.Info("Stored default rates", zap.Int("count", len(rate.Keys)))
	return nil
}

func (s seeder) seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	repo := postgres.NewCouponRepository(pool)
	validFrom := s.now.AddDate(0, -1, 0)
	summerEnd := s.now.AddDate(0, 3, 0)

	coupons := []coupon.Coupon{
		{
			ID:          "00000000-0000-4000-8000-000000000001",
			Code:        "BIENVENIDO10",
			Type:        coupon.TypePercentage,
			Value:       decimal.NewFromInt(10),
			MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(50)),
			UserLimit:   1,
			ValidFrom:   validFrom,
			IsActive:    true,
		},
		{
			ID:             "00000000-0000-4000-8000-000000000002",
			Code:           "DESCONTO25",
			Type:           coupon.TypeFixedAmount,
			Value:          decimal.NewFromInt(25),
			MinOrderAmount: decimal.NewNullDecimal(decimal.NewFromInt(100)),
			UsageLimit:     100,
			ValidFrom:      validFrom,
			ValidUntil:     &summerEnd,
			IsActive:       true,
		},
		{
			ID:        "00000000-0000-4000-8000-000000000003",
			Code:      "FRETEGRATIS",
			Type:      coupon.TypeFreeShipping,
			ValidFrom: validFrom,
			IsActive:  true,
		},
		{
			ID:         "00000000-0000-4000-8000-000000000004",
			Code:       "AUDIO15",
			Type:       coupon.TypePercentage,
			Value:      decimal.NewFromInt(15),
			Category:   "audio",
			UsageLimit: 50,
			UserLimit:  2,
			ValidFrom:  validFrom,
			IsActive:   true,
		},
	}

	for i := range coupons {
		c := &coupons[i]
		if err := repo.Upsert(ctx, c); err != nil {
			return err
		}
		s.lg.Info("Upserted coupon", zap.String("code", c.Code), zap.String("type", string(c.Type)))
	}
	return nil
}

func (s seeder) seedOrders(ctx context.Context, pool *pgxpool.Pool) error {
	repo := postgres.NewOrderRepository(pool)
	headphones := order.Item{ProductID: "prod-headphones", Name: "Fone Bluetooth", Price: decimal.NewFromInt(250), Quantity: 1, Categories: []string{"audio"}}
	cable := order.Item{ProductID: "prod-cable", Name: "Cabo USB-C", Price: decimal.RequireFromString("24.90"), Quantity: 2, Categories: []string{"accessories"}}
	phone := order.Item{ProductID: "prod-phone", Name: "Smartphone", Price: decimal.NewFromInt(1000), Quantity: 1, Categories: []string{"phones"}}

	orders := []order.Order{
		{ID: "demo-pending-1", PaymentStatus: order.StatusPending, CustomerEmail: "ana@example.com", Items: []order.Item{headphones, cable}},
		{ID: "demo-pending-2", PaymentStatus: order.StatusPending, CustomerEmail: "bruno@example.com", Items: []order.Item{phone}},
		{ID: "demo-paid-1", PaymentStatus: order.StatusPaid, CustomerEmail: "carla@example.com", WorkerID: "worker-1", Items: []order.Item{phone}},
		{ID: "demo-paid-2", PaymentStatus: order.StatusPaid, CustomerEmail: "diego@example.com", WorkerID: "worker-2", Items: []order.Item{headphones}},
		{ID: "demo-paid-3", PaymentStatus: order.StatusPaid, CustomerEmail: "ana@example.com", Items: []order.Item{cable}},
		{ID: "demo-refunded-1", PaymentStatus: order.StatusRefunded, CustomerEmail: "bruno@example.com", Items: []order.Item{headphones}},
	}

	for i := range orders {
		o := &orders[i]
		_, err := repo.Get(ctx, o.ID)
		switch {
		case err == nil:
			s.lg.Info("Order exists", zap.String("id", o.ID))
			continue
		case !errors.Is(err, order.ErrNotFound):
			return err
		}

		o.Total = decimal.Zero
		for _, it := range o.Items {
			o.Total = o.Total.Add(it.LineTotal())
		}
		o.CreatedAt = s.now.Add(-time.Duration(len(orders)-i) * 24 * time.Hour)
		if err := repo.Insert(ctx, o); err != nil {
			return err
		}
		s.lg.Info("Inserted order",
			zap.String("id", o.ID),
			zap.String("status", string(o.PaymentStatus)),
			zap.Stringer("total", o.Total),
		)
	}
	return nil
}

func (s seeder) seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, id, name, key string, scopes ...string) error {
	if err := repo.Insert(ctx, &auth.APIKeyInfo{
		ID:      id,
		KeyHash: auth.Hash(s.pepper, key),
		Name:    name,
		Scopes:  scopes,
	}); err != nil {
		return err
	}
	s.lg.Info("Upserted API key", zap.String("id", id), zap.Strings("scopes", scopes))
	return nil
}
