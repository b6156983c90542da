package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/accounting"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/auth"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/coupon"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/payout"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/handler"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/storage/postgres"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/storage/redis"
	"github.com/MediVetPro/markettech-tienda-sub003/pkg/health"
	"github.com/MediVetPro/markettech-tienda-sub003/pkg/httpmiddleware"
)

const serviceName = "tienda-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Bool("redis", cfg.Redis.Enabled()),
	)

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Optional Redis for the shared rate snapshot and rate limit counters.
	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewClient(ctx, cfg.Redis.ConnURL())
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", health.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h, err := newHandler(pool, rdb, m, cfg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	rateLimit := httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	}
	if rdb != nil {
		store, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
			Prefix:   "tienda:ratelimit",
			MaxRetry: 3,
		})
		if err != nil {
			return errors.Wrap(err, "create rate limit store")
		}
		rateLimit.Store = store
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderAPIKey},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(rateLimit),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHandler builds repositories and domain services. rdb may be nil.
func newHandler(pool *pgxpool.Pool, rdb *goredis.Client, m *app.Telemetry, cfg *Config) (*handler.Handler, error) {
	tp, mp := m.TracerProvider(), m.MeterProvider()

	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	payoutRepo := postgres.NewPayoutRepository(pool)
	rateRepo := postgres.NewRateRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Rates: postgres, optionally behind a shared redis snapshot, behind an
	// in-process TTL cache. Admin writes drop the redis copy first.
	var (
		rates  rate.Loader = rate.NewStoreLoader(rateRepo)
		caches []rate.Invalidator
	)
	if rdb != nil {
		shared := redis.NewRateCache(rdb, rates, cfg.RateCache.TTL)
		rates = shared
		caches = append(caches, shared)
	}
	local := rate.NewCache(rates, cfg.RateCache.TTL)
	caches = append(caches, local)

	engine, err := coupon.NewEngine(couponRepo, local, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create coupon engine")
	}
	ledger, err := payout.NewLedger(payoutRepo, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create payout ledger")
	}
	settler, err := payout.NewSettler(payoutRepo, ledger, local, tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create settler")
	}

	return handler.New(handler.Deps{
		Coupons: engine,
		Settler: settler,
		Ledger:  ledger,
		Reports: accounting.NewAggregator(orderRepo, local, tp),
		Rates:   rate.NewAdmin(rateRepo, local, caches...),
		Auth:    auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
	}, handler.Config{
		OpTimeout:     cfg.OpTimeout,
		DefaultPeriod: window.Period(cfg.ReportPeriod),
	}), nil
}
