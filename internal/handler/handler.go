// Package handler exposes the settlement core over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/accounting"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/auth"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/coupon"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/payout"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/window"
	"github.com/MediVetPro/markettech-tienda-sub003/pkg/httpmiddleware"
)

// Coupons validates and applies coupons.
type Coupons interface {
	Quote(ctx context.Context, req coupon.QuoteRequest) (*coupon.Quote, error)
	Apply(ctx context.Context, req coupon.ApplyRequest) (*coupon.Application, error)
}

// Settler settles paid orders.
type Settler interface {
	SettleOrder(ctx context.Context, orderID string) (*payout.Settlement, error)
}

// Ledger transitions and summarizes payouts.
type Ledger interface {
	MarkPaid(ctx context.Context, id string) (*payout.Payout, error)
	MarkFailed(ctx context.Context, id, reason string) (*payout.Payout, error)
	SummaryFor(ctx context.Context, r payout.Recipient, w window.Range) (*payout.Summary, error)
}

// Reports builds accounting reports.
type Reports interface {
	Report(ctx context.Context, r window.Range) (*accounting.Report, error)
}

// Rates reads and updates rate settings.
type Rates interface {
	Current(ctx context.Context) (rate.Config, error)
	Update(ctx context.Context, settings map[rate.Key]decimal.Decimal) (rate.Config, error)
}

// Authenticator resolves API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

var (
	_ Coupons       = (*coupon.Engine)(nil)
	_ Settler       = (*payout.Settler)(nil)
	_ Ledger        = (*payout.Ledger)(nil)
	_ Reports       = (*accounting.Aggregator)(nil)
	_ Rates         = (*rate.Admin)(nil)
	_ Authenticator = (*auth.Authenticator)(nil)
)

// Deps are the services the handler delegates to.
type Deps struct {
	Coupons Coupons
	Settler Settler
	Ledger  Ledger
	Reports Reports
	Rates   Rates
	Auth    Authenticator
}

// Config holds non-dependency handler settings.
type Config struct {
	// OpTimeout bounds each operation, transactions included. Zero disables it.
	OpTimeout time.Duration
	// DefaultPeriod is used by report and summary when no range is given.
	DefaultPeriod window.Period
}

// Handler serves the /api routes.
type Handler struct {
	Deps
	cfg Config
	now func() time.Time
}

// New creates a Handler.
func New(deps Deps, cfg Config) *Handler {
	if cfg.DefaultPeriod == "" {
		cfg.DefaultPeriod = window.PeriodMonth
	}
	return &Handler{Deps: deps, cfg: cfg, now: time.Now}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		fn      http.HandlerFunc
		scope   string
	}{
		{"POST /api/coupons/validate", h.validateCoupon, ""},
		{"POST /api/orders/{orderID}/coupon", h.applyCoupon, ""},
		{"POST /api/orders/{orderID}/settle", h.settleOrder, auth.ScopeAdmin},
		{"POST /api/payouts/{payoutID}/paid", h.markPaid, auth.ScopeAdmin},
		{"POST /api/payouts/{payoutID}/failed", h.markFailed, auth.ScopeAdmin},
		{"GET /api/payouts/summary", h.payoutSummary, ""},
		{"GET /api/accounting/report", h.accountingReport, ""},
		{"GET /api/rates", h.getRates, ""},
		{"PUT /api/rates", h.putRates, auth.ScopeAdmin},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, httpmiddleware.Route(rt.pattern, h.authenticated(rt.scope, h.bounded(rt.fn))))
	}
}

// bounded applies OpTimeout to the request context.
func (h *Handler) bounded(next http.HandlerFunc) http.HandlerFunc {
	if h.cfg.OpTimeout <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.OpTimeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}
