package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/auth"
)

// HeaderAPIKey carries the caller's raw API key.
const HeaderAPIKey = "api_key"

type apiKeyCtxKey struct{}

// APIKeyFromContext returns the key authenticated for the request.
func APIKeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// authenticated rejects requests without a valid API key, or without scope
// when scope is set.
func (h *Handler) authenticated(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.Auth.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
				return
			}
			h.internalError(w, r, err)
			return
		}
		if scope != "" && !info.HasScope(scope) {
			writeError(w, http.StatusForbidden, "forbidden", "api key lacks the "+scope+" scope")
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, info)
		ctx = zctx.With(ctx, zap.String("api_key_id", info.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
