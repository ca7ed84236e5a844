package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/angelmondragon/hydrofarm-backend/api/responses"
	"github.com/angelmondragon/hydrofarm-backend/internal/ratelimit"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// RateLimit applies limiter per scope and client address. Limiter errors are
// logged and the request proceeds.
func RateLimit(limiter ratelimit.Limiter, scope string, logg *logger.Logger) func(http.Handler) http.Handler {
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		scope = "api"
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			addr := clientAddr(r)

			ok, err := limiter.Allow(ctx, scope+":"+addr)
			switch {
			case err != nil:
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"scope": scope, "error": err.Error()}), "rate_limit.unavailable")
				}
			case !ok:
				if logg != nil {
					logg.Info(logg.WithFields(ctx, map[string]any{"scope": scope, "client": addr}), "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr prefers the first valid address in X-Forwarded-For, then
// X-Real-IP, then the connection's remote address.
func clientAddr(r *http.Request) string {
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return ip.Unmap().String()
		}
	}
	if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return ip.Unmap().String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
