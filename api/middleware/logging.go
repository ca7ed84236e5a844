package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// responseMeter records what the handler wrote.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeter) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(b)
	m.bytes += n
	return n, err
}

// Logging writes one access line per request. Error statuses log at warn;
// liveness probes at debug.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			meter := &responseMeter{ResponseWriter: w}
			next.ServeHTTP(meter, r)

			if meter.status == 0 {
				meter.status = http.StatusOK
			}
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      meter.status,
				"bytes":       meter.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case meter.status >= http.StatusBadRequest:
				logg.Warn(ctx, "http.request")
			case r.URL.Path == "/health/live":
				logg.Debug(ctx, "http.request")
			default:
				logg.Info(ctx, "http.request")
			}
		})
	}
}
