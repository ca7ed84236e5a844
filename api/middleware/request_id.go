package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

const (
	requestIDHeader  = "X-Request-Id"
	cloudTraceHeader = "X-Cloud-Trace-Context"
	maxRequestIDLen  = 128
)

// RequestID echoes the caller's X-Request-Id (or mints one) and binds it to
// the request logger. Behind a Google load balancer the trace id is taken from
// X-Cloud-Trace-Context so logs line up with Cloud Trace.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := logg.WithRequestID(r.Context(), id)
			if trace := cloudTraceID(r.Header.Get(cloudTraceHeader)); trace != "" {
				ctx = logg.WithTraceID(ctx, trace)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// cloudTraceID extracts TRACE_ID from "TRACE_ID/SPAN_ID;o=1".
func cloudTraceID(header string) string {
	trace, _, _ := strings.Cut(header, "/")
	trace, _, _ = strings.Cut(trace, ";")
	return strings.TrimSpace(trace)
}
