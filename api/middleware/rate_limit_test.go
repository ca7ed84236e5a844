package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
)

type countingLimiter struct {
	hits  map[string]int
	limit int
	err   error
	keys  []string
}

func (c *countingLimiter) Allow(_ context.Context, key string) (bool, error) {
	c.keys = append(c.keys, key)
	if c.err != nil {
		return false, c.err
	}
	c.hits[key]++
	return c.hits[key] <= c.limit, nil
}

func statusOK() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitPerClient(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}, limit: 1}
	handler := RateLimit(limiter, " Payments-Status ", nil)(statusOK())

	send := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/status", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		if mutate != nil {
			mutate(req)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send(nil).Code)
	blocked := send(nil)
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(blocked.Body.Bytes(), &body))
	require.Equal(t, string(pkgerrors.CodeRateLimit), body.Error.Code)

	rec := send(func(r *http.Request) { r.Header.Set("X-Forwarded-For", "garbage, 9.9.9.9, 10.0.0.1") })
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "payments-status:9.9.9.9", limiter.keys[len(limiter.keys)-1])

	send(func(r *http.Request) { r.Header.Set("X-Real-IP", "::ffff:8.8.8.8") })
	require.Equal(t, "payments-status:8.8.8.8", limiter.keys[len(limiter.keys)-1])
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}, err: errors.New("redis down")}
	rec := httptest.NewRecorder()
	RateLimit(limiter, "", nil)(statusOK()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "api:192.0.2.1", limiter.keys[0])
}

func TestRateLimitWithoutLimiter(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimit(nil, "x", nil)(statusOK()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
