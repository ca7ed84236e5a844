package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	webhookguard "github.com/angelmondragon/hydrofarm-backend/internal/webhooks"
)

const testSecret = "whsec_test"

type stripeFixture struct {
	svc     *recordingStripeService
	handler http.HandlerFunc
}

func newStripeFixture(t *testing.T) *stripeFixture {
	t.Helper()
	guard, err := webhookguard.NewDeliveryGuard(newMemoryKeys(), time.Minute, "stripe-webhook")
	require.NoError(t, err)
	svc := &recordingStripeService{}
	return &stripeFixture{
		svc:     svc,
		handler: StripeWebhook(svc, secretVerifier(testSecret), guard, nil),
	}
}

func (f *stripeFixture) deliver(payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookProcessesEventOnce(t *testing.T) {
	f := newStripeFixture(t)
	payload, header := signedCheckoutEvent(t)

	for i := 0; i < 2; i++ {
		rec := f.deliver(payload, header)
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d: %s", i, rec.Body.String())
	}
	require.Equal(t, 1, f.svc.calls)
	require.Equal(t, stripe.EventType("checkout.session.completed"), f.svc.lastType)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	f := newStripeFixture(t)
	payload, _ := signedCheckoutEvent(t)

	rec := f.deliver(payload, "t=1,v1=invalid")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.deliver(payload, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.svc.calls)
}

func TestStripeWebhookRejectsOversizedPayload(t *testing.T) {
	f := newStripeFixture(t)
	payload := []byte(`{"pad":"` + strings.Repeat("x", maxStripePayload) + `"}`)
	rec := f.deliver(payload, "t=1,v1=sig")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.svc.calls)
}

func TestStripeWebhookReleasesEventOnFailure(t *testing.T) {
	f := newStripeFixture(t)
	f.svc.err = errors.New("db down")
	payload, header := signedCheckoutEvent(t)

	require.Equal(t, http.StatusInternalServerError, f.deliver(payload, header).Code)

	f.svc.err = nil
	require.Equal(t, http.StatusOK, f.deliver(payload, header).Code)
	require.Equal(t, 2, f.svc.calls, "the retry must reach the service")
}

func TestStripeWebhookUnconfigured(t *testing.T) {
	handler := StripeWebhook(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}")))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func signedCheckoutEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + uuid.NewString(),
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{"id": "cs_test", "object": "checkout.session", "payment_status": "paid"},
		},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

type secretVerifier string

func (s secretVerifier) VerifyEvent(payload []byte, header string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, header, string(s))
}

type recordingStripeService struct {
	calls    int
	lastType stripe.EventType
	err      error
}

func (r *recordingStripeService) HandleEvent(_ context.Context, event *stripe.Event) error {
	r.calls++
	r.lastType = event.Type
	return r.err
}

type memoryKeys struct {
	mu   sync.Mutex
	data map[string]struct{}
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{data: map[string]struct{}{}}
}

func (m *memoryKeys) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = struct{}{}
	return true, nil
}

func (m *memoryKeys) IdempotencyKey(scope, id string) string {
	return "hf:idempotency:" + scope + ":" + id
}

func (m *memoryKeys) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
