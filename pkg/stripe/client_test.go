package stripe

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
)

func TestNewClientChecksKeyMode(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StripeConfig
		mode    Mode
		wantErr bool
	}{
		{name: "test key", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1"}, mode: ModeTest},
		{name: "restricted live key", cfg: config.StripeConfig{APIKey: "rk_live_123", Secret: "whsec_1", Env: "live"}, mode: ModeLive},
		{name: "live key in test mode", cfg: config.StripeConfig{APIKey: "sk_live_123", Secret: "whsec_1"}, wantErr: true},
		{name: "missing secret", cfg: config.StripeConfig{APIKey: "sk_test_123"}, wantErr: true},
		{name: "missing key", cfg: config.StripeConfig{Secret: "whsec_1"}, wantErr: true},
		{name: "unknown mode", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "staging"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tc.cfg, nil)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.mode, client.Mode())
		})
	}
}

func TestVerifyEvent(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec_test"}, nil)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"api_version": "2020-08-27",
		"type":        "invoice.paid",
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	event, err := client.VerifyEvent(signed.Payload, signed.Header)
	require.NoError(t, err, "older api versions are accepted")
	require.Equal(t, "evt_1", event.ID)
	require.Equal(t, stripe.EventType("invoice.paid"), event.Type)

	stale := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now().Add(-time.Hour),
		Scheme:    "v1",
	})
	_, err = client.VerifyEvent(stale.Payload, stale.Header)
	require.Error(t, err, "timestamps outside the tolerance are rejected")

	_, err = client.VerifyEvent(payload, "t=1,v1=bad")
	require.Error(t, err)
}

func TestNilClient(t *testing.T) {
	var c *Client
	require.Equal(t, Mode(""), c.Mode())
	_, err := c.VerifyEvent([]byte("{}"), "")
	require.ErrorIs(t, err, ErrMissingSecret)
}
