// Package stripe holds the card-rail credentials and verifies webhook
// deliveries. API calls use the package-level stripe-go resources.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// Mode is the Stripe account mode a key belongs to.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

var (
	ErrMissingKey    = errors.New("stripe api key is required")
	ErrMissingSecret = errors.New("stripe webhook secret is required")
)

type Client struct {
	mode      Mode
	secret    string
	tolerance time.Duration
}

// NewClient checks that the key matches the configured mode and installs it
// as stripe.Key.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode, err := parseMode(cfg.Environment())
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case key == "":
		return nil, ErrMissingKey
	case secret == "":
		return nil, ErrMissingSecret
	}
	if !keyMatchesMode(key, mode) {
		return nil, fmt.Errorf("stripe %s mode needs an sk_%s or rk_%s key", mode, mode, mode)
	}

	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}

	stripe.Key = key
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", string(mode)), "stripe.client.ready")
	}
	return &Client{mode: mode, secret: secret, tolerance: tolerance}, nil
}

func (c *Client) Mode() Mode {
	if c == nil {
		return ""
	}
	return c.mode
}

// VerifyEvent checks the Stripe-Signature header against the payload and
// decodes the event. Events pinned to another API version are accepted; the
// handlers only read fields stable across versions.
func (c *Client) VerifyEvent(payload []byte, header string) (stripe.Event, error) {
	if c == nil || c.secret == "" {
		return stripe.Event{}, ErrMissingSecret
	}
	return webhook.ConstructEventWithOptions(payload, header, c.secret, webhook.ConstructEventOptions{
		Tolerance:                c.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
}

func parseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeTest, nil
	case ModeTest, ModeLive:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stripe mode %q", raw)
	}
}

func keyMatchesMode(key string, mode Mode) bool {
	return strings.HasPrefix(key, "sk_"+string(mode)+"_") || strings.HasPrefix(key, "rk_"+string(mode)+"_")
}
