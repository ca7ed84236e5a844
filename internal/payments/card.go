package payments

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/metrics"
)

const providerStripe = "stripe"

// CheckoutResult is the normalized outcome of a card checkout session.
type CheckoutResult struct {
	SessionID       string
	Paid            bool
	PaymentIntentID string
	SubscriptionID  string
	Metadata        map[string]string
}

// CardSubscription is the normalized card-rail subscription.
type CardSubscription struct {
	ID       string
	Status   string
	Metadata map[string]string
}

// Ended reports whether the card rail will never bill this subscription again.
func (c CardSubscription) Ended() bool {
	switch stripe.SubscriptionStatus(c.Status) {
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return true
	}
	return false
}

// CardGateway reads checkout sessions and subscriptions from the card rail.
type CardGateway struct {
	getSession      func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSubscription func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	metrics         *metrics.ReconcileMetrics
	enabled         bool
}

// NewCardGateway uses the package-level stripe resources, which read
// stripe.Key. Pass enabled=false when no card client was configured.
func NewCardGateway(enabled bool, m *metrics.ReconcileMetrics) *CardGateway {
	return &CardGateway{
		getSession:      session.Get,
		getSubscription: subscription.Get,
		metrics:         m,
		enabled:         enabled,
	}
}

func (g *CardGateway) RetrieveCheckoutSession(ctx context.Context, id string) (CheckoutResult, error) {
	if g == nil || !g.enabled {
		return CheckoutResult{}, pkgerrors.New(pkgerrors.CodeDependency, "card provider not configured")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	start := time.Now()
	s, err := g.getSession(id, params)
	g.metrics.ObserveProvider(providerStripe, "retrieve_checkout_session", time.Since(start), err)
	if err != nil {
		return CheckoutResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}
	return CheckoutFromSession(s), nil
}

func (g *CardGateway) RetrieveSubscription(ctx context.Context, id string) (CardSubscription, error) {
	if g == nil || !g.enabled {
		return CardSubscription{}, pkgerrors.New(pkgerrors.CodeDependency, "card provider not configured")
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	start := time.Now()
	sub, err := g.getSubscription(id, params)
	g.metrics.ObserveProvider(providerStripe, "retrieve_subscription", time.Since(start), err)
	if err != nil {
		return CardSubscription{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve subscription")
	}
	return CardSubscription{ID: sub.ID, Status: string(sub.Status), Metadata: sub.Metadata}, nil
}

// CheckoutFromSession normalizes a session, whether fetched or decoded from
// a webhook payload.
func CheckoutFromSession(s *stripe.CheckoutSession) CheckoutResult {
	if s == nil {
		return CheckoutResult{}
	}
	out := CheckoutResult{
		SessionID: s.ID,
		Paid: s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired,
		Metadata: s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
