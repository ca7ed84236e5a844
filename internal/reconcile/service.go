package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hydrofarm-backend/internal/audit"
	"github.com/angelmondragon/hydrofarm-backend/internal/orders"
	"github.com/angelmondragon/hydrofarm-backend/internal/payments"
	"github.com/angelmondragon/hydrofarm-backend/internal/scheduling"
	"github.com/angelmondragon/hydrofarm-backend/internal/subscriptions"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/angelmondragon/hydrofarm-backend/pkg/metrics"
	"github.com/angelmondragon/hydrofarm-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settingsSource interface {
	Schedule(ctx context.Context) scheduling.Settings
	PixKey(ctx context.Context, fallback string) string
}

type stockLedger interface {
	ConsumeForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ReserveForSubscription(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, monthlyCount int) error
}

type pixGateway interface {
	QueryCharge(ctx context.Context, txid string) (payments.ChargeInfo, error)
	CreateCharge(ctx context.Context, spec payments.ChargeSpec) (payments.ChargeInfo, error)
	QueryAuthorization(ctx context.Context, recID string) (payments.AuthState, error)
	QueryRecurringCharge(ctx context.Context, txid string) (payments.RecurringChargeInfo, error)
}

type cardGateway interface {
	RetrieveCheckoutSession(ctx context.Context, id string) (payments.CheckoutResult, error)
	RetrieveSubscription(ctx context.Context, id string) (payments.CardSubscription, error)
}

// ServiceParams wires the orchestrator. Audit, Emitter, Metrics, Logger and
// Now are optional.
type ServiceParams struct {
	TxRunner      txRunner
	Orders        orders.Repository
	Subscriptions subscriptions.Repository
	Ledger        stockLedger
	Settings      settingsSource
	Calculator    *scheduling.Calculator
	Pix           pixGateway
	Card          cardGateway
	Audit         audit.Sink
	Emitter       outbox.Emitter
	Metrics       *metrics.ReconcileMetrics
	Logger        *logger.Logger
	PixKey        string
	ChargeExpiry  time.Duration
	Now           func() time.Time
}

// Service is the single place where payment evidence turns into order and
// subscription state. Every transition is a conditional update; stock and
// delivery writes only follow a transition that actually happened.
type Service struct {
	tx           txRunner
	orders       orders.Repository
	subs         subscriptions.Repository
	ledger       stockLedger
	settings     settingsSource
	calc         *scheduling.Calculator
	pix          pixGateway
	card         cardGateway
	audit        audit.Sink
	emitter      outbox.Emitter
	metrics      *metrics.ReconcileMetrics
	logg         *logger.Logger
	pixKey       string
	chargeExpiry time.Duration
	now          func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if p.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if p.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions repository required")
	}
	if p.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger required")
	}
	if p.Settings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settings resolver required")
	}
	if p.Pix == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "instant payment gateway required")
	}
	if p.Card == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "card gateway required")
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}
	calc := p.Calculator
	if calc == nil {
		calc = scheduling.NewCalculator(now)
	}
	sink := p.Audit
	if sink == nil {
		sink = audit.NopSink{}
	}
	emitter := p.Emitter
	if emitter == nil {
		emitter = outbox.NopEmitter{}
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "reconcile"})
	}
	expiry := p.ChargeExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &Service{
		tx:           p.TxRunner,
		orders:       p.Orders,
		subs:         p.Subscriptions,
		ledger:       p.Ledger,
		settings:     p.Settings,
		calc:         calc,
		pix:          p.Pix,
		card:         p.Card,
		audit:        sink,
		emitter:      emitter,
		metrics:      p.Metrics,
		logg:         logg,
		pixKey:       p.PixKey,
		chargeExpiry: expiry,
		now:          now,
	}, nil
}

// traced makes sure ctx carries a trace id shared by every log line and
// audit row of one reconciliation call.
func (s *Service) traced(ctx context.Context) context.Context {
	if logger.TraceID(ctx) != "" {
		return ctx
	}
	return s.logg.WithTraceID(ctx, uuid.NewString())
}
