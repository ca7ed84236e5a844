package payments

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/metrics"
	"github.com/angelmondragon/hydrofarm-backend/pkg/pix"
)

const providerPix = "pix"

type pixAPI interface {
	QueryCharge(ctx context.Context, txid string) (*pix.Charge, error)
	CreateCharge(ctx context.Context, txid string, in pix.ChargeRequest) (*pix.Charge, error)
	QueryRecurringCharge(ctx context.Context, txid string) (*pix.RecurringCharge, error)
	QueryAuthorization(ctx context.Context, recID string) (*pix.Recurrence, error)
}

// ChargeInfo is a normalized immediate charge.
type ChargeInfo struct {
	TxID      string
	State     ChargeState
	RawStatus string
	Amount    decimal.Decimal
	CopyPaste string
}

// RecurringChargeInfo is a normalized charge issued under a recurrence.
type RecurringChargeInfo struct {
	TxID         string
	RecurrenceID string
	State        ChargeState
	RawStatus    string
}

// ChargeSpec describes a new immediate charge.
type ChargeSpec struct {
	Amount decimal.Decimal
	Key    string
	Expiry time.Duration
	Notice string
}

// PixGateway normalizes the instant-payment provider and records provider
// latency. It never writes business state.
type PixGateway struct {
	api     pixAPI
	metrics *metrics.ReconcileMetrics
	newTxID func() string
}

// NewPixGateway wraps a provider client. A nil client yields a gateway whose
// calls fail with a dependency error.
func NewPixGateway(api pixAPI, m *metrics.ReconcileMetrics) *PixGateway {
	return &PixGateway{api: api, metrics: m, newTxID: pix.NewTxID}
}

func (g *PixGateway) QueryCharge(ctx context.Context, txid string) (ChargeInfo, error) {
	if err := g.ready(); err != nil {
		return ChargeInfo{}, err
	}
	start := time.Now()
	charge, err := g.api.QueryCharge(ctx, txid)
	g.metrics.ObserveProvider(providerPix, "query_charge", time.Since(start), err)
	if err != nil {
		return ChargeInfo{}, err
	}
	return chargeInfo(charge, txid), nil
}

// CreateCharge issues a new charge under a freshly generated txid.
func (g *PixGateway) CreateCharge(ctx context.Context, spec ChargeSpec) (ChargeInfo, error) {
	if err := g.ready(); err != nil {
		return ChargeInfo{}, err
	}
	if strings.TrimSpace(spec.Key) == "" {
		return ChargeInfo{}, pkgerrors.New(pkgerrors.CodeDependency, "pix key not configured")
	}
	expiry := int(spec.Expiry / time.Second)
	if expiry <= 0 {
		expiry = 3600
	}
	txid := g.newTxID()

	start := time.Now()
	charge, err := g.api.CreateCharge(ctx, txid, pix.ChargeRequest{
		Calendar:    pix.Calendar{Expiry: expiry},
		Amount:      pix.Amount{Original: spec.Amount.StringFixed(2)},
		Key:         spec.Key,
		PayerNotice: spec.Notice,
	})
	g.metrics.ObserveProvider(providerPix, "create_charge", time.Since(start), err)
	if err != nil {
		return ChargeInfo{}, err
	}
	return chargeInfo(charge, txid), nil
}

func (g *PixGateway) QueryAuthorization(ctx context.Context, recID string) (AuthState, error) {
	if err := g.ready(); err != nil {
		return AuthUnknown, err
	}
	start := time.Now()
	rec, err := g.api.QueryAuthorization(ctx, recID)
	g.metrics.ObserveProvider(providerPix, "query_authorization", time.Since(start), err)
	if err != nil {
		return AuthUnknown, err
	}
	return AuthStateFromPix(rec.Status), nil
}

func (g *PixGateway) QueryRecurringCharge(ctx context.Context, txid string) (RecurringChargeInfo, error) {
	if err := g.ready(); err != nil {
		return RecurringChargeInfo{}, err
	}
	start := time.Now()
	cobr, err := g.api.QueryRecurringCharge(ctx, txid)
	g.metrics.ObserveProvider(providerPix, "query_recurring_charge", time.Since(start), err)
	if err != nil {
		return RecurringChargeInfo{}, err
	}
	out := RecurringChargeInfo{
		TxID:         cobr.TxID,
		RecurrenceID: cobr.RecurrenceID,
		State:        RecurringChargeStateFromPix(cobr.Status),
		RawStatus:    cobr.Status,
	}
	if out.TxID == "" {
		out.TxID = txid
	}
	return out, nil
}

func (g *PixGateway) ready() error {
	if g == nil || g.api == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "instant payment provider not configured")
	}
	return nil
}

func chargeInfo(c *pix.Charge, txid string) ChargeInfo {
	info := ChargeInfo{
		TxID:      c.TxID,
		State:     ChargeStateFromPix(c.Status),
		RawStatus: c.Status,
		CopyPaste: c.CopyPaste,
	}
	if info.TxID == "" {
		info.TxID = txid
	}
	if amount, err := decimal.NewFromString(c.Amount.Original); err == nil {
		info.Amount = amount
	}
	return info
}
