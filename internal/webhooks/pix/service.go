package pixwebhook

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/hydrofarm-backend/internal/payments"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hydrofarm-backend/pkg/errors"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

// Notification is the body the instant-payment provider posts. A single
// delivery may carry settled payments, authorization changes and recurring
// charge updates.
type Notification struct {
	Pix              []PixEntry             `json:"pix"`
	Recurrences      []RecurrenceEntry      `json:"recs"`
	RecurringCharges []RecurringChargeEntry `json:"cobsr"`
}

type PixEntry struct {
	EndToEndID string `json:"endToEndId"`
	TxID       string `json:"txid"`
	Value      string `json:"valor"`
	Time       string `json:"horario"`
}

type RecurrenceEntry struct {
	RecurrenceID string `json:"idRec"`
	Status       string `json:"status"`
}

type RecurringChargeEntry struct {
	TxID         string `json:"txid"`
	RecurrenceID string `json:"idRec"`
	Status       string `json:"status"`
}

// Empty reports whether the notification carries nothing to process.
func (n *Notification) Empty() bool {
	return n == nil || len(n.Pix)+len(n.Recurrences)+len(n.RecurringCharges) == 0
}

type Reconciler interface {
	HandlePixNotification(ctx context.Context, txid string, source enums.EventSource) error
	ApplyAuthorization(ctx context.Context, recID string, state payments.AuthState, source enums.EventSource) error
	ApplyRecurringCharge(ctx context.Context, recID, txid string, state payments.ChargeState, source enums.EventSource) error
}

// providerQuerier re-reads state from the provider; payload statuses are only
// hints.
type providerQuerier interface {
	QueryAuthorization(ctx context.Context, recID string) (payments.AuthState, error)
	QueryRecurringCharge(ctx context.Context, txid string) (payments.RecurringChargeInfo, error)
}

type guard interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type ServiceParams struct {
	Reconciler Reconciler
	Charges    providerQuerier
	Guard      guard
	Logger     *logger.Logger
}

type Service struct {
	reconciler Reconciler
	charges    providerQuerier
	guard      guard
	logg       *logger.Logger
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if p.Charges == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "provider client required")
	}
	if p.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{reconciler: p.Reconciler, charges: p.Charges, guard: p.Guard, logg: p.Logger}, nil
}

// Process handles every entry of n. Entries already seen are skipped; a
// failing entry releases its key so the provider's retry runs it again. The
// remaining entries are still attempted.
func (s *Service) Process(ctx context.Context, n *Notification) error {
	if n.Empty() {
		return nil
	}
	var errs error
	for _, e := range n.Pix {
		txid := strings.TrimSpace(e.TxID)
		if txid == "" {
			s.warn(ctx, "pix entry without txid", "end_to_end_id", e.EndToEndID)
			continue
		}
		key := firstNonEmpty(strings.TrimSpace(e.EndToEndID), "cob:"+txid)
		errs = multierr.Append(errs, s.once(ctx, key, func() error {
			return s.reconciler.HandlePixNotification(ctx, txid, enums.SourceWebhook)
		}))
	}
	for _, e := range n.Recurrences {
		if e.RecurrenceID == "" {
			s.warn(ctx, "rec entry without idRec", "status", e.Status)
			continue
		}
		key := fmt.Sprintf("rec:%s:%s", e.RecurrenceID, e.Status)
		errs = multierr.Append(errs, s.once(ctx, key, func() error {
			return s.authorization(ctx, e)
		}))
	}
	for _, e := range n.RecurringCharges {
		if e.TxID == "" {
			s.warn(ctx, "cobr entry without txid", "recurrence_id", e.RecurrenceID)
			continue
		}
		key := fmt.Sprintf("cobr:%s:%s", e.TxID, e.Status)
		errs = multierr.Append(errs, s.once(ctx, key, func() error {
			return s.recurringCharge(ctx, e)
		}))
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "process pix notification")
	}
	return nil
}

// authorization applies the provider's current state of the recurrence. A
// failed query is returned so the delivery is retried.
func (s *Service) authorization(ctx context.Context, e RecurrenceEntry) error {
	state, err := s.charges.QueryAuthorization(ctx, e.RecurrenceID)
	if err != nil {
		return err
	}
	if state == payments.AuthUnknown || state == "" {
		s.warn(ctx, "rec entry with unknown provider state", "recurrence_id", e.RecurrenceID)
		return nil
	}
	if reported := payments.AuthStateFromPix(e.Status); reported != state {
		s.warn(s.withField(ctx, "provider_state", string(state)), "rec entry status differs from provider", "reported_state", string(reported))
	}
	return s.reconciler.ApplyAuthorization(ctx, e.RecurrenceID, state, enums.SourceWebhook)
}

// recurringCharge trusts only the provider's current view of the charge, not
// the status in the payload.
func (s *Service) recurringCharge(ctx context.Context, e RecurringChargeEntry) error {
	info, err := s.charges.QueryRecurringCharge(ctx, e.TxID)
	if err != nil {
		return err
	}
	recID := firstNonEmpty(info.RecurrenceID, e.RecurrenceID)
	if recID == "" {
		s.warn(ctx, "recurring charge without recurrence", "txid", e.TxID)
		return nil
	}
	return s.reconciler.ApplyRecurringCharge(ctx, recID, e.TxID, info.State, enums.SourceWebhook)
}

func (s *Service) once(ctx context.Context, key string, fn func() error) error {
	first, err := s.guard.Claim(ctx, key)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	if err := fn(); err != nil {
		if delErr := s.guard.Release(ctx, key); delErr != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "dedup_key", key), "release idempotency key", delErr)
		}
		return err
	}
	return nil
}

func (s *Service) warn(ctx context.Context, msg, key, value string) {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, key, value), msg)
	}
}

func (s *Service) withField(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
