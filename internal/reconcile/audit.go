package reconcile

import (
	"context"

	"github.com/angelmondragon/hydrofarm-backend/internal/audit"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/angelmondragon/hydrofarm-backend/pkg/metrics"
)

// Outcome classifies one reconciliation decision.
type Outcome string

const (
	OutcomeApplied          Outcome = metrics.OutcomeApplied
	OutcomeAlreadyConfirmed Outcome = metrics.OutcomeAlreadyConfirmed
	OutcomeNoop             Outcome = metrics.OutcomeNoop
	OutcomeUnknownEntity    Outcome = metrics.OutcomeUnknownEntity
	OutcomeReissued         Outcome = metrics.OutcomeReissued
	OutcomeConflict         Outcome = "state_conflict"
	OutcomeError            Outcome = metrics.OutcomeError
)

// record writes the audit row after the transaction finished, so a rollback
// never erases it. A failing sink is logged and otherwise ignored.
func (s *Service) record(ctx context.Context, entry audit.Entry, outcome Outcome) {
	entry.TraceID = logger.TraceID(ctx)
	entry.AlreadyConfirmed = entry.AlreadyConfirmed || outcome == OutcomeAlreadyConfirmed
	if entry.Err == nil && outcome != OutcomeError {
		entry.OK = true
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logg.Error(ctx, "payment audit write failed", err)
	}
	s.metrics.IncEvent(string(entry.Source), string(entry.EntityType), string(outcome))

	if entry.Err != nil {
		s.logg.Error(ctx, "reconcile "+entry.Event+" failed", entry.Err)
	}
}
