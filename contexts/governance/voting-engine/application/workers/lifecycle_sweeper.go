package workers

import (
	"context"
	"log/slog"
	"time"

	application "oikos/contexts/governance/voting-engine/application"
	"oikos/contexts/governance/voting-engine/ports"
	sharedevents "oikos/internal/shared/events"
)

// LifecycleSweeper persists the close of referenda whose end date has
// elapsed. The derived state machine already reports them closed the instant
// the window passes; the sweep only materializes the transition and emits
// the close event, so it is not latency-critical.
type LifecycleSweeper struct {
	Questions ports.QuestionRepository
	Tallies   ports.TallyCache
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (s LifecycleSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	now := s.now()

	elapsed, err := s.Questions.ListElapsedReferenda(ctx, now)
	if err != nil {
		logger.Error("lifecycle sweep list failed",
			"event", "governance_lifecycle_sweep_list_failed",
			"module", "governance/voting-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(elapsed) == 0 {
		return nil
	}

	for _, question := range elapsed {
		closedAt := now
		question.ClosedAt = &closedAt
		question.UpdatedAt = now
		if err := s.Questions.SaveQuestion(ctx, question); err != nil {
			logger.Error("lifecycle sweep close failed",
				"event", "governance_lifecycle_sweep_close_failed",
				"module", "governance/voting-engine",
				"layer", "worker",
				"question_id", question.QuestionID,
				"error", err.Error(),
			)
			return err
		}
		if s.Tallies != nil {
			if err := s.Tallies.Invalidate(ctx, question.QuestionID); err != nil {
				return err
			}
		}
		if s.Outbox != nil {
			eventID, err := s.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			envelope, err := newGovernanceEnvelope(eventID, sharedevents.TypeQuestionClosed, question.QuestionID, now, map[string]any{
				"question_id": question.QuestionID,
				"building_id": question.BuildingID,
				"kind":        string(question.Kind),
				"reason":      "end_date_elapsed",
				"occurred_at": now.Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			if err := s.Outbox.AppendOutbox(ctx, envelope); err != nil {
				return err
			}
		}
		logger.Info("referendum closed by sweep",
			"event", "governance_lifecycle_sweep_closed",
			"module", "governance/voting-engine",
			"layer", "worker",
			"question_id", question.QuestionID,
		)
	}
	return nil
}

func (s LifecycleSweeper) now() time.Time {
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}
	return now
}
