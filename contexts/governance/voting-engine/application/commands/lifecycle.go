package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "oikos/contexts/governance/voting-engine/application"
	"oikos/contexts/governance/voting-engine/domain/entities"
	domainerrors "oikos/contexts/governance/voting-engine/domain/errors"
	"oikos/contexts/governance/voting-engine/ports"
	sharedevents "oikos/internal/shared/events"
)

// LifecycleUseCase persists the two operator-triggered transitions. The
// automatic window transitions stay derived from the clock and never touch
// storage, so servers cannot drift on the phase.
type LifecycleUseCase struct {
	Questions ports.QuestionRepository
	Tallies   ports.TallyCache
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// OpenFloor starts the live in-room voting phase for an agenda item. Legal
// only from scheduled (pre-voting disabled) or after the remote window
// closed.
func (uc LifecycleUseCase) OpenFloor(ctx context.Context, questionID string) (entities.Question, error) {
	logger := application.ResolveLogger(uc.Logger)
	question, err := uc.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return entities.Question{}, err
	}

	now := uc.now()
	if !question.CanOpenFloor(now) {
		return entities.Question{}, &domainerrors.IneligibleStateError{
			State:  string(question.StatusAt(now)),
			Source: "open_live",
		}
	}

	question.FloorOpenedAt = &now
	question.UpdatedAt = now
	if err := uc.Questions.SaveQuestion(ctx, question); err != nil {
		return entities.Question{}, err
	}
	if err := uc.invalidate(ctx, question.QuestionID); err != nil {
		return entities.Question{}, err
	}
	if err := uc.appendLifecycleEvent(ctx, sharedevents.TypeQuestionFloorOpened, question, now); err != nil {
		return entities.Question{}, err
	}
	logger.Info("question floor opened",
		"event", "governance_question_floor_opened",
		"module", "governance/voting-engine",
		"layer", "application",
		"question_id", question.QuestionID,
	)
	return question, nil
}

// Close terminates voting for a question from any non-closed state. Closed is
// terminal; closing an already-closed question is a no-op so operator retries
// stay safe.
func (uc LifecycleUseCase) Close(ctx context.Context, questionID string) (entities.Question, error) {
	logger := application.ResolveLogger(uc.Logger)
	question, err := uc.Questions.GetQuestion(ctx, strings.TrimSpace(questionID))
	if err != nil {
		return entities.Question{}, err
	}

	now := uc.now()
	if question.StatusAt(now) == entities.QuestionStatusClosed && question.ClosedAt != nil {
		return question, nil
	}

	// A referendum past its end date is derived-closed but not yet persisted;
	// materializing it goes through the same invalidate-and-emit path as an
	// operator close, so readers and consumers see it exactly once.
	question.ClosedAt = &now
	question.UpdatedAt = now
	if err := uc.Questions.SaveQuestion(ctx, question); err != nil {
		return entities.Question{}, err
	}
	if err := uc.invalidate(ctx, question.QuestionID); err != nil {
		return entities.Question{}, err
	}
	if err := uc.appendLifecycleEvent(ctx, sharedevents.TypeQuestionClosed, question, now); err != nil {
		return entities.Question{}, err
	}
	logger.Info("question closed",
		"event", "governance_question_closed",
		"module", "governance/voting-engine",
		"layer", "application",
		"question_id", question.QuestionID,
	)
	return question, nil
}

func (uc LifecycleUseCase) invalidate(ctx context.Context, questionID string) error {
	if uc.Tallies == nil {
		return nil
	}
	return uc.Tallies.Invalidate(ctx, questionID)
}

func (uc LifecycleUseCase) appendLifecycleEvent(
	ctx context.Context,
	eventType string,
	question entities.Question,
	occurredAt time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newGovernanceEnvelope(eventID, eventType, question.QuestionID, occurredAt, map[string]any{
		"question_id": question.QuestionID,
		"building_id": question.BuildingID,
		"kind":        string(question.Kind),
		"occurred_at": occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc LifecycleUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
