package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "oikos/contexts/governance/voting-engine/application"
	"oikos/contexts/governance/voting-engine/domain/entities"
	domainerrors "oikos/contexts/governance/voting-engine/domain/errors"
	"oikos/contexts/governance/voting-engine/ports"
	sharedevents "oikos/internal/shared/events"
)

const (
	// upsertAttempts bounds the CAS retry loop when two writers target the
	// same (question, voter) key, e.g. a resident voting from the app while
	// the facilitator enters the same voter's floor vote on a tablet.
	upsertAttempts = 5
	backoffBase    = 2 * time.Millisecond
)

// CastBallotCommand is the write-model input for ballot casting from any of
// the three sources.
type CastBallotCommand struct {
	QuestionID string
	VoterID    string
	Choice     string
	Source     entities.BallotSource
	// CastAt is the client clock. Recorded for audit, never used to resolve
	// conflicts.
	CastAt  time.Time
	Consent *entities.Consent
}

// CastBallotResult returns the effective ballot plus a replacement marker the
// transport layer maps to API semantics.
type CastBallotResult struct {
	Ballot   entities.Ballot
	Replaced bool
}

// BallotUseCase orchestrates ballot casting: choice validation, lifecycle
// gating, consent enforcement, roster membership, and the reconciliation
// policy (source-agnostic last write wins inside an atomic versioned upsert).
type BallotUseCase struct {
	Questions ports.QuestionRepository
	Roster    ports.RosterRepository
	Ballots   ports.BallotRepository
	Tallies   ports.TallyCache
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastBallot creates or replaces the effective ballot for (question, voter).
// The operation is idempotent per key: replaying the identical request
// re-upserts the same row and never produces a second one.
func (uc BallotUseCase) CastBallot(ctx context.Context, cmd CastBallotCommand) (CastBallotResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	questionID := strings.TrimSpace(cmd.QuestionID)
	voterID := strings.TrimSpace(cmd.VoterID)
	choice := strings.TrimSpace(cmd.Choice)

	logger.Info("ballot cast processing started",
		"event", "governance_ballot_cast_started",
		"module", "governance/voting-engine",
		"layer", "application",
		"question_id", questionID,
		"voter_id", voterID,
		"source", string(cmd.Source),
	)
	if questionID == "" || voterID == "" || choice == "" || !cmd.Source.Valid() {
		logger.Warn("ballot cast validation failed",
			"event", "governance_ballot_cast_validation_failed",
			"module", "governance/voting-engine",
			"layer", "application",
			"question_id", questionID,
			"voter_id", voterID,
			"source", string(cmd.Source),
		)
		return CastBallotResult{}, domainerrors.ErrInvalidBallotInput
	}

	question, err := uc.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return CastBallotResult{}, err
	}
	if !question.HasChoice(choice) {
		return CastBallotResult{}, domainerrors.ErrChoiceNotAllowed
	}

	now := uc.now()
	if !question.AcceptsSource(now, cmd.Source) {
		status := question.StatusAt(now)
		logger.Warn("ballot source rejected for current state",
			"event", "governance_ballot_cast_state_rejected",
			"module", "governance/voting-engine",
			"layer", "application",
			"question_id", questionID,
			"voter_id", voterID,
			"source", string(cmd.Source),
			"status", string(status),
		)
		return CastBallotResult{}, &domainerrors.IneligibleStateError{
			State:  string(status),
			Source: string(cmd.Source),
		}
	}

	entries, err := uc.Roster.GetRoster(ctx, questionID)
	if err != nil {
		return CastBallotResult{}, err
	}
	if _, ok := entities.NewRoster(entries).Lookup(voterID); !ok {
		return CastBallotResult{}, domainerrors.ErrUnknownVoter
	}

	// Remote pre-votes are unwitnessed, so accepted terms are mandatory.
	// Live and proxy ballots are entered by the facilitator in the room.
	if cmd.Source == entities.BallotSourcePreVote {
		if cmd.Consent == nil || !cmd.Consent.Accepted {
			return CastBallotResult{}, domainerrors.ErrMissingConsent
		}
	}

	castAt := cmd.CastAt.UTC()
	if castAt.IsZero() {
		castAt = now
	}

	result, err := uc.upsertWithRetry(ctx, logger, entities.Ballot{
		QuestionID: questionID,
		VoterID:    voterID,
		Choice:     choice,
		Source:     cmd.Source,
		CastAt:     castAt,
		Consent:    cmd.Consent,
		UpdatedAt:  now,
	})
	if err != nil {
		return CastBallotResult{}, err
	}

	if uc.Tallies != nil {
		if err := uc.Tallies.Invalidate(ctx, questionID); err != nil {
			return CastBallotResult{}, err
		}
	}
	if err := uc.appendBallotEvent(ctx, result.Ballot, now, result.Replaced); err != nil {
		return CastBallotResult{}, err
	}

	logger.Info("ballot cast",
		"event", "governance_ballot_cast",
		"module", "governance/voting-engine",
		"layer", "application",
		"question_id", questionID,
		"voter_id", voterID,
		"choice", choice,
		"source", string(cmd.Source),
		"replaced", result.Replaced,
	)
	return result, nil
}

// upsertWithRetry serializes concurrent writers for one key through the
// store's versioned upsert. Whichever write commits last at the store stands;
// client timestamps never participate in the race.
func (uc BallotUseCase) upsertWithRetry(
	ctx context.Context,
	logger *slog.Logger,
	ballot entities.Ballot,
) (CastBallotResult, error) {
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		existing, found, err := uc.Ballots.GetBallot(ctx, ballot.QuestionID, ballot.VoterID)
		if err != nil {
			return CastBallotResult{}, err
		}
		expectedVersion := int64(0)
		if found {
			expectedVersion = existing.Version
			ballot.CreatedAt = existing.CreatedAt
		} else {
			ballot.CreatedAt = ballot.UpdatedAt
		}

		committed, err := uc.Ballots.UpsertBallot(ctx, ballot, expectedVersion)
		if err == nil {
			return CastBallotResult{Ballot: committed, Replaced: found}, nil
		}
		if !errors.Is(err, domainerrors.ErrVersionConflict) {
			return CastBallotResult{}, err
		}

		logger.Warn("ballot upsert version conflict, retrying",
			"event", "governance_ballot_upsert_conflict",
			"module", "governance/voting-engine",
			"layer", "application",
			"question_id", ballot.QuestionID,
			"voter_id", ballot.VoterID,
			"attempt", attempt+1,
		)
		select {
		case <-ctx.Done():
			return CastBallotResult{}, ctx.Err()
		case <-time.After(backoffBase << attempt):
		}
	}
	return CastBallotResult{}, domainerrors.ErrStorageConflict
}

func (uc BallotUseCase) appendBallotEvent(
	ctx context.Context,
	ballot entities.Ballot,
	occurredAt time.Time,
	replaced bool,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newGovernanceEnvelope(eventID, sharedevents.TypeBallotCast, ballot.QuestionID, occurredAt, map[string]any{
		"question_id": ballot.QuestionID,
		"voter_id":    ballot.VoterID,
		"choice":      ballot.Choice,
		"source":      string(ballot.Source),
		"replaced":    replaced,
		"occurred_at": occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc BallotUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
