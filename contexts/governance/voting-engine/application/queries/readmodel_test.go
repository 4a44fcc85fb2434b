package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"oikos/contexts/governance/voting-engine/adapters/memory"
	"oikos/contexts/governance/voting-engine/domain/entities"
	domainerrors "oikos/contexts/governance/voting-engine/domain/errors"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func seedVotedReferendum(t *testing.T, store *memory.Store, now time.Time) {
	t.Helper()
	start := now.Add(-time.Hour)
	if err := store.SaveQuestion(context.Background(), entities.Question{
		QuestionID:         "question-1",
		BuildingID:         "building-1",
		Kind:               entities.QuestionKindReferendum,
		ChoiceSet:          append([]string(nil), entities.DefaultChoiceSet...),
		VotingType:         entities.VotingTypeSimpleMajority,
		TotalBuildingMills: 1000,
		PreVotingStart:     &start,
	}); err != nil {
		t.Fatalf("save question: %v", err)
	}
	if err := store.SaveRoster(context.Background(), "question-1", []entities.RosterEntry{
		{QuestionID: "question-1", VoterID: "voter-a", ApartmentNumber: "1", Mills: 600},
		{QuestionID: "question-1", VoterID: "voter-b", ApartmentNumber: "2", Mills: 400},
	}); err != nil {
		t.Fatalf("save roster: %v", err)
	}
	if _, err := store.UpsertBallot(context.Background(), entities.Ballot{
		QuestionID: "question-1",
		VoterID:    "voter-a",
		Choice:     "approve",
		Source:     entities.BallotSourcePreVote,
		CastAt:     now,
		UpdatedAt:  now,
	}, 0); err != nil {
		t.Fatalf("seed ballot: %v", err)
	}
}

func newResultFeed(store *memory.Store, clock *fakeClock) ResultFeed {
	return ResultFeed{
		Tally: TallyUseCase{
			Questions: store,
			Roster:    store,
			Ballots:   store,
			Clock:     clock,
		},
		Cache: store,
		Clock: clock,
		TTL:   3 * time.Second,
	}
}

func TestQuestionResultsServesCachedValueInsideTTL(t *testing.T) {
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)}
	seedVotedReferendum(t, store, clock.now)
	feed := newResultFeed(store, clock)

	first, err := feed.QuestionResults(context.Background(), "question-1", false)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if first.TotalMillsVoted != 600 {
		t.Fatalf("first total mills: %d", first.TotalMillsVoted)
	}

	// A second ballot lands but the cache entry is still inside its TTL, so a
	// direct store write (bypassing the use case) stays invisible.
	if _, err := store.UpsertBallot(context.Background(), entities.Ballot{
		QuestionID: "question-1",
		VoterID:    "voter-b",
		Choice:     "reject",
		Source:     entities.BallotSourcePreVote,
		CastAt:     clock.now,
		UpdatedAt:  clock.now,
	}, 0); err != nil {
		t.Fatalf("second ballot: %v", err)
	}

	clock.now = clock.now.Add(time.Second)
	cached, err := feed.QuestionResults(context.Background(), "question-1", false)
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if cached.TotalMillsVoted != 600 {
		t.Fatalf("expected stale cached value, got %d", cached.TotalMillsVoted)
	}

	// refresh=true bypasses the cache for facilitator tooling.
	fresh, err := feed.QuestionResults(context.Background(), "question-1", true)
	if err != nil {
		t.Fatalf("refresh read: %v", err)
	}
	if fresh.TotalMillsVoted != 1000 {
		t.Fatalf("refresh must recompute, got %d", fresh.TotalMillsVoted)
	}
}

func TestQuestionResultsRecomputesAfterExpiry(t *testing.T) {
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)}
	seedVotedReferendum(t, store, clock.now)
	feed := newResultFeed(store, clock)

	if _, err := feed.QuestionResults(context.Background(), "question-1", false); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := store.UpsertBallot(context.Background(), entities.Ballot{
		QuestionID: "question-1",
		VoterID:    "voter-b",
		Choice:     "reject",
		Source:     entities.BallotSourcePreVote,
		CastAt:     clock.now,
		UpdatedAt:  clock.now,
	}, 0); err != nil {
		t.Fatalf("second ballot: %v", err)
	}

	clock.now = clock.now.Add(5 * time.Second)
	result, err := feed.QuestionResults(context.Background(), "question-1", false)
	if err != nil {
		t.Fatalf("read after expiry: %v", err)
	}
	if result.TotalMillsVoted != 1000 {
		t.Fatalf("expired cache must recompute, got %d", result.TotalMillsVoted)
	}
}

func TestQuestionResultsUnknownQuestion(t *testing.T) {
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)}
	feed := newResultFeed(store, clock)

	if _, err := feed.QuestionResults(context.Background(), "missing", false); !errors.Is(err, domainerrors.ErrQuestionNotFound) {
		t.Fatalf("unknown question: got %v", err)
	}
}

func TestAuditTrailRequiresExistingQuestion(t *testing.T) {
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)}
	uc := TallyUseCase{Questions: store, Roster: store, Ballots: store, Clock: clock}

	if _, err := uc.AuditTrail(context.Background(), "missing", "voter-a"); !errors.Is(err, domainerrors.ErrQuestionNotFound) {
		t.Fatalf("unknown question: got %v", err)
	}
}
