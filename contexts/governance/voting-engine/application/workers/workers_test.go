package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"oikos/contexts/governance/voting-engine/adapters/memory"
	"oikos/contexts/governance/voting-engine/domain/entities"
	"oikos/contexts/governance/voting-engine/ports"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type capturingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []ports.EventEnvelope
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestLifecycleSweeperClosesElapsedReferenda(t *testing.T) {
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)}
	start := clock.now.Add(-10 * 24 * time.Hour)
	elapsedEnd := clock.now.Add(-time.Hour)
	openEnd := clock.now.Add(24 * time.Hour)

	if err := store.SaveQuestion(context.Background(), entities.Question{
		QuestionID:     "ref-elapsed",
		BuildingID:     "building-1",
		Kind:           entities.QuestionKindReferendum,
		PreVotingStart: &start,
		PreVotingEnd:   &elapsedEnd,
	}); err != nil {
		t.Fatalf("save elapsed referendum: %v", err)
	}
	if err := store.SaveQuestion(context.Background(), entities.Question{
		QuestionID:     "ref-open",
		BuildingID:     "building-1",
		Kind:           entities.QuestionKindReferendum,
		PreVotingStart: &start,
		PreVotingEnd:   &openEnd,
	}); err != nil {
		t.Fatalf("save open referendum: %v", err)
	}

	sweeper := LifecycleSweeper{
		Questions: store,
		Tallies:   store,
		Outbox:    store,
		Clock:     clock,
		IDGen:     store,
	}
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	closed, err := store.GetQuestion(context.Background(), "ref-elapsed")
	if err != nil {
		t.Fatalf("get closed referendum: %v", err)
	}
	if closed.ClosedAt == nil || !closed.ClosedAt.Equal(clock.now) {
		t.Fatalf("elapsed referendum must be closed at sweep time, got %v", closed.ClosedAt)
	}

	stillOpen, err := store.GetQuestion(context.Background(), "ref-open")
	if err != nil {
		t.Fatalf("get open referendum: %v", err)
	}
	if stillOpen.ClosedAt != nil {
		t.Fatalf("open referendum must stay open")
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("sweep must emit one close event, got %d", len(pending))
	}

	// A second sweep finds nothing left to close.
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	pending, err = store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox again: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("second sweep must not duplicate events, got %d", len(pending))
	}
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)}

	for _, eventID := range []string{"event-1", "event-2"} {
		envelope, err := newGovernanceEnvelope(eventID, "question.closed", "question-1", clock.now, map[string]any{
			"question_id": "question-1",
		})
		if err != nil {
			t.Fatalf("build envelope: %v", err)
		}
		if err := store.AppendOutbox(context.Background(), envelope); err != nil {
			t.Fatalf("append outbox: %v", err)
		}
		clock.now = clock.now.Add(time.Second)
	}

	publisher := &capturingPublisher{}
	relay := OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     clock,
		Topic:     "governance.voting",
		BatchSize: 10,
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay: %v", err)
	}

	if len(publisher.events) != 2 {
		t.Fatalf("published events: %d", len(publisher.events))
	}
	for _, topic := range publisher.topics {
		if topic != "governance.voting" {
			t.Fatalf("topic: %q", topic)
		}
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("published rows must leave the pending set, got %d", len(pending))
	}

	// Re-running against a drained outbox publishes nothing.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second relay: %v", err)
	}
	if len(publisher.events) != 2 {
		t.Fatalf("second run must not republish, got %d", len(publisher.events))
	}
}
