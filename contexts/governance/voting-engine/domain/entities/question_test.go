package entities

import (
	"testing"
	"time"
)

func timePtr(value time.Time) *time.Time {
	return &value
}

func TestReferendumStatusFollowsWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	question := Question{
		Kind:           QuestionKindReferendum,
		PreVotingStart: timePtr(start),
		PreVotingEnd:   timePtr(end),
	}

	cases := []struct {
		name string
		now  time.Time
		want QuestionStatus
	}{
		{"before start", start.Add(-time.Minute), QuestionStatusScheduled},
		{"exactly at start", start, QuestionStatusPreVotingOpen},
		{"inside window", start.Add(24 * time.Hour), QuestionStatusPreVotingOpen},
		{"exactly at end", end, QuestionStatusPreVotingOpen},
		{"after end", end.Add(time.Second), QuestionStatusClosed},
	}
	for _, tc := range cases {
		if got := question.StatusAt(tc.now); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestReferendumManualCloseWins(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	closedAt := start.Add(48 * time.Hour)
	question := Question{
		Kind:           QuestionKindReferendum,
		PreVotingStart: timePtr(start),
		ClosedAt:       timePtr(closedAt),
	}
	if got := question.StatusAt(closedAt.Add(-time.Minute)); got != QuestionStatusPreVotingOpen {
		t.Fatalf("before manual close: got %s", got)
	}
	if got := question.StatusAt(closedAt); got != QuestionStatusClosed {
		t.Fatalf("at manual close: got %s", got)
	}
}

func TestAgendaItemPhases(t *testing.T) {
	start := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 14, 18, 0, 0, 0, time.UTC)
	question := Question{
		Kind:           QuestionKindAgendaItem,
		PreVotingStart: timePtr(start),
		PreVotingEnd:   timePtr(end),
	}

	if got := question.StatusAt(start.Add(-time.Hour)); got != QuestionStatusScheduled {
		t.Fatalf("before window: got %s", got)
	}
	if got := question.StatusAt(start.Add(time.Hour)); got != QuestionStatusPreVotingOpen {
		t.Fatalf("in window: got %s", got)
	}
	if got := question.StatusAt(end.Add(time.Hour)); got != QuestionStatusPreVotingClosed {
		t.Fatalf("after window without floor: got %s", got)
	}

	floorOpened := end.Add(2 * time.Hour)
	question.FloorOpenedAt = timePtr(floorOpened)
	if got := question.StatusAt(floorOpened.Add(time.Minute)); got != QuestionStatusLive {
		t.Fatalf("after floor opened: got %s", got)
	}
}

func TestAgendaItemWithoutWindowStaysScheduled(t *testing.T) {
	question := Question{Kind: QuestionKindAgendaItem}
	now := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	if got := question.StatusAt(now); got != QuestionStatusScheduled {
		t.Fatalf("got %s, want scheduled", got)
	}
	if !question.CanOpenFloor(now) {
		t.Fatalf("expected floor open to be legal from scheduled")
	}
}

func TestAcceptsSourceLegality(t *testing.T) {
	start := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)
	question := Question{
		Kind:           QuestionKindAgendaItem,
		PreVotingStart: timePtr(start),
		PreVotingEnd:   timePtr(end),
	}

	during := start.Add(time.Hour)
	if !question.AcceptsSource(during, BallotSourcePreVote) {
		t.Fatalf("pre_vote should be accepted while the remote window is open")
	}
	if question.AcceptsSource(during, BallotSourceLive) {
		t.Fatalf("live ballot must be rejected before the floor opens")
	}
	if question.AcceptsSource(during, BallotSourceProxy) {
		t.Fatalf("proxy ballot must be rejected before the floor opens")
	}

	floorOpened := end.Add(time.Hour)
	question.FloorOpenedAt = timePtr(floorOpened)
	liveNow := floorOpened.Add(time.Minute)
	if question.AcceptsSource(liveNow, BallotSourcePreVote) {
		t.Fatalf("pre_vote must be rejected while the floor is open")
	}
	if !question.AcceptsSource(liveNow, BallotSourceLive) {
		t.Fatalf("live ballot should be accepted while the floor is open")
	}
	if !question.AcceptsSource(liveNow, BallotSourceProxy) {
		t.Fatalf("proxy ballot should be accepted while the floor is open")
	}

	question.ClosedAt = timePtr(floorOpened.Add(time.Hour))
	afterClose := floorOpened.Add(2 * time.Hour)
	for _, source := range []BallotSource{BallotSourcePreVote, BallotSourceLive, BallotSourceProxy} {
		if question.AcceptsSource(afterClose, source) {
			t.Fatalf("source %s must be rejected after close", source)
		}
	}
}

func TestCanOpenFloorRules(t *testing.T) {
	start := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	referendum := Question{
		Kind:           QuestionKindReferendum,
		PreVotingStart: timePtr(start),
	}
	if referendum.CanOpenFloor(start.Add(time.Hour)) {
		t.Fatalf("referenda never enter the live phase")
	}

	item := Question{
		Kind:           QuestionKindAgendaItem,
		PreVotingStart: timePtr(start),
		PreVotingEnd:   timePtr(end),
	}
	if got := item.StatusAt(start.Add(-time.Hour)); got != QuestionStatusScheduled {
		t.Fatalf("before window: got %s", got)
	}
	if item.CanOpenFloor(start.Add(-time.Hour)) {
		t.Fatalf("cannot open floor before a configured remote window has run")
	}
	if item.CanOpenFloor(start.Add(time.Hour)) {
		t.Fatalf("cannot open floor while the remote window is still open")
	}
	if !item.CanOpenFloor(end.Add(time.Hour)) {
		t.Fatalf("expected floor open to be legal after the remote window closed")
	}

	item.ClosedAt = timePtr(end.Add(2 * time.Hour))
	if item.CanOpenFloor(end.Add(3 * time.Hour)) {
		t.Fatalf("cannot open floor on a closed question")
	}
}

func TestAffirmativeChoiceAndQuorumDefaults(t *testing.T) {
	question := Question{ChoiceSet: append([]string(nil), DefaultChoiceSet...)}
	if got := question.AffirmativeChoice(); got != "approve" {
		t.Fatalf("affirmative choice: got %q", got)
	}
	if got := question.QuorumPercentage(); got != DefaultQuorumPercentage {
		t.Fatalf("default quorum: got %d", got)
	}
	question.RequiredQuorumPercentage = 75
	if got := question.QuorumPercentage(); got != 75 {
		t.Fatalf("explicit quorum: got %d", got)
	}
}
