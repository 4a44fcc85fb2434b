package entities

import (
	"strings"
	"time"
)

type QuestionKind string

const (
	QuestionKindReferendum QuestionKind = "referendum"
	QuestionKindAgendaItem QuestionKind = "agenda_item"
)

type VotingType string

const (
	VotingTypeSimpleMajority    VotingType = "simple_majority"
	VotingTypeQualifiedMajority VotingType = "qualified_majority"
	VotingTypeUnanimous         VotingType = "unanimous"
)

type QuestionStatus string

const (
	QuestionStatusScheduled       QuestionStatus = "scheduled"
	QuestionStatusPreVotingOpen   QuestionStatus = "pre_voting_open"
	QuestionStatusPreVotingClosed QuestionStatus = "pre_voting_closed"
	QuestionStatusLive            QuestionStatus = "live"
	QuestionStatusClosed          QuestionStatus = "closed"
)

// DefaultChoiceSet is used when a question is created without an explicit
// choice set. The first label is always the affirmative option.
var DefaultChoiceSet = []string{"approve", "reject", "abstain"}

const DefaultQuorumPercentage = 50

// Question is a votable unit. Referenda and agenda items share the same
// lifecycle, ballot store, and tally; the kind only changes which automatic
// transitions apply (referenda never enter the live floor phase).
type Question struct {
	QuestionID               string
	BuildingID               string
	AssemblyID               string
	Kind                     QuestionKind
	Title                    string
	ChoiceSet                []string
	VotingType               VotingType
	Order                    int
	IsUrgent                 bool
	RequiredQuorumPercentage int
	TotalBuildingMills       int

	// PreVotingStart/PreVotingEnd are the effective remote-voting window.
	// For referenda this is [startDate, endDate] (end optional, open-ended).
	// For agenda items it is the assembly window, already nil when the
	// assembly disables pre-voting or the item forbids it.
	PreVotingStart *time.Time
	PreVotingEnd   *time.Time

	// FloorOpenedAt and ClosedAt are the persisted operator transitions.
	// Everything else about status is derived from the clock.
	FloorOpenedAt *time.Time
	ClosedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusAt derives the lifecycle state from persisted transitions plus the
// wall clock. Automatic window transitions are never stored, so every
// consumer that evaluates the same instant agrees on the phase.
func (q Question) StatusAt(now time.Time) QuestionStatus {
	now = now.UTC()
	if q.ClosedAt != nil && !q.ClosedAt.UTC().After(now) {
		return QuestionStatusClosed
	}
	if q.Kind == QuestionKindReferendum {
		if q.PreVotingEnd != nil && now.After(q.PreVotingEnd.UTC()) {
			return QuestionStatusClosed
		}
		if q.PreVotingStart != nil && !now.Before(q.PreVotingStart.UTC()) {
			return QuestionStatusPreVotingOpen
		}
		return QuestionStatusScheduled
	}
	if q.FloorOpenedAt != nil && !q.FloorOpenedAt.UTC().After(now) {
		return QuestionStatusLive
	}
	if q.PreVotingStart != nil && q.PreVotingEnd != nil {
		switch {
		case now.After(q.PreVotingEnd.UTC()):
			return QuestionStatusPreVotingClosed
		case !now.Before(q.PreVotingStart.UTC()):
			return QuestionStatusPreVotingOpen
		}
	}
	return QuestionStatusScheduled
}

// AcceptsSource is the ballot legality table: pre-votes only while the
// remote window is open, live and proxy ballots only while the floor is open.
func (q Question) AcceptsSource(now time.Time, source BallotSource) bool {
	switch q.StatusAt(now) {
	case QuestionStatusPreVotingOpen:
		return source == BallotSourcePreVote
	case QuestionStatusLive:
		return source == BallotSourceLive || source == BallotSourceProxy
	default:
		return false
	}
}

// CanOpenFloor reports whether the operator "open floor" transition is legal:
// only agenda items, only before closing, and never while the remote window
// is still open. A scheduled item with a configured window that has not
// started yet must wait it out; opening early would void the remote phase.
func (q Question) CanOpenFloor(now time.Time) bool {
	if q.Kind != QuestionKindAgendaItem {
		return false
	}
	switch q.StatusAt(now) {
	case QuestionStatusScheduled:
		return q.PreVotingStart == nil
	case QuestionStatusPreVotingClosed:
		return true
	default:
		return false
	}
}

func (q Question) HasChoice(choice string) bool {
	choice = strings.TrimSpace(choice)
	for _, label := range q.ChoiceSet {
		if label == choice {
			return true
		}
	}
	return false
}

// AffirmativeChoice is the label measured against qualified-majority and
// unanimity thresholds. By convention it is the first label of the set.
func (q Question) AffirmativeChoice() string {
	if len(q.ChoiceSet) == 0 {
		return ""
	}
	return q.ChoiceSet[0]
}

func (q Question) QuorumPercentage() int {
	if q.RequiredQuorumPercentage <= 0 {
		return DefaultQuorumPercentage
	}
	return q.RequiredQuorumPercentage
}

// Assembly is the container for agenda items. It is never voted on itself;
// it contributes the building total and the shared pre-voting window.
type Assembly struct {
	AssemblyID         string
	BuildingID         string
	ScheduledDate      time.Time
	TotalBuildingMills int
	PreVotingEnabled   bool
	PreVotingStart     *time.Time
	PreVotingEnd       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
