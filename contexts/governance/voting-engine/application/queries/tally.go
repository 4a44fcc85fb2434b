package queries

import (
	"context"
	"math"
	"strings"
	"time"

	"oikos/contexts/governance/voting-engine/domain/entities"
	"oikos/contexts/governance/voting-engine/ports"
)

// TallyUseCase is the tally engine: a pure, side-effect-free projection of
// the current ballot snapshot against the question's roster. It is re-derived
// on every call and safe for any number of concurrent readers; the working
// set is one row per apartment per question.
type TallyUseCase struct {
	Questions ports.QuestionRepository
	Roster    ports.RosterRepository
	Ballots   ports.BallotRepository
	Clock     ports.Clock
}

func (uc TallyUseCase) QuestionTally(ctx context.Context, questionID string) (entities.TallyResult, error) {
	questionID = strings.TrimSpace(questionID)
	question, err := uc.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	entries, err := uc.Roster.GetRoster(ctx, questionID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	ballots, err := uc.Ballots.ListBallots(ctx, questionID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	return ComputeTally(question, entities.NewRoster(entries), ballots, uc.now()), nil
}

// AuditTrail returns the full superseded-ballot history for one voter.
// Dispute-resolution only; the tally never reads it.
func (uc TallyUseCase) AuditTrail(ctx context.Context, questionID string, voterID string) ([]entities.BallotAuditEntry, error) {
	questionID = strings.TrimSpace(questionID)
	if _, err := uc.Questions.GetQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	return uc.Ballots.GetAuditTrail(ctx, questionID, strings.TrimSpace(voterID))
}

func (uc TallyUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

// ComputeTally aggregates ballots by head count and by mills. A ballot's
// weight is the voter's snapshot mills plus the mills of a voter they hold a
// delegation for, counted only while the delegator has no own ballot so no
// mills are ever counted twice.
func ComputeTally(
	question entities.Question,
	roster entities.Roster,
	ballots []entities.Ballot,
	now time.Time,
) entities.TallyResult {
	counts := make(map[string]int, len(question.ChoiceSet))
	mills := make(map[string]int, len(question.ChoiceSet))
	for _, choice := range question.ChoiceSet {
		counts[choice] = 0
		mills[choice] = 0
	}

	voted := make(map[string]bool, len(ballots))
	for _, ballot := range ballots {
		voted[ballot.VoterID] = true
	}

	totalMillsVoted := 0
	for _, ballot := range ballots {
		entry, ok := roster.Lookup(ballot.VoterID)
		if !ok {
			continue
		}
		weight := entry.Mills
		if entry.ProxyForVoterID != "" && !voted[entry.ProxyForVoterID] {
			if delegator, ok := roster.Lookup(entry.ProxyForVoterID); ok {
				weight += delegator.Mills
			}
		}
		counts[ballot.Choice]++
		mills[ballot.Choice] += weight
		totalMillsVoted += weight
	}

	percentages := make(map[string]int, len(mills))
	for choice, choiceMills := range mills {
		percentages[choice] = roundedPercentage(choiceMills, totalMillsVoted)
	}

	quorum := question.QuorumPercentage()
	// Quorum and approval are compared exactly via cross-multiplication; the
	// rounded percentages are display values only.
	quorumMet := question.TotalBuildingMills > 0 &&
		totalMillsVoted*100 >= quorum*question.TotalBuildingMills

	approveMills := mills[question.AffirmativeChoice()]
	approvalMet := true
	switch question.VotingType {
	case entities.VotingTypeQualifiedMajority:
		approvalMet = totalMillsVoted > 0 && approveMills*3 >= totalMillsVoted*2
	case entities.VotingTypeUnanimous:
		approvalMet = totalMillsVoted > 0 && approveMills == totalMillsVoted
	}

	return entities.TallyResult{
		QuestionID:              question.QuestionID,
		Status:                  question.StatusAt(now),
		CountsByChoice:          counts,
		MillsByChoice:           mills,
		PercentagesByMills:      percentages,
		TotalMillsVoted:         totalMillsVoted,
		EligibleVotersCount:     roster.Size(),
		TotalBuildingMills:      question.TotalBuildingMills,
		ParticipationPercentage: roundedPercentage(totalMillsVoted, question.TotalBuildingMills),
		RequiredQuorum:          quorum,
		QuorumMet:               quorumMet,
		ApprovalMet:             approvalMet,
		IsValid:                 quorumMet && approvalMet,
		ComputedAt:              now.UTC(),
	}
}

func roundedPercentage(part int, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}
