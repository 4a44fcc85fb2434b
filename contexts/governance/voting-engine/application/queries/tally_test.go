package queries

import (
	"testing"
	"time"

	"oikos/contexts/governance/voting-engine/domain/entities"
)

var tallyNow = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

func tallyQuestion(totalMills int) entities.Question {
	start := tallyNow.Add(-time.Hour)
	return entities.Question{
		QuestionID:         "question-1",
		BuildingID:         "building-1",
		Kind:               entities.QuestionKindReferendum,
		ChoiceSet:          append([]string(nil), entities.DefaultChoiceSet...),
		VotingType:         entities.VotingTypeSimpleMajority,
		TotalBuildingMills: totalMills,
		PreVotingStart:     &start,
	}
}

func rosterOf(entries ...entities.RosterEntry) entities.Roster {
	return entities.NewRoster(entries)
}

func ballot(voterID string, choice string) entities.Ballot {
	return entities.Ballot{
		QuestionID: "question-1",
		VoterID:    voterID,
		Choice:     choice,
		Source:     entities.BallotSourcePreVote,
		CastAt:     tallyNow,
	}
}

func TestComputeTallyWeightsByMills(t *testing.T) {
	roster := rosterOf(
		entities.RosterEntry{VoterID: "voter-a", ApartmentNumber: "1", Mills: 300},
		entities.RosterEntry{VoterID: "voter-b", ApartmentNumber: "2", Mills: 300},
		entities.RosterEntry{VoterID: "voter-c", ApartmentNumber: "3", Mills: 400},
	)
	ballots := []entities.Ballot{
		ballot("voter-a", "approve"),
		ballot("voter-b", "approve"),
		ballot("voter-c", "reject"),
	}

	result := ComputeTally(tallyQuestion(1000), roster, ballots, tallyNow)

	if result.MillsByChoice["approve"] != 600 || result.MillsByChoice["reject"] != 400 {
		t.Fatalf("mills: approve=%d reject=%d", result.MillsByChoice["approve"], result.MillsByChoice["reject"])
	}
	if result.CountsByChoice["approve"] != 2 || result.CountsByChoice["reject"] != 1 {
		t.Fatalf("counts: approve=%d reject=%d", result.CountsByChoice["approve"], result.CountsByChoice["reject"])
	}
	if result.PercentagesByMills["approve"] != 60 || result.PercentagesByMills["reject"] != 40 {
		t.Fatalf("percentages: %v", result.PercentagesByMills)
	}
	if result.TotalMillsVoted != 1000 {
		t.Fatalf("total mills voted: %d", result.TotalMillsVoted)
	}
	if result.ParticipationPercentage != 100 {
		t.Fatalf("participation: %d", result.ParticipationPercentage)
	}
	if !result.QuorumMet || !result.ApprovalMet || !result.IsValid {
		t.Fatalf("expected valid outcome, got quorum=%v approval=%v valid=%v",
			result.QuorumMet, result.ApprovalMet, result.IsValid)
	}
	if result.EligibleVotersCount != 3 {
		t.Fatalf("eligible voters: %d", result.EligibleVotersCount)
	}
}

func TestComputeTallyQuorumFailure(t *testing.T) {
	roster := rosterOf(
		entities.RosterEntry{VoterID: "voter-a", ApartmentNumber: "1", Mills: 300},
		entities.RosterEntry{VoterID: "voter-b", ApartmentNumber: "2", Mills: 300},
		entities.RosterEntry{VoterID: "voter-c", ApartmentNumber: "3", Mills: 400},
	)
	ballots := []entities.Ballot{ballot("voter-a", "approve")}

	result := ComputeTally(tallyQuestion(1000), roster, ballots, tallyNow)

	if result.TotalMillsVoted != 300 {
		t.Fatalf("total mills voted: %d", result.TotalMillsVoted)
	}
	if result.ParticipationPercentage != 30 {
		t.Fatalf("participation: %d", result.ParticipationPercentage)
	}
	if result.QuorumMet {
		t.Fatalf("quorum must fail at 30%% participation with a 50%% requirement")
	}
	if result.IsValid {
		t.Fatalf("result must be invalid when quorum fails")
	}
}

func TestComputeTallyQuorumBoundaryIsExact(t *testing.T) {
	// 500 of 1000 mills is exactly 50%: the comparison is exact
	// cross-multiplication, so the boundary counts as met.
	roster := rosterOf(
		entities.RosterEntry{VoterID: "voter-a", ApartmentNumber: "1", Mills: 500},
		entities.RosterEntry{VoterID: "voter-b", ApartmentNumber: "2", Mills: 500},
	)
	ballots := []entities.Ballot{ballot("voter-a", "approve")}

	result := ComputeTally(tallyQuestion(1000), roster, ballots, tallyNow)
	if !result.QuorumMet {
		t.Fatalf("exact 50%% participation must satisfy a 50%% quorum")
	}
}

func TestComputeTallyProxyDelegation(t *testing.T) {
	question := tallyQuestion(1000)
	roster := rosterOf(
		entities.RosterEntry{VoterID: "voter-a", ApartmentNumber: "1", Mills: 300, ProxyForVoterID: "voter-b"},
		entities.RosterEntry{VoterID: "voter-b", ApartmentNumber: "2", Mills: 300},
		entities.RosterEntry{VoterID: "voter-c", ApartmentNumber: "3", Mills: 400},
	)

	// Delegate votes while the delegator is absent: both apartments' mills
	// ride the delegate's ballot.
	result := ComputeTally(question, roster, []entities.Ballot{ballot("voter-a", "approve")}, tallyNow)
	if result.MillsByChoice["approve"] != 600 {
		t.Fatalf("delegate weight: got %d, want 600", result.MillsByChoice["approve"])
	}
	if result.TotalMillsVoted != 600 {
		t.Fatalf("total mills voted: %d", result.TotalMillsVoted)
	}

	// Once the delegator casts their own ballot the delegation stops
	// counting, so no mills are ever counted twice.
	result = ComputeTally(question, roster, []entities.Ballot{
		ballot("voter-a", "approve"),
		ballot("voter-b", "reject"),
	}, tallyNow)
	if result.MillsByChoice["approve"] != 300 {
		t.Fatalf("delegate weight after own ballot: got %d, want 300", result.MillsByChoice["approve"])
	}
	if result.MillsByChoice["reject"] != 300 {
		t.Fatalf("delegator weight: got %d, want 300", result.MillsByChoice["reject"])
	}
	if result.TotalMillsVoted != 600 {
		t.Fatalf("total mills voted with both ballots: %d", result.TotalMillsVoted)
	}
}

func TestComputeTallyQualifiedMajority(t *testing.T) {
	question := tallyQuestion(1000)
	question.VotingType = entities.VotingTypeQualifiedMajority
	roster := rosterOf(
		entities.RosterEntry{VoterID: "voter-a", ApartmentNumber: "1", Mills: 600},
		entities.RosterEntry{VoterID: "voter-b", ApartmentNumber: "2", Mills: 300},
		entities.RosterEntry{VoterID: "voter-c", ApartmentNumber: "3", Mills: 100},
	)

	// 600 of 900 voting mills is exactly two thirds.
	result := ComputeTally(question, roster, []entities.Ballot{
		ballot("voter-a", "approve"),
		ballot("voter-b", "reject"),
	}, tallyNow)
	if !result.ApprovalMet {
		t.Fatalf("exactly two thirds must satisfy a qualified majority")
	}

	// 600 of 1000 voting mills falls short of two thirds.
	result = ComputeTally(question, roster, []entities.Ballot{
		ballot("voter-a", "approve"),
		ballot("voter-b", "reject"),
		ballot("voter-c", "reject"),
	}, tallyNow)
	if result.ApprovalMet {
		t.Fatalf("60%% of voting mills must fail a qualified majority")
	}
}

func TestComputeTallyUnanimous(t *testing.T) {
	question := tallyQuestion(1000)
	question.VotingType = entities.VotingTypeUnanimous
	roster := rosterOf(
		entities.RosterEntry{VoterID: "voter-a", ApartmentNumber: "1", Mills: 600},
		entities.RosterEntry{VoterID: "voter-b", ApartmentNumber: "2", Mills: 400},
	)

	result := ComputeTally(question, roster, []entities.Ballot{
		ballot("voter-a", "approve"),
		ballot("voter-b", "approve"),
	}, tallyNow)
	if !result.ApprovalMet {
		t.Fatalf("all voting mills on approve must satisfy unanimity")
	}

	result = ComputeTally(question, roster, []entities.Ballot{
		ballot("voter-a", "approve"),
		ballot("voter-b", "abstain"),
	}, tallyNow)
	if result.ApprovalMet {
		t.Fatalf("an abstention must break unanimity")
	}
}

func TestComputeTallyIgnoresUnknownVotersAndEmptyRoster(t *testing.T) {
	result := ComputeTally(tallyQuestion(0), rosterOf(), []entities.Ballot{ballot("ghost", "approve")}, tallyNow)
	if result.TotalMillsVoted != 0 {
		t.Fatalf("ballots outside the roster must carry no weight, got %d", result.TotalMillsVoted)
	}
	if result.QuorumMet {
		t.Fatalf("a zero-mills building can never reach quorum")
	}
	if result.ParticipationPercentage != 0 {
		t.Fatalf("participation with zero total mills: %d", result.ParticipationPercentage)
	}
}

func TestComputeTallyCountsAbsentVoters(t *testing.T) {
	// A mailed-in pre-vote weighs the same whether the owner shows up or not.
	roster := rosterOf(
		entities.RosterEntry{VoterID: "voter-a", ApartmentNumber: "1", Mills: 600, IsPresent: true},
		entities.RosterEntry{VoterID: "voter-b", ApartmentNumber: "2", Mills: 400, IsPresent: false},
	)
	ballots := []entities.Ballot{
		ballot("voter-a", "approve"),
		ballot("voter-b", "reject"),
	}

	result := ComputeTally(tallyQuestion(1000), roster, ballots, tallyNow)

	if result.TotalMillsVoted != 1000 {
		t.Fatalf("total mills voted: %d", result.TotalMillsVoted)
	}
	if result.ParticipationPercentage != 100 {
		t.Fatalf("an absent voter's ballot must count toward participation, got %d", result.ParticipationPercentage)
	}
	if result.MillsByChoice["reject"] != 400 {
		t.Fatalf("absent voter's mills: %d", result.MillsByChoice["reject"])
	}
	if !result.QuorumMet {
		t.Fatalf("quorum must be met regardless of physical attendance")
	}
}
