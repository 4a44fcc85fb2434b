package entities

import "time"

// TallyResult is the pure projection of a question's current ballots against
// its roster snapshot. Two result bases are carried side by side: head count
// and mills.
type TallyResult struct {
	QuestionID          string
	Status              QuestionStatus
	CountsByChoice      map[string]int
	MillsByChoice       map[string]int
	PercentagesByMills  map[string]int
	TotalMillsVoted     int
	EligibleVotersCount int
	TotalBuildingMills  int
	// ParticipationPercentage counts every ballot regardless of the voter's
	// physical presence: a mailed-in pre-vote contributes to quorum even if
	// the owner never attends.
	ParticipationPercentage int
	RequiredQuorum          int
	QuorumMet               bool
	ApprovalMet             bool
	IsValid                 bool
	ComputedAt              time.Time
}
