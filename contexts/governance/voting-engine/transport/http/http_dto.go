package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateAssemblyRequest struct {
	BuildingID       string `json:"building_id"`
	ScheduledDate    string `json:"scheduled_date"`
	PreVotingEnabled bool   `json:"pre_voting_enabled"`
	PreVotingStart   string `json:"pre_voting_start,omitempty"`
	PreVotingEnd     string `json:"pre_voting_end,omitempty"`
}

type AssemblyResponse struct {
	AssemblyID         string `json:"assembly_id"`
	BuildingID         string `json:"building_id"`
	ScheduledDate      string `json:"scheduled_date"`
	TotalBuildingMills int    `json:"total_building_mills"`
	PreVotingEnabled   bool   `json:"pre_voting_enabled"`
	PreVotingStart     string `json:"pre_voting_start,omitempty"`
	PreVotingEnd       string `json:"pre_voting_end,omitempty"`
}

type CreateQuestionRequest struct {
	Kind                     string   `json:"kind"`
	BuildingID               string   `json:"building_id,omitempty"`
	AssemblyID               string   `json:"assembly_id,omitempty"`
	Title                    string   `json:"title"`
	ChoiceSet                []string `json:"choice_set,omitempty"`
	VotingType               string   `json:"voting_type,omitempty"`
	Order                    int      `json:"order,omitempty"`
	AllowsPreVoting          bool     `json:"allows_pre_voting,omitempty"`
	IsUrgent                 bool     `json:"is_urgent,omitempty"`
	RequiredQuorumPercentage int      `json:"required_quorum_percentage,omitempty"`
	StartDate                string   `json:"start_date,omitempty"`
	EndDate                  string   `json:"end_date,omitempty"`
}

type QuestionResponse struct {
	QuestionID               string   `json:"question_id"`
	BuildingID               string   `json:"building_id"`
	AssemblyID               string   `json:"assembly_id,omitempty"`
	Kind                     string   `json:"kind"`
	Title                    string   `json:"title"`
	ChoiceSet                []string `json:"choice_set"`
	VotingType               string   `json:"voting_type"`
	Order                    int      `json:"order,omitempty"`
	IsUrgent                 bool     `json:"is_urgent"`
	Status                   string   `json:"status"`
	RequiredQuorumPercentage int      `json:"required_quorum_percentage"`
	TotalBuildingMills       int      `json:"total_building_mills"`
	PreVotingStart           string   `json:"pre_voting_start,omitempty"`
	PreVotingEnd             string   `json:"pre_voting_end,omitempty"`
}

type ConsentPayload struct {
	Accepted bool   `json:"accepted"`
	Version  string `json:"version,omitempty"`
	Via      string `json:"via,omitempty"`
}

type CastBallotRequest struct {
	VoterID string          `json:"voter_id"`
	Choice  string          `json:"choice"`
	Source  string          `json:"source"`
	CastAt  string          `json:"cast_at,omitempty"`
	Consent *ConsentPayload `json:"consent,omitempty"`
}

type BallotResponse struct {
	QuestionID string `json:"question_id"`
	VoterID    string `json:"voter_id"`
	Choice     string `json:"choice"`
	Source     string `json:"source"`
	CastAt     string `json:"cast_at"`
	Replaced   bool   `json:"replaced"`
}

type TallyResponse struct {
	QuestionID               string         `json:"question_id"`
	Status                   string         `json:"status"`
	CountsByChoice           map[string]int `json:"counts_by_choice"`
	MillsByChoice            map[string]int `json:"mills_by_choice"`
	PercentagesByMills       map[string]int `json:"percentages_by_mills"`
	TotalMillsVoted          int            `json:"total_mills_voted"`
	EligibleVotersCount      int            `json:"eligible_voters_count"`
	TotalBuildingMills       int            `json:"total_building_mills"`
	ParticipationPercentage  int            `json:"participation_percentage"`
	RequiredQuorumPercentage int            `json:"required_quorum_percentage"`
	QuorumMet                bool           `json:"quorum_met"`
	ApprovalMet              bool           `json:"approval_met"`
	IsValid                  bool           `json:"is_valid"`
}

type LifecycleRequest struct {
	Action string `json:"action"`
}

type AuditTrailItem struct {
	Choice     string `json:"choice"`
	Source     string `json:"source"`
	CastAt     string `json:"cast_at"`
	RecordedAt string `json:"recorded_at"`
}

type AuditTrailResponse struct {
	QuestionID string           `json:"question_id"`
	VoterID    string           `json:"voter_id"`
	Items      []AuditTrailItem `json:"items"`
}
