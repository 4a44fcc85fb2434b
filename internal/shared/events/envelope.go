package events

// Canonical topic and event-type names shared by producers and consumers.
// Event payloads travel as ports.EventEnvelope; these constants are the only
// coupling between contexts and the bus topology.
const TopicGovernanceVoting = "governance.voting"

const (
	TypeQuestionCreated     = "question.created"
	TypeQuestionFloorOpened = "question.floor_opened"
	TypeQuestionClosed      = "question.closed"
	TypeBallotCast          = "ballot.cast"
)
