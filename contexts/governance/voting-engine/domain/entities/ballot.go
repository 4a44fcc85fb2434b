package entities

import "time"

type BallotSource string

const (
	BallotSourcePreVote BallotSource = "pre_vote"
	BallotSourceLive    BallotSource = "live"
	BallotSourceProxy   BallotSource = "proxy"
)

func (s BallotSource) Valid() bool {
	switch s {
	case BallotSourcePreVote, BallotSourceLive, BallotSourceProxy:
		return true
	default:
		return false
	}
}

// Consent records the remote voter's acceptance of the voting terms. It is
// mandatory for pre-votes; live and proxy ballots are facilitator-witnessed
// and carry no consent record.
type Consent struct {
	Accepted bool
	Version  string
	Via      string
}

// Ballot is the single effective ballot for a (question, voter) pair.
// Casting again replaces the row; superseded rows live only in the audit log.
type Ballot struct {
	QuestionID string
	VoterID    string
	Choice     string
	Source     BallotSource
	// CastAt is the client-supplied timestamp. It is informational and
	// audit-only; conflict resolution uses store arrival order.
	CastAt  time.Time
	Consent *Consent
	// Version is the store's per-key CAS counter. Zero means "no row yet".
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BallotAuditEntry is an append-only record of a ballot as it stood when it
// was superseded or first written. Never read by the tally.
type BallotAuditEntry struct {
	AuditID    string
	QuestionID string
	VoterID    string
	Choice     string
	Source     BallotSource
	CastAt     time.Time
	RecordedAt time.Time
}
