package ports

import (
	"context"
	"encoding/json"
	"time"

	"oikos/contexts/governance/voting-engine/domain/entities"
)

// QuestionRepository persists questions, assemblies, and the operator
// lifecycle transitions. Automatic window transitions are derived and never
// written here.
type QuestionRepository interface {
	SaveQuestion(ctx context.Context, question entities.Question) error
	GetQuestion(ctx context.Context, questionID string) (entities.Question, error)
	// ListElapsedReferenda returns referenda whose end date has passed but
	// whose close has not yet been persisted. Used by the sweeper.
	ListElapsedReferenda(ctx context.Context, now time.Time) ([]entities.Question, error)
	SaveAssembly(ctx context.Context, assembly entities.Assembly) error
	GetAssembly(ctx context.Context, assemblyID string) (entities.Assembly, error)
}

// RosterRepository stores the per-question voter snapshot. The snapshot is
// written once at question creation and read-only afterwards.
type RosterRepository interface {
	SaveRoster(ctx context.Context, questionID string, entries []entities.RosterEntry) error
	GetRoster(ctx context.Context, questionID string) ([]entities.RosterEntry, error)
}

// BallotRepository is the durable ballot store: one effective row per
// (question, voter) with a per-key version for compare-and-swap, and an
// append-only audit log of superseded rows.
type BallotRepository interface {
	GetBallot(ctx context.Context, questionID string, voterID string) (entities.Ballot, bool, error)
	// UpsertBallot commits only when the stored row's version equals
	// expectedVersion (zero meaning no row yet), appending the previous row
	// to the audit log in the same atomic step. A mismatch returns
	// ErrVersionConflict so the caller can re-read and retry.
	UpsertBallot(ctx context.Context, ballot entities.Ballot, expectedVersion int64) (entities.Ballot, error)
	ListBallots(ctx context.Context, questionID string) ([]entities.Ballot, error)
	GetAuditTrail(ctx context.Context, questionID string, voterID string) ([]entities.BallotAuditEntry, error)
}

// OwnershipRegistry is the external read-only collaborator that supplies
// apartment mills. The engine snapshots it once per question.
type OwnershipRegistry interface {
	GetVoterRoster(ctx context.Context, buildingID string) ([]entities.RosterEntry, error)
	GetTotalMills(ctx context.Context, buildingID string) (int, error)
}

// TallyCache is the read model in front of the tally engine: a short-TTL
// cache keyed by question id, invalidated on every successful write.
type TallyCache interface {
	Get(ctx context.Context, questionID string, now time.Time) (entities.TallyResult, bool, error)
	Put(ctx context.Context, result entities.TallyResult, expiresAt time.Time) error
	Invalidate(ctx context.Context, questionID string) error
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	OutboxWriter
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
