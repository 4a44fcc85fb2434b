package workers

import (
	"encoding/json"
	"time"

	"oikos/contexts/governance/voting-engine/ports"
)

// newGovernanceEnvelope builds canonical envelopes for worker-produced
// events. Workers pass the partition key explicitly because it varies by
// topic.
func newGovernanceEnvelope(
	eventID string,
	eventType string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "voting-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "question_id",
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}
