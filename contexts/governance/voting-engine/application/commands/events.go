package commands

import (
	"encoding/json"
	"time"

	"oikos/contexts/governance/voting-engine/ports"
)

func newGovernanceEnvelope(
	eventID string,
	eventType string,
	questionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Command-side events are partitioned by question for stable ordering on
	// question-scoped consumers (dashboards, kiosk banner).
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
		PartitionKey:     questionID,
		Data:             payload,
	}, nil
}
