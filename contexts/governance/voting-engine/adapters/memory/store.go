package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"oikos/contexts/governance/voting-engine/domain/entities"
	domainerrors "oikos/contexts/governance/voting-engine/domain/errors"
	"oikos/contexts/governance/voting-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type tallyRecord struct {
	result    entities.TallyResult
	expiresAt time.Time
}

// Store is the in-memory adapter backing tests and local wiring. It
// implements every port of the voting engine, including the ownership
// registry stub seeded through SetRegistryVoter/SetRegistryTotal.
type Store struct {
	mu sync.RWMutex

	questions  map[string]entities.Question
	assemblies map[string]entities.Assembly
	rosters    map[string][]entities.RosterEntry
	ballots    map[string]entities.Ballot
	audit      map[string][]entities.BallotAuditEntry
	tallies    map[string]tallyRecord
	outbox     map[string]outboxRecord

	registryVoters map[string][]entities.RosterEntry
	registryTotals map[string]int
}

func NewStore() *Store {
	return &Store{
		questions:      make(map[string]entities.Question),
		assemblies:     make(map[string]entities.Assembly),
		rosters:        make(map[string][]entities.RosterEntry),
		ballots:        make(map[string]entities.Ballot),
		audit:          make(map[string][]entities.BallotAuditEntry),
		tallies:        make(map[string]tallyRecord),
		outbox:         make(map[string]outboxRecord),
		registryVoters: make(map[string][]entities.RosterEntry),
		registryTotals: make(map[string]int),
	}
}

func ballotKey(questionID string, voterID string) string {
	return strings.TrimSpace(questionID) + "/" + strings.TrimSpace(voterID)
}

// SetRegistryVoter seeds one ownership-registry roster row for a building.
func (s *Store) SetRegistryVoter(buildingID string, entry entities.RosterEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buildingID = strings.TrimSpace(buildingID)
	s.registryVoters[buildingID] = append(s.registryVoters[buildingID], entry)
}

// SetRegistryTotal seeds the building's declared total mills.
func (s *Store) SetRegistryTotal(buildingID string, totalMills int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registryTotals[strings.TrimSpace(buildingID)] = totalMills
}

func (s *Store) GetVoterRoster(_ context.Context, buildingID string) ([]entities.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.registryVoters[strings.TrimSpace(buildingID)]
	return append([]entities.RosterEntry(nil), entries...), nil
}

func (s *Store) GetTotalMills(_ context.Context, buildingID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registryTotals[strings.TrimSpace(buildingID)], nil
}

func (s *Store) SaveQuestion(_ context.Context, question entities.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[strings.TrimSpace(question.QuestionID)] = question
	return nil
}

func (s *Store) GetQuestion(_ context.Context, questionID string) (entities.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[strings.TrimSpace(questionID)]
	if !ok {
		return entities.Question{}, domainerrors.ErrQuestionNotFound
	}
	return question, nil
}

func (s *Store) ListElapsedReferenda(_ context.Context, now time.Time) ([]entities.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Question, 0)
	for _, question := range s.questions {
		if question.Kind != entities.QuestionKindReferendum || question.ClosedAt != nil {
			continue
		}
		if question.PreVotingEnd != nil && now.UTC().After(question.PreVotingEnd.UTC()) {
			items = append(items, question)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].QuestionID < items[j].QuestionID
	})
	return items, nil
}

func (s *Store) SaveAssembly(_ context.Context, assembly entities.Assembly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assemblies[strings.TrimSpace(assembly.AssemblyID)] = assembly
	return nil
}

func (s *Store) GetAssembly(_ context.Context, assemblyID string) (entities.Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assembly, ok := s.assemblies[strings.TrimSpace(assemblyID)]
	if !ok {
		return entities.Assembly{}, domainerrors.ErrAssemblyNotFound
	}
	return assembly, nil
}

func (s *Store) SaveRoster(_ context.Context, questionID string, entries []entities.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters[strings.TrimSpace(questionID)] = append([]entities.RosterEntry(nil), entries...)
	return nil
}

func (s *Store) GetRoster(_ context.Context, questionID string) ([]entities.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.rosters[strings.TrimSpace(questionID)]
	return append([]entities.RosterEntry(nil), entries...), nil
}

func (s *Store) GetBallot(_ context.Context, questionID string, voterID string) (entities.Ballot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[ballotKey(questionID, voterID)]
	return ballot, ok, nil
}

// UpsertBallot commits the row only when the stored version matches the
// caller's expectation, and appends the committed row to the audit log in the
// same critical section. Arrival order at this lock is the tie-breaker for
// concurrent writers.
func (s *Store) UpsertBallot(_ context.Context, ballot entities.Ballot, expectedVersion int64) (entities.Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ballotKey(ballot.QuestionID, ballot.VoterID)
	current, exists := s.ballots[key]
	currentVersion := int64(0)
	if exists {
		currentVersion = current.Version
	}
	if currentVersion != expectedVersion {
		return entities.Ballot{}, domainerrors.ErrVersionConflict
	}

	ballot.Version = currentVersion + 1
	s.ballots[key] = ballot
	s.audit[key] = append(s.audit[key], entities.BallotAuditEntry{
		AuditID:    uuid.NewString(),
		QuestionID: ballot.QuestionID,
		VoterID:    ballot.VoterID,
		Choice:     ballot.Choice,
		Source:     ballot.Source,
		CastAt:     ballot.CastAt.UTC(),
		RecordedAt: ballot.UpdatedAt.UTC(),
	})
	return ballot, nil
}

func (s *Store) ListBallots(_ context.Context, questionID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := strings.TrimSpace(questionID) + "/"
	items := make([]entities.Ballot, 0)
	for key, ballot := range s.ballots {
		if strings.HasPrefix(key, prefix) {
			items = append(items, ballot)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].VoterID < items[j].VoterID
	})
	return items, nil
}

func (s *Store) GetAuditTrail(_ context.Context, questionID string, voterID string) ([]entities.BallotAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.audit[ballotKey(questionID, voterID)]
	return append([]entities.BallotAuditEntry(nil), trail...), nil
}

func (s *Store) Get(_ context.Context, questionID string, now time.Time) (entities.TallyResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	questionID = strings.TrimSpace(questionID)
	record, exists := s.tallies[questionID]
	if !exists {
		return entities.TallyResult{}, false, nil
	}
	if !record.expiresAt.After(now.UTC()) {
		delete(s.tallies, questionID)
		return entities.TallyResult{}, false, nil
	}
	return record.result, true, nil
}

func (s *Store) Put(_ context.Context, result entities.TallyResult, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tallies[strings.TrimSpace(result.QuestionID)] = tallyRecord{
		result:    result,
		expiresAt: expiresAt.UTC(),
	}
	return nil
}

func (s *Store) Invalidate(_ context.Context, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tallies, strings.TrimSpace(questionID))
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.QuestionRepository = (*Store)(nil)
var _ ports.RosterRepository = (*Store)(nil)
var _ ports.BallotRepository = (*Store)(nil)
var _ ports.OwnershipRegistry = (*Store)(nil)
var _ ports.TallyCache = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
