package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "oikos/contexts/governance/voting-engine/application"
	"oikos/contexts/governance/voting-engine/domain/entities"
	domainerrors "oikos/contexts/governance/voting-engine/domain/errors"
	"oikos/contexts/governance/voting-engine/ports"
	sharedevents "oikos/internal/shared/events"
)

// CreateAssemblyCommand registers a general-assembly container for agenda
// items. The building total is snapshotted here so later registry edits do
// not move the quorum denominator of the assembly's items.
type CreateAssemblyCommand struct {
	BuildingID       string
	ScheduledDate    time.Time
	PreVotingEnabled bool
	PreVotingStart   *time.Time
	PreVotingEnd     *time.Time
}

// CreateReferendumCommand creates a stand-alone building referendum bound to
// a date window. EndDate may be nil for an open-ended referendum that only
// closes manually.
type CreateReferendumCommand struct {
	BuildingID               string
	Title                    string
	ChoiceSet                []string
	StartDate                time.Time
	EndDate                  *time.Time
	IsUrgent                 bool
	RequiredQuorumPercentage int
}

// CreateAgendaItemCommand creates one votable item of an assembly's agenda.
type CreateAgendaItemCommand struct {
	AssemblyID               string
	Title                    string
	ChoiceSet                []string
	VotingType               entities.VotingType
	Order                    int
	AllowsPreVoting          bool
	IsUrgent                 bool
	RequiredQuorumPercentage int
}

// QuestionUseCase creates questions with an immutable voter-roster snapshot
// taken from the ownership registry. A roster whose mills do not sum to the
// declared building total fails creation; the mismatch belongs to the
// registry owner and is never silently corrected here.
type QuestionUseCase struct {
	Questions ports.QuestionRepository
	Roster    ports.RosterRepository
	Registry  ports.OwnershipRegistry
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc QuestionUseCase) CreateAssembly(ctx context.Context, cmd CreateAssemblyCommand) (entities.Assembly, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.BuildingID) == "" || cmd.ScheduledDate.IsZero() {
		return entities.Assembly{}, domainerrors.ErrInvalidQuestionInput
	}
	if cmd.PreVotingEnabled && (cmd.PreVotingStart == nil || cmd.PreVotingEnd == nil) {
		return entities.Assembly{}, domainerrors.ErrInvalidQuestionInput
	}

	totalMills, err := uc.Registry.GetTotalMills(ctx, strings.TrimSpace(cmd.BuildingID))
	if err != nil {
		return entities.Assembly{}, err
	}

	now := uc.now()
	assemblyID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Assembly{}, err
	}
	assembly := entities.Assembly{
		AssemblyID:         assemblyID,
		BuildingID:         strings.TrimSpace(cmd.BuildingID),
		ScheduledDate:      cmd.ScheduledDate.UTC(),
		TotalBuildingMills: totalMills,
		PreVotingEnabled:   cmd.PreVotingEnabled,
		PreVotingStart:     normalizeOptionalTime(cmd.PreVotingStart),
		PreVotingEnd:       normalizeOptionalTime(cmd.PreVotingEnd),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := uc.Questions.SaveAssembly(ctx, assembly); err != nil {
		return entities.Assembly{}, err
	}
	logger.Info("assembly created",
		"event", "governance_assembly_created",
		"module", "governance/voting-engine",
		"layer", "application",
		"assembly_id", assembly.AssemblyID,
		"building_id", assembly.BuildingID,
		"pre_voting_enabled", assembly.PreVotingEnabled,
	)
	return assembly, nil
}

func (uc QuestionUseCase) CreateReferendum(ctx context.Context, cmd CreateReferendumCommand) (entities.Question, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.BuildingID) == "" || strings.TrimSpace(cmd.Title) == "" || cmd.StartDate.IsZero() {
		return entities.Question{}, domainerrors.ErrInvalidQuestionInput
	}
	if cmd.EndDate != nil && !cmd.EndDate.After(cmd.StartDate) {
		return entities.Question{}, domainerrors.ErrInvalidQuestionInput
	}

	now := uc.now()
	startDate := cmd.StartDate.UTC()
	question := entities.Question{
		BuildingID:               strings.TrimSpace(cmd.BuildingID),
		Kind:                     entities.QuestionKindReferendum,
		Title:                    strings.TrimSpace(cmd.Title),
		ChoiceSet:                resolveChoiceSet(cmd.ChoiceSet),
		VotingType:               entities.VotingTypeSimpleMajority,
		IsUrgent:                 cmd.IsUrgent,
		RequiredQuorumPercentage: cmd.RequiredQuorumPercentage,
		PreVotingStart:           &startDate,
		PreVotingEnd:             normalizeOptionalTime(cmd.EndDate),
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	return uc.createWithSnapshot(ctx, logger, question, question.BuildingID, 0)
}

func (uc QuestionUseCase) CreateAgendaItem(ctx context.Context, cmd CreateAgendaItemCommand) (entities.Question, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.AssemblyID) == "" || strings.TrimSpace(cmd.Title) == "" {
		return entities.Question{}, domainerrors.ErrInvalidQuestionInput
	}
	votingType := cmd.VotingType
	if votingType == "" {
		votingType = entities.VotingTypeSimpleMajority
	}
	switch votingType {
	case entities.VotingTypeSimpleMajority, entities.VotingTypeQualifiedMajority, entities.VotingTypeUnanimous:
	default:
		return entities.Question{}, domainerrors.ErrInvalidQuestionInput
	}

	assembly, err := uc.Questions.GetAssembly(ctx, strings.TrimSpace(cmd.AssemblyID))
	if err != nil {
		return entities.Question{}, err
	}

	now := uc.now()
	question := entities.Question{
		BuildingID:               assembly.BuildingID,
		AssemblyID:               assembly.AssemblyID,
		Kind:                     entities.QuestionKindAgendaItem,
		Title:                    strings.TrimSpace(cmd.Title),
		ChoiceSet:                resolveChoiceSet(cmd.ChoiceSet),
		VotingType:               votingType,
		Order:                    cmd.Order,
		IsUrgent:                 cmd.IsUrgent,
		RequiredQuorumPercentage: cmd.RequiredQuorumPercentage,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	// The remote-voting window exists only when both the assembly enables
	// pre-voting and the item allows it.
	if assembly.PreVotingEnabled && cmd.AllowsPreVoting {
		question.PreVotingStart = assembly.PreVotingStart
		question.PreVotingEnd = assembly.PreVotingEnd
	}
	return uc.createWithSnapshot(ctx, logger, question, assembly.BuildingID, assembly.TotalBuildingMills)
}

// createWithSnapshot assigns the id, snapshots the roster, verifies mills
// integrity, and persists question + roster. declaredTotal of zero means
// "ask the registry".
func (uc QuestionUseCase) createWithSnapshot(
	ctx context.Context,
	logger *slog.Logger,
	question entities.Question,
	buildingID string,
	declaredTotal int,
) (entities.Question, error) {
	entries, err := uc.Registry.GetVoterRoster(ctx, buildingID)
	if err != nil {
		return entities.Question{}, err
	}
	if declaredTotal <= 0 {
		declaredTotal, err = uc.Registry.GetTotalMills(ctx, buildingID)
		if err != nil {
			return entities.Question{}, err
		}
	}

	roster := entities.NewRoster(entries)
	if roster.TotalMills() != declaredTotal {
		logger.Error("roster mills integrity violation",
			"event", "governance_roster_integrity_failed",
			"module", "governance/voting-engine",
			"layer", "application",
			"building_id", buildingID,
			"roster_mills", roster.TotalMills(),
			"declared_total", declaredTotal,
		)
		return entities.Question{}, domainerrors.ErrIntegrity
	}

	questionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Question{}, err
	}
	question.QuestionID = questionID
	question.TotalBuildingMills = declaredTotal

	snapshot := make([]entities.RosterEntry, 0, len(entries))
	for _, entry := range entries {
		entry.QuestionID = questionID
		entry.SnapshotAt = question.CreatedAt
		snapshot = append(snapshot, entry)
	}

	if err := uc.Questions.SaveQuestion(ctx, question); err != nil {
		return entities.Question{}, err
	}
	if err := uc.Roster.SaveRoster(ctx, questionID, snapshot); err != nil {
		return entities.Question{}, err
	}
	if err := uc.appendQuestionEvent(ctx, sharedevents.TypeQuestionCreated, question, question.CreatedAt, map[string]any{
		"kind":        string(question.Kind),
		"voting_type": string(question.VotingType),
	}); err != nil {
		return entities.Question{}, err
	}

	logger.Info("question created",
		"event", "governance_question_created",
		"module", "governance/voting-engine",
		"layer", "application",
		"question_id", question.QuestionID,
		"building_id", question.BuildingID,
		"kind", string(question.Kind),
		"eligible_voters", len(snapshot),
		"total_building_mills", question.TotalBuildingMills,
	)
	return question, nil
}

func (uc QuestionUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc QuestionUseCase) appendQuestionEvent(
	ctx context.Context,
	eventType string,
	question entities.Question,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"question_id": question.QuestionID,
		"building_id": question.BuildingID,
		"occurred_at": occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	envelope, err := newGovernanceEnvelope(eventID, eventType, question.QuestionID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func resolveChoiceSet(choices []string) []string {
	cleaned := make([]string, 0, len(choices))
	for _, choice := range choices {
		choice = strings.TrimSpace(choice)
		if choice != "" {
			cleaned = append(cleaned, choice)
		}
	}
	if len(cleaned) == 0 {
		return append([]string(nil), entities.DefaultChoiceSet...)
	}
	return cleaned
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
