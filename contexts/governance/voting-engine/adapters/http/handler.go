package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"oikos/contexts/governance/voting-engine/application/commands"
	"oikos/contexts/governance/voting-engine/application/queries"
	"oikos/contexts/governance/voting-engine/domain/entities"
	domainerrors "oikos/contexts/governance/voting-engine/domain/errors"
	"oikos/contexts/governance/voting-engine/ports"
	httptransport "oikos/contexts/governance/voting-engine/transport/http"
)

type Handler struct {
	Questions commands.QuestionUseCase
	Ballots   commands.BallotUseCase
	Lifecycle commands.LifecycleUseCase
	Results   queries.ResultFeed
	Tally     queries.TallyUseCase
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (h Handler) CreateAssemblyHandler(ctx context.Context, req httptransport.CreateAssemblyRequest) (httptransport.AssemblyResponse, error) {
	scheduledDate, err := parseTimestamp(req.ScheduledDate)
	if err != nil {
		return httptransport.AssemblyResponse{}, domainerrors.ErrInvalidQuestionInput
	}
	preVotingStart, err := parseOptionalTimestamp(req.PreVotingStart)
	if err != nil {
		return httptransport.AssemblyResponse{}, domainerrors.ErrInvalidQuestionInput
	}
	preVotingEnd, err := parseOptionalTimestamp(req.PreVotingEnd)
	if err != nil {
		return httptransport.AssemblyResponse{}, domainerrors.ErrInvalidQuestionInput
	}

	assembly, err := h.Questions.CreateAssembly(ctx, commands.CreateAssemblyCommand{
		BuildingID:       req.BuildingID,
		ScheduledDate:    scheduledDate,
		PreVotingEnabled: req.PreVotingEnabled,
		PreVotingStart:   preVotingStart,
		PreVotingEnd:     preVotingEnd,
	})
	if err != nil {
		return httptransport.AssemblyResponse{}, err
	}
	return httptransport.AssemblyResponse{
		AssemblyID:         assembly.AssemblyID,
		BuildingID:         assembly.BuildingID,
		ScheduledDate:      assembly.ScheduledDate.Format(time.RFC3339),
		TotalBuildingMills: assembly.TotalBuildingMills,
		PreVotingEnabled:   assembly.PreVotingEnabled,
		PreVotingStart:     formatOptionalTimestamp(assembly.PreVotingStart),
		PreVotingEnd:       formatOptionalTimestamp(assembly.PreVotingEnd),
	}, nil
}

func (h Handler) CreateQuestionHandler(ctx context.Context, req httptransport.CreateQuestionRequest) (httptransport.QuestionResponse, error) {
	switch entities.QuestionKind(strings.TrimSpace(req.Kind)) {
	case entities.QuestionKindReferendum:
		startDate, err := parseTimestamp(req.StartDate)
		if err != nil {
			return httptransport.QuestionResponse{}, domainerrors.ErrInvalidQuestionInput
		}
		endDate, err := parseOptionalTimestamp(req.EndDate)
		if err != nil {
			return httptransport.QuestionResponse{}, domainerrors.ErrInvalidQuestionInput
		}
		question, err := h.Questions.CreateReferendum(ctx, commands.CreateReferendumCommand{
			BuildingID:               req.BuildingID,
			Title:                    req.Title,
			ChoiceSet:                req.ChoiceSet,
			StartDate:                startDate,
			EndDate:                  endDate,
			IsUrgent:                 req.IsUrgent,
			RequiredQuorumPercentage: req.RequiredQuorumPercentage,
		})
		if err != nil {
			return httptransport.QuestionResponse{}, err
		}
		return h.mapQuestion(question), nil
	case entities.QuestionKindAgendaItem:
		question, err := h.Questions.CreateAgendaItem(ctx, commands.CreateAgendaItemCommand{
			AssemblyID:               req.AssemblyID,
			Title:                    req.Title,
			ChoiceSet:                req.ChoiceSet,
			VotingType:               entities.VotingType(strings.TrimSpace(req.VotingType)),
			Order:                    req.Order,
			AllowsPreVoting:          req.AllowsPreVoting,
			IsUrgent:                 req.IsUrgent,
			RequiredQuorumPercentage: req.RequiredQuorumPercentage,
		})
		if err != nil {
			return httptransport.QuestionResponse{}, err
		}
		return h.mapQuestion(question), nil
	default:
		return httptransport.QuestionResponse{}, domainerrors.ErrInvalidQuestionInput
	}
}

func (h Handler) GetQuestionHandler(ctx context.Context, questionID string) (httptransport.QuestionResponse, error) {
	question, err := h.Tally.Questions.GetQuestion(ctx, questionID)
	if err != nil {
		return httptransport.QuestionResponse{}, err
	}
	return h.mapQuestion(question), nil
}

func (h Handler) CastBallotHandler(ctx context.Context, questionID string, req httptransport.CastBallotRequest) (httptransport.BallotResponse, error) {
	castAt, err := parseOptionalTimestamp(req.CastAt)
	if err != nil {
		return httptransport.BallotResponse{}, domainerrors.ErrInvalidBallotInput
	}
	cmd := commands.CastBallotCommand{
		QuestionID: questionID,
		VoterID:    req.VoterID,
		Choice:     req.Choice,
		Source:     entities.BallotSource(strings.TrimSpace(req.Source)),
	}
	if castAt != nil {
		cmd.CastAt = *castAt
	}
	if req.Consent != nil {
		cmd.Consent = &entities.Consent{
			Accepted: req.Consent.Accepted,
			Version:  strings.TrimSpace(req.Consent.Version),
			Via:      strings.TrimSpace(req.Consent.Via),
		}
	}
	result, err := h.Ballots.CastBallot(ctx, cmd)
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return httptransport.BallotResponse{
		QuestionID: result.Ballot.QuestionID,
		VoterID:    result.Ballot.VoterID,
		Choice:     result.Ballot.Choice,
		Source:     string(result.Ballot.Source),
		CastAt:     result.Ballot.CastAt.Format(time.RFC3339),
		Replaced:   result.Replaced,
	}, nil
}

func (h Handler) TallyHandler(ctx context.Context, questionID string, refresh bool) (httptransport.TallyResponse, error) {
	result, err := h.Results.QuestionResults(ctx, questionID, refresh)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return httptransport.TallyResponse{
		QuestionID:               result.QuestionID,
		Status:                   string(result.Status),
		CountsByChoice:           result.CountsByChoice,
		MillsByChoice:            result.MillsByChoice,
		PercentagesByMills:       result.PercentagesByMills,
		TotalMillsVoted:          result.TotalMillsVoted,
		EligibleVotersCount:      result.EligibleVotersCount,
		TotalBuildingMills:       result.TotalBuildingMills,
		ParticipationPercentage:  result.ParticipationPercentage,
		RequiredQuorumPercentage: result.RequiredQuorum,
		QuorumMet:                result.QuorumMet,
		ApprovalMet:              result.ApprovalMet,
		IsValid:                  result.IsValid,
	}, nil
}

func (h Handler) LifecycleHandler(ctx context.Context, questionID string, req httptransport.LifecycleRequest) (httptransport.QuestionResponse, error) {
	switch strings.TrimSpace(req.Action) {
	case "open_live":
		question, err := h.Lifecycle.OpenFloor(ctx, questionID)
		if err != nil {
			return httptransport.QuestionResponse{}, err
		}
		return h.mapQuestion(question), nil
	case "close":
		question, err := h.Lifecycle.Close(ctx, questionID)
		if err != nil {
			return httptransport.QuestionResponse{}, err
		}
		return h.mapQuestion(question), nil
	default:
		return httptransport.QuestionResponse{}, domainerrors.ErrInvalidQuestionInput
	}
}

func (h Handler) AuditTrailHandler(ctx context.Context, questionID string, voterID string) (httptransport.AuditTrailResponse, error) {
	trail, err := h.Tally.AuditTrail(ctx, questionID, voterID)
	if err != nil {
		return httptransport.AuditTrailResponse{}, err
	}
	items := make([]httptransport.AuditTrailItem, 0, len(trail))
	for _, entry := range trail {
		items = append(items, httptransport.AuditTrailItem{
			Choice:     entry.Choice,
			Source:     string(entry.Source),
			CastAt:     entry.CastAt.Format(time.RFC3339),
			RecordedAt: entry.RecordedAt.Format(time.RFC3339),
		})
	}
	return httptransport.AuditTrailResponse{
		QuestionID: strings.TrimSpace(questionID),
		VoterID:    strings.TrimSpace(voterID),
		Items:      items,
	}, nil
}

func (h Handler) mapQuestion(question entities.Question) httptransport.QuestionResponse {
	now := time.Now().UTC()
	if h.Clock != nil {
		now = h.Clock.Now().UTC()
	}
	return httptransport.QuestionResponse{
		QuestionID:               question.QuestionID,
		BuildingID:               question.BuildingID,
		AssemblyID:               question.AssemblyID,
		Kind:                     string(question.Kind),
		Title:                    question.Title,
		ChoiceSet:                question.ChoiceSet,
		VotingType:               string(question.VotingType),
		Order:                    question.Order,
		IsUrgent:                 question.IsUrgent,
		Status:                   string(question.StatusAt(now)),
		RequiredQuorumPercentage: question.QuorumPercentage(),
		TotalBuildingMills:       question.TotalBuildingMills,
		PreVotingStart:           formatOptionalTimestamp(question.PreVotingStart),
		PreVotingEnd:             formatOptionalTimestamp(question.PreVotingEnd),
	}
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}

func parseOptionalTimestamp(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

func formatOptionalTimestamp(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
