package postgresadapter

import (
	"encoding/json"
	"strings"
	"time"

	"oikos/contexts/governance/voting-engine/domain/entities"
)

type questionModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	BuildingID     string     `gorm:"column:building_id"`
	AssemblyID     *string    `gorm:"column:assembly_id"`
	Kind           string     `gorm:"column:kind"`
	Title          string     `gorm:"column:title"`
	ChoiceSet      []byte     `gorm:"column:choice_set"`
	VotingType     string     `gorm:"column:voting_type"`
	ItemOrder      int        `gorm:"column:item_order"`
	IsUrgent       bool       `gorm:"column:is_urgent"`
	RequiredQuorum int        `gorm:"column:required_quorum"`
	TotalMills     int        `gorm:"column:total_building_mills"`
	PreVotingStart *time.Time `gorm:"column:pre_voting_start"`
	PreVotingEnd   *time.Time `gorm:"column:pre_voting_end"`
	FloorOpenedAt  *time.Time `gorm:"column:floor_opened_at"`
	ClosedAt       *time.Time `gorm:"column:closed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (questionModel) TableName() string {
	return "questions"
}

func questionModelFromEntity(question entities.Question) (questionModel, error) {
	choiceSet, err := json.Marshal(question.ChoiceSet)
	if err != nil {
		return questionModel{}, err
	}
	row := questionModel{
		ID:             strings.TrimSpace(question.QuestionID),
		BuildingID:     strings.TrimSpace(question.BuildingID),
		Kind:           string(question.Kind),
		Title:          strings.TrimSpace(question.Title),
		ChoiceSet:      choiceSet,
		VotingType:     string(question.VotingType),
		ItemOrder:      question.Order,
		IsUrgent:       question.IsUrgent,
		RequiredQuorum: question.RequiredQuorumPercentage,
		TotalMills:     question.TotalBuildingMills,
		PreVotingStart: normalizeOptionalTime(question.PreVotingStart),
		PreVotingEnd:   normalizeOptionalTime(question.PreVotingEnd),
		FloorOpenedAt:  normalizeOptionalTime(question.FloorOpenedAt),
		ClosedAt:       normalizeOptionalTime(question.ClosedAt),
		CreatedAt:      question.CreatedAt.UTC(),
		UpdatedAt:      question.UpdatedAt.UTC(),
	}
	if strings.TrimSpace(question.AssemblyID) != "" {
		assemblyID := strings.TrimSpace(question.AssemblyID)
		row.AssemblyID = &assemblyID
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m questionModel) toEntity() (entities.Question, error) {
	var choiceSet []string
	if len(m.ChoiceSet) > 0 {
		if err := json.Unmarshal(m.ChoiceSet, &choiceSet); err != nil {
			return entities.Question{}, err
		}
	}
	assemblyID := ""
	if m.AssemblyID != nil {
		assemblyID = strings.TrimSpace(*m.AssemblyID)
	}
	return entities.Question{
		QuestionID:               m.ID,
		BuildingID:               m.BuildingID,
		AssemblyID:               assemblyID,
		Kind:                     entities.QuestionKind(m.Kind),
		Title:                    m.Title,
		ChoiceSet:                choiceSet,
		VotingType:               entities.VotingType(m.VotingType),
		Order:                    m.ItemOrder,
		IsUrgent:                 m.IsUrgent,
		RequiredQuorumPercentage: m.RequiredQuorum,
		TotalBuildingMills:       m.TotalMills,
		PreVotingStart:           normalizeOptionalTime(m.PreVotingStart),
		PreVotingEnd:             normalizeOptionalTime(m.PreVotingEnd),
		FloorOpenedAt:            normalizeOptionalTime(m.FloorOpenedAt),
		ClosedAt:                 normalizeOptionalTime(m.ClosedAt),
		CreatedAt:                m.CreatedAt.UTC(),
		UpdatedAt:                m.UpdatedAt.UTC(),
	}, nil
}

type assemblyModel struct {
	ID               string     `gorm:"column:id;primaryKey"`
	BuildingID       string     `gorm:"column:building_id"`
	ScheduledDate    time.Time  `gorm:"column:scheduled_date"`
	TotalMills       int        `gorm:"column:total_building_mills"`
	PreVotingEnabled bool       `gorm:"column:pre_voting_enabled"`
	PreVotingStart   *time.Time `gorm:"column:pre_voting_start"`
	PreVotingEnd     *time.Time `gorm:"column:pre_voting_end"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (assemblyModel) TableName() string {
	return "assemblies"
}

func assemblyModelFromEntity(assembly entities.Assembly) assemblyModel {
	return assemblyModel{
		ID:               strings.TrimSpace(assembly.AssemblyID),
		BuildingID:       strings.TrimSpace(assembly.BuildingID),
		ScheduledDate:    assembly.ScheduledDate.UTC(),
		TotalMills:       assembly.TotalBuildingMills,
		PreVotingEnabled: assembly.PreVotingEnabled,
		PreVotingStart:   normalizeOptionalTime(assembly.PreVotingStart),
		PreVotingEnd:     normalizeOptionalTime(assembly.PreVotingEnd),
		CreatedAt:        assembly.CreatedAt.UTC(),
		UpdatedAt:        assembly.UpdatedAt.UTC(),
	}
}

func (m assemblyModel) toEntity() entities.Assembly {
	return entities.Assembly{
		AssemblyID:         m.ID,
		BuildingID:         m.BuildingID,
		ScheduledDate:      m.ScheduledDate.UTC(),
		TotalBuildingMills: m.TotalMills,
		PreVotingEnabled:   m.PreVotingEnabled,
		PreVotingStart:     normalizeOptionalTime(m.PreVotingStart),
		PreVotingEnd:       normalizeOptionalTime(m.PreVotingEnd),
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

type rosterModel struct {
	QuestionID      string    `gorm:"column:question_id;primaryKey"`
	VoterID         string    `gorm:"column:voter_id;primaryKey"`
	ApartmentNumber string    `gorm:"column:apartment_number"`
	DisplayName     string    `gorm:"column:display_name"`
	Mills           int       `gorm:"column:mills"`
	IsPresent       bool      `gorm:"column:is_present"`
	ProxyForVoterID *string   `gorm:"column:proxy_for_voter_id"`
	SnapshotAt      time.Time `gorm:"column:snapshot_at"`
}

func (rosterModel) TableName() string {
	return "question_voter_roster"
}

func rosterModelFromEntity(entry entities.RosterEntry) rosterModel {
	row := rosterModel{
		QuestionID:      strings.TrimSpace(entry.QuestionID),
		VoterID:         strings.TrimSpace(entry.VoterID),
		ApartmentNumber: strings.TrimSpace(entry.ApartmentNumber),
		DisplayName:     strings.TrimSpace(entry.DisplayName),
		Mills:           entry.Mills,
		IsPresent:       entry.IsPresent,
		SnapshotAt:      entry.SnapshotAt.UTC(),
	}
	if strings.TrimSpace(entry.ProxyForVoterID) != "" {
		proxyFor := strings.TrimSpace(entry.ProxyForVoterID)
		row.ProxyForVoterID = &proxyFor
	}
	return row
}

func (m rosterModel) toEntity() entities.RosterEntry {
	proxyFor := ""
	if m.ProxyForVoterID != nil {
		proxyFor = strings.TrimSpace(*m.ProxyForVoterID)
	}
	return entities.RosterEntry{
		QuestionID:      m.QuestionID,
		VoterID:         m.VoterID,
		ApartmentNumber: m.ApartmentNumber,
		DisplayName:     m.DisplayName,
		Mills:           m.Mills,
		IsPresent:       m.IsPresent,
		ProxyForVoterID: proxyFor,
		SnapshotAt:      m.SnapshotAt.UTC(),
	}
}

type ballotModel struct {
	QuestionID      string    `gorm:"column:question_id;primaryKey"`
	VoterID         string    `gorm:"column:voter_id;primaryKey"`
	Choice          string    `gorm:"column:choice"`
	Source          string    `gorm:"column:source"`
	CastAt          time.Time `gorm:"column:cast_at"`
	ConsentAccepted *bool     `gorm:"column:consent_accepted"`
	ConsentVersion  *string   `gorm:"column:consent_version"`
	ConsentVia      *string   `gorm:"column:consent_via"`
	Version         int64     `gorm:"column:version"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) ballotModel {
	row := ballotModel{
		QuestionID: strings.TrimSpace(ballot.QuestionID),
		VoterID:    strings.TrimSpace(ballot.VoterID),
		Choice:     strings.TrimSpace(ballot.Choice),
		Source:     string(ballot.Source),
		CastAt:     ballot.CastAt.UTC(),
		Version:    ballot.Version,
		CreatedAt:  ballot.CreatedAt.UTC(),
		UpdatedAt:  ballot.UpdatedAt.UTC(),
	}
	if ballot.Consent != nil {
		accepted := ballot.Consent.Accepted
		version := strings.TrimSpace(ballot.Consent.Version)
		via := strings.TrimSpace(ballot.Consent.Via)
		row.ConsentAccepted = &accepted
		row.ConsentVersion = &version
		row.ConsentVia = &via
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m ballotModel) toEntity() entities.Ballot {
	ballot := entities.Ballot{
		QuestionID: m.QuestionID,
		VoterID:    m.VoterID,
		Choice:     m.Choice,
		Source:     entities.BallotSource(m.Source),
		CastAt:     m.CastAt.UTC(),
		Version:    m.Version,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
	if m.ConsentAccepted != nil {
		consent := entities.Consent{Accepted: *m.ConsentAccepted}
		if m.ConsentVersion != nil {
			consent.Version = *m.ConsentVersion
		}
		if m.ConsentVia != nil {
			consent.Via = *m.ConsentVia
		}
		ballot.Consent = &consent
	}
	return ballot
}

type ballotAuditModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	QuestionID string    `gorm:"column:question_id"`
	VoterID    string    `gorm:"column:voter_id"`
	Choice     string    `gorm:"column:choice"`
	Source     string    `gorm:"column:source"`
	CastAt     time.Time `gorm:"column:cast_at"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
}

func (ballotAuditModel) TableName() string {
	return "ballot_audit_log"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "outbox_events"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

type ownershipModel struct {
	BuildingID      string  `gorm:"column:building_id;primaryKey"`
	VoterID         string  `gorm:"column:voter_id;primaryKey"`
	ApartmentNumber string  `gorm:"column:apartment_number"`
	DisplayName     string  `gorm:"column:display_name"`
	Mills           int     `gorm:"column:mills"`
	IsPresent       bool    `gorm:"column:is_present"`
	ProxyForVoterID *string `gorm:"column:proxy_for_voter_id"`
}

func (ownershipModel) TableName() string {
	return "building_ownership"
}

func (m ownershipModel) toEntity() entities.RosterEntry {
	proxyFor := ""
	if m.ProxyForVoterID != nil {
		proxyFor = strings.TrimSpace(*m.ProxyForVoterID)
	}
	return entities.RosterEntry{
		VoterID:         m.VoterID,
		ApartmentNumber: m.ApartmentNumber,
		DisplayName:     m.DisplayName,
		Mills:           m.Mills,
		IsPresent:       m.IsPresent,
		ProxyForVoterID: proxyFor,
	}
}
