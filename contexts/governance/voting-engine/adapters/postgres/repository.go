package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"oikos/contexts/governance/voting-engine/domain/entities"
	domainerrors "oikos/contexts/governance/voting-engine/domain/errors"
	"oikos/contexts/governance/voting-engine/ports"

	"oikos/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SaveQuestion(ctx context.Context, question entities.Question) error {
	row, err := questionModelFromEntity(question)
	if err != nil {
		return err
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"title":            row.Title,
			"choice_set":       row.ChoiceSet,
			"voting_type":      row.VotingType,
			"item_order":       row.ItemOrder,
			"is_urgent":        row.IsUrgent,
			"required_quorum":  row.RequiredQuorum,
			"pre_voting_start": row.PreVotingStart,
			"pre_voting_end":   row.PreVotingEnd,
			"floor_opened_at":  row.FloorOpenedAt,
			"closed_at":        row.ClosedAt,
			"updated_at":       row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("governance_repo_save_question_failed", create.Error,
			"question_id", strings.TrimSpace(question.QuestionID),
		)
	}
	return nil
}

func (r *Repository) GetQuestion(ctx context.Context, questionID string) (entities.Question, error) {
	var row questionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(questionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Question{}, domainerrors.ErrQuestionNotFound
		}
		return entities.Question{}, r.logError("governance_repo_get_question_failed", err,
			"question_id", strings.TrimSpace(questionID),
		)
	}
	return row.toEntity()
}

func (r *Repository) ListElapsedReferenda(ctx context.Context, now time.Time) ([]entities.Question, error) {
	var rows []questionModel
	err := r.db.WithContext(ctx).
		Where("kind = ?", string(entities.QuestionKindReferendum)).
		Where("closed_at IS NULL").
		Where("pre_voting_end IS NOT NULL AND pre_voting_end < ?", now.UTC()).
		Order("pre_voting_end ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("governance_repo_list_elapsed_referenda_failed", err)
	}
	items := make([]entities.Question, 0, len(rows))
	for _, row := range rows {
		question, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, question)
	}
	return items, nil
}

func (r *Repository) SaveAssembly(ctx context.Context, assembly entities.Assembly) error {
	row := assemblyModelFromEntity(assembly)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"scheduled_date":     row.ScheduledDate,
			"pre_voting_enabled": row.PreVotingEnabled,
			"pre_voting_start":   row.PreVotingStart,
			"pre_voting_end":     row.PreVotingEnd,
			"updated_at":         row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("governance_repo_save_assembly_failed", create.Error,
			"assembly_id", strings.TrimSpace(assembly.AssemblyID),
		)
	}
	return nil
}

func (r *Repository) GetAssembly(ctx context.Context, assemblyID string) (entities.Assembly, error) {
	var row assemblyModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(assemblyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Assembly{}, domainerrors.ErrAssemblyNotFound
		}
		return entities.Assembly{}, r.logError("governance_repo_get_assembly_failed", err,
			"assembly_id", strings.TrimSpace(assemblyID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveRoster(ctx context.Context, questionID string, entries []entities.RosterEntry) error {
	rows := make([]rosterModel, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, rosterModelFromEntity(entry))
	}
	if len(rows) == 0 {
		return nil
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "question_id"}, {Name: "voter_id"}},
		DoNothing: true,
	}).Create(&rows)
	if create.Error != nil {
		return r.logError("governance_repo_save_roster_failed", create.Error,
			"question_id", strings.TrimSpace(questionID),
			"entries", len(entries),
		)
	}
	return nil
}

func (r *Repository) GetRoster(ctx context.Context, questionID string) ([]entities.RosterEntry, error) {
	var rows []rosterModel
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", strings.TrimSpace(questionID)).
		Order("apartment_number ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_get_roster_failed", err,
			"question_id", strings.TrimSpace(questionID),
		)
	}
	items := make([]entities.RosterEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetBallot(ctx context.Context, questionID string, voterID string) (entities.Ballot, bool, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("question_id = ?", strings.TrimSpace(questionID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, false, nil
		}
		return entities.Ballot{}, false, r.logError("governance_repo_get_ballot_failed", err,
			"question_id", strings.TrimSpace(questionID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return row.toEntity(), true, nil
}

// UpsertBallot is the per-key compare-and-swap: the insert path relies on the
// (question_id, voter_id) unique key, the replace path on a version-guarded
// update. The audit row is written in the same transaction, so no committed
// ballot ever misses its history entry.
func (r *Repository) UpsertBallot(ctx context.Context, ballot entities.Ballot, expectedVersion int64) (entities.Ballot, error) {
	row := ballotModelFromEntity(ballot)
	row.Version = expectedVersion + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expectedVersion == 0 {
			create := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "question_id"}, {Name: "voter_id"}},
				DoNothing: true,
			}).Create(&row)
			if create.Error != nil {
				if isUniqueViolation(create.Error) {
					return domainerrors.ErrVersionConflict
				}
				return create.Error
			}
			if create.RowsAffected == 0 {
				return domainerrors.ErrVersionConflict
			}
		} else {
			update := tx.Model(&ballotModel{}).
				Where("question_id = ?", row.QuestionID).
				Where("voter_id = ?", row.VoterID).
				Where("version = ?", expectedVersion).
				Updates(map[string]any{
					"choice":           row.Choice,
					"source":           row.Source,
					"cast_at":          row.CastAt,
					"consent_accepted": row.ConsentAccepted,
					"consent_version":  row.ConsentVersion,
					"consent_via":      row.ConsentVia,
					"version":          row.Version,
					"updated_at":       row.UpdatedAt,
				})
			if update.Error != nil {
				return update.Error
			}
			if update.RowsAffected == 0 {
				return domainerrors.ErrVersionConflict
			}
		}

		audit := ballotAuditModel{
			ID:         uuid.NewString(),
			QuestionID: row.QuestionID,
			VoterID:    row.VoterID,
			Choice:     row.Choice,
			Source:     row.Source,
			CastAt:     row.CastAt,
			RecordedAt: row.UpdatedAt,
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVersionConflict) {
			return entities.Ballot{}, err
		}
		return entities.Ballot{}, r.logError("governance_repo_upsert_ballot_failed", err,
			"question_id", strings.TrimSpace(ballot.QuestionID),
			"voter_id", strings.TrimSpace(ballot.VoterID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListBallots(ctx context.Context, questionID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", strings.TrimSpace(questionID)).
		Order("voter_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_ballots_failed", err,
			"question_id", strings.TrimSpace(questionID),
		)
	}
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetAuditTrail(ctx context.Context, questionID string, voterID string) ([]entities.BallotAuditEntry, error) {
	var rows []ballotAuditModel
	if err := r.db.WithContext(ctx).
		Where("question_id = ?", strings.TrimSpace(questionID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		Order("recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_get_audit_trail_failed", err,
			"question_id", strings.TrimSpace(questionID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	items := make([]entities.BallotAuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.BallotAuditEntry{
			AuditID:    row.ID,
			QuestionID: row.QuestionID,
			VoterID:    row.VoterID,
			Choice:     row.Choice,
			Source:     entities.BallotSource(row.Source),
			CastAt:     row.CastAt.UTC(),
			RecordedAt: row.RecordedAt.UTC(),
		})
	}
	return items, nil
}

// GetVoterRoster reads the building ownership table. It is the seam to the
// real ownership registry; the engine only ever reads it at question
// creation to take the snapshot.
func (r *Repository) GetVoterRoster(ctx context.Context, buildingID string) ([]entities.RosterEntry, error) {
	var rows []ownershipModel
	if err := r.db.WithContext(ctx).
		Where("building_id = ?", strings.TrimSpace(buildingID)).
		Order("apartment_number ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_get_ownership_failed", err,
			"building_id", strings.TrimSpace(buildingID),
		)
	}
	items := make([]entities.RosterEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetTotalMills(ctx context.Context, buildingID string) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&ownershipModel{}).
		Where("building_id = ?", strings.TrimSpace(buildingID)).
		Select("COALESCE(SUM(mills), 0)").
		Scan(&total).Error; err != nil {
		return 0, r.logError("governance_repo_get_total_mills_failed", err,
			"building_id", strings.TrimSpace(buildingID),
		)
	}
	return int(total), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("governance_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("governance_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("governance_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/voting-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("governance repository operation failed", fields...)
	return err
}

// SystemClock satisfies ports.Clock with the process wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator satisfies ports.IDGenerator with random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.QuestionRepository = (*Repository)(nil)
var _ ports.RosterRepository = (*Repository)(nil)
var _ ports.BallotRepository = (*Repository)(nil)
var _ ports.OwnershipRegistry = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
