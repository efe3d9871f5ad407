package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	"paymaster/contexts/settlement/payout-service/ports"
	"paymaster/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
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

func (r *Repository) CreateDistribution(ctx context.Context, dist entities.Distribution) error {
	row := distributionModelFromEntity(dist)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("payout_repo_create_distribution_unique_conflict",
				"distribution_id", row.ID,
			)
			return domainerrors.ErrDistributionAlreadyExists
		}
		return r.logError("payout_repo_create_distribution_failed", err,
			"distribution_id", row.ID,
		)
	}
	return nil
}

func (r *Repository) GetDistribution(ctx context.Context, distributionID string) (entities.Distribution, error) {
	var row distributionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(distributionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Distribution{}, domainerrors.ErrDistributionNotFound
		}
		return entities.Distribution{}, r.logError("payout_repo_get_distribution_failed", err,
			"distribution_id", strings.TrimSpace(distributionID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateDistribution(ctx context.Context, dist entities.Distribution) error {
	row := distributionModelFromEntity(dist)
	result := r.db.WithContext(ctx).
		Model(&distributionModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":     row.Status,
			"updated_at": row.UpdatedAt,
		})
	if result.Error != nil {
		return r.logError("payout_repo_update_distribution_failed", result.Error,
			"distribution_id", row.ID,
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("payout_repo_update_distribution_not_found",
			"distribution_id", row.ID,
		)
		return domainerrors.ErrDistributionNotFound
	}
	return nil
}

func (r *Repository) ListDueScheduled(ctx context.Context, threshold time.Time, limit int) ([]entities.Distribution, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []distributionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.DistributionStatusScheduled)).
		Where("payout_at <= ?", threshold.UTC()).
		Order("payout_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_due_scheduled_failed", err,
			"threshold_utc", threshold.UTC().Format(time.RFC3339),
			"limit", limit,
		)
	}
	items := make([]entities.Distribution, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateBatch(ctx context.Context, batch entities.BatchPayout) error {
	row := batchPayoutModelFromEntity(batch)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("payout_repo_create_batch_unique_conflict",
				"batch_payout_id", row.ID,
				"distribution_id", row.DistributionID,
			)
			return domainerrors.ErrBatchesAlreadyExist
		}
		return r.logError("payout_repo_create_batch_failed", err,
			"batch_payout_id", row.ID,
			"distribution_id", row.DistributionID,
		)
	}
	return nil
}

func (r *Repository) UpdateBatch(ctx context.Context, batch entities.BatchPayout) error {
	row := batchPayoutModelFromEntity(batch)
	result := r.db.WithContext(ctx).
		Model(&batchPayoutModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"transaction_id":   row.TransactionID,
			"transaction_hash": row.TransactionHash,
			"status":           row.Status,
			"updated_at":       row.UpdatedAt,
		})
	if result.Error != nil {
		return r.logError("payout_repo_update_batch_failed", result.Error,
			"batch_payout_id", row.ID,
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("payout_repo_update_batch_not_found",
			"batch_payout_id", row.ID,
		)
		return domainerrors.ErrBatchPayoutNotFound
	}
	return nil
}

func (r *Repository) GetBatch(ctx context.Context, batchID string) (entities.BatchPayout, error) {
	var row batchPayoutModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(batchID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.BatchPayout{}, domainerrors.ErrBatchPayoutNotFound
		}
		return entities.BatchPayout{}, r.logError("payout_repo_get_batch_failed", err,
			"batch_payout_id", strings.TrimSpace(batchID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListBatchesByDistribution(ctx context.Context, distributionID string) ([]entities.BatchPayout, error) {
	var rows []batchPayoutModel
	if err := r.db.WithContext(ctx).
		Where("distribution_id = ?", strings.TrimSpace(distributionID)).
		Order("created_at ASC, name ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_batches_failed", err,
			"distribution_id", strings.TrimSpace(distributionID),
		)
	}
	batches := make([]entities.BatchPayout, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, row.toEntity())
	}
	return batches, nil
}

func (r *Repository) SaveHolders(ctx context.Context, holders []entities.Holder) error {
	if len(holders) == 0 {
		return nil
	}
	rows := make([]holderModel, 0, len(holders))
	for _, holder := range holders {
		rows = append(rows, holderModelFromEntity(holder))
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return r.logError("payout_repo_save_holders_failed", err,
			"holder_count", len(rows),
			"batch_payout_id", rows[0].BatchPayoutID,
		)
	}
	return nil
}

// UpdateHolders applies the whole slice atomically. Retry passes write holder
// sets twice per cycle and must never persist half a set.
func (r *Repository) UpdateHolders(ctx context.Context, holders []entities.Holder) error {
	if len(holders) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, holder := range holders {
			row := holderModelFromEntity(holder)
			result := tx.
				Model(&holderModel{}).
				Where("id = ?", row.ID).
				Updates(map[string]any{
					"retry_count":    row.RetryCount,
					"status":         row.Status,
					"next_retry_at":  row.NextRetryAt,
					"failure_reason": row.FailureReason,
					"paid_amount":    row.PaidAmount,
					"updated_at":     row.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrHolderNotFound
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrHolderNotFound) {
			r.logWarn("payout_repo_update_holders_not_found",
				"holder_count", len(holders),
			)
			return err
		}
		return r.logError("payout_repo_update_holders_failed", err,
			"holder_count", len(holders),
		)
	}
	return nil
}

func (r *Repository) ListHoldersByBatch(ctx context.Context, batchID string) ([]entities.Holder, error) {
	var rows []holderModel
	if err := r.db.WithContext(ctx).
		Where("batch_payout_id = ?", strings.TrimSpace(batchID)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_holders_by_batch_failed", err,
			"batch_payout_id", strings.TrimSpace(batchID),
		)
	}
	holders := make([]entities.Holder, 0, len(rows))
	for _, row := range rows {
		holders = append(holders, row.toEntity())
	}
	return holders, nil
}

func (r *Repository) ListHoldersByDistributionAndStatus(ctx context.Context, distributionID string, status entities.HolderStatus) ([]entities.Holder, error) {
	var rows []holderModel
	if err := r.db.WithContext(ctx).
		Where("distribution_id = ?", strings.TrimSpace(distributionID)).
		Where("status = ?", string(status)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_holders_by_status_failed", err,
			"distribution_id", strings.TrimSpace(distributionID),
			"status", string(status),
		)
	}
	holders := make([]entities.Holder, 0, len(rows))
	for _, row := range rows {
		holders = append(holders, row.toEntity())
	}
	return holders, nil
}

func (r *Repository) CountHoldersByStatus(ctx context.Context, distributionID string) (map[entities.HolderStatus]int, error) {
	var rows []struct {
		Status string `gorm:"column:status"`
		Total  int    `gorm:"column:total"`
	}
	if err := r.db.WithContext(ctx).
		Model(&holderModel{}).
		Select("status, COUNT(*) AS total").
		Where("distribution_id = ?", strings.TrimSpace(distributionID)).
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_count_holders_failed", err,
			"distribution_id", strings.TrimSpace(distributionID),
		)
	}
	counts := make(map[entities.HolderStatus]int, len(rows))
	for _, row := range rows {
		counts[entities.HolderStatus(row.Status)] = row.Total
	}
	return counts, nil
}

// OnBatchStatusChanged rolls the distribution status up from its batches: any
// failed batch fails the distribution, all completed completes it, anything
// else keeps it in progress.
func (r *Repository) OnBatchStatusChanged(ctx context.Context, dist entities.Distribution) error {
	batches, err := r.ListBatchesByDistribution(ctx, dist.ID)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return nil
	}
	next := entities.DistributionStatusCompleted
	for _, batch := range batches {
		switch batch.Status {
		case entities.BatchPayoutStatusFailed:
			next = entities.DistributionStatusFailed
		case entities.BatchPayoutStatusCompleted:
		default:
			if next != entities.DistributionStatusFailed {
				next = entities.DistributionStatusInProgress
			}
		}
	}
	if next == dist.Status {
		return nil
	}
	dist.Status = next
	dist.UpdatedAt = time.Now().UTC()
	return r.UpdateDistribution(ctx, dist)
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("payout_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := payoutOutboxModel{
		ID:           strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row)
	if createResult.Error != nil {
		return r.logError("payout_repo_append_outbox_insert_failed", createResult.Error,
			"outbox_id", row.ID,
			"event_type", row.EventType,
		)
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing payoutOutboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("id = ?", row.ID).
		First(&existing).
		Error; err != nil {
		return r.logError("payout_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.ID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		r.logWarn("payout_repo_append_outbox_payload_conflict",
			"outbox_id", row.ID,
			"event_type", row.EventType,
		)
		return fmt.Errorf("%w: %s", domainerrors.ErrOutboxPayloadConflict, row.ID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []payoutOutboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_pending_outbox_failed", err,
			"limit", limit,
		)
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			ID:           row.ID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			Status:       row.Status,
			CreatedAt:    row.CreatedAt.UTC(),
			PublishedAt:  normalizeOptionalTime(row.PublishedAt),
		})
	}
	return messages, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&payoutOutboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("payout_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("payout_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return fmt.Errorf("%w: %s", domainerrors.ErrOutboxRowNotFound, strings.TrimSpace(outboxID))
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "settlement/payout-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("payout repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "settlement/payout-service",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("payout repository warning", fields...)
}

type distributionModel struct {
	ID         string          `gorm:"column:id;primaryKey"`
	AssetID    string          `gorm:"column:asset_id"`
	Kind       string          `gorm:"column:kind"`
	AmountType string          `gorm:"column:amount_type"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(38,18)"`
	RecordDate *time.Time      `gorm:"column:record_date"`
	PayoutAt   time.Time       `gorm:"column:payout_at"`
	Status     string          `gorm:"column:status"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (distributionModel) TableName() string {
	return "payout_distributions"
}

func distributionModelFromEntity(dist entities.Distribution) distributionModel {
	return distributionModel{
		ID:         strings.TrimSpace(dist.ID),
		AssetID:    strings.TrimSpace(dist.AssetID),
		Kind:       string(dist.Kind),
		AmountType: string(dist.AmountType),
		Amount:     dist.Amount,
		RecordDate: normalizeOptionalTime(dist.RecordDate),
		PayoutAt:   dist.PayoutAt.UTC(),
		Status:     string(dist.Status),
		CreatedAt:  dist.CreatedAt.UTC(),
		UpdatedAt:  dist.UpdatedAt.UTC(),
	}
}

func (m distributionModel) toEntity() entities.Distribution {
	return entities.Distribution{
		ID:         m.ID,
		AssetID:    m.AssetID,
		Kind:       entities.DistributionKind(m.Kind),
		AmountType: entities.AmountType(m.AmountType),
		Amount:     m.Amount,
		RecordDate: normalizeOptionalTime(m.RecordDate),
		PayoutAt:   m.PayoutAt.UTC(),
		Status:     entities.DistributionStatus(m.Status),
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type batchPayoutModel struct {
	ID              string    `gorm:"column:id;primaryKey"`
	DistributionID  string    `gorm:"column:distribution_id"`
	Name            string    `gorm:"column:name"`
	TransactionID   string    `gorm:"column:transaction_id"`
	TransactionHash string    `gorm:"column:transaction_hash"`
	RecipientCount  int       `gorm:"column:recipient_count"`
	Status          string    `gorm:"column:status"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (batchPayoutModel) TableName() string {
	return "batch_payouts"
}

func batchPayoutModelFromEntity(batch entities.BatchPayout) batchPayoutModel {
	return batchPayoutModel{
		ID:              strings.TrimSpace(batch.ID),
		DistributionID:  strings.TrimSpace(batch.DistributionID),
		Name:            strings.TrimSpace(batch.Name),
		TransactionID:   strings.TrimSpace(batch.TransactionID),
		TransactionHash: strings.TrimSpace(batch.TransactionHash),
		RecipientCount:  batch.RecipientCount,
		Status:          string(batch.Status),
		CreatedAt:       batch.CreatedAt.UTC(),
		UpdatedAt:       batch.UpdatedAt.UTC(),
	}
}

func (m batchPayoutModel) toEntity() entities.BatchPayout {
	return entities.BatchPayout{
		ID:              m.ID,
		DistributionID:  m.DistributionID,
		Name:            m.Name,
		TransactionID:   m.TransactionID,
		TransactionHash: m.TransactionHash,
		RecipientCount:  m.RecipientCount,
		Status:          entities.BatchPayoutStatus(m.Status),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

type holderModel struct {
	ID             string              `gorm:"column:id;primaryKey"`
	BatchPayoutID  string              `gorm:"column:batch_payout_id"`
	DistributionID string              `gorm:"column:distribution_id"`
	AccountID      string              `gorm:"column:account_id"`
	EVMAddress     string              `gorm:"column:evm_address"`
	RetryCount     int                 `gorm:"column:retry_count"`
	Status         string              `gorm:"column:status"`
	NextRetryAt    *time.Time          `gorm:"column:next_retry_at"`
	FailureReason  string              `gorm:"column:failure_reason"`
	PaidAmount     decimal.NullDecimal `gorm:"column:paid_amount;type:numeric(38,18)"`
	CreatedAt      time.Time           `gorm:"column:created_at"`
	UpdatedAt      time.Time           `gorm:"column:updated_at"`
}

func (holderModel) TableName() string {
	return "payout_holders"
}

func holderModelFromEntity(holder entities.Holder) holderModel {
	return holderModel{
		ID:             strings.TrimSpace(holder.ID),
		BatchPayoutID:  strings.TrimSpace(holder.BatchPayoutID),
		DistributionID: strings.TrimSpace(holder.DistributionID),
		AccountID:      strings.TrimSpace(holder.AccountID),
		EVMAddress:     strings.TrimSpace(holder.EVMAddress),
		RetryCount:     holder.RetryCount,
		Status:         string(holder.Status),
		NextRetryAt:    normalizeOptionalTime(holder.NextRetryAt),
		FailureReason:  strings.TrimSpace(holder.FailureReason),
		PaidAmount:     holder.PaidAmount,
		CreatedAt:      holder.CreatedAt.UTC(),
		UpdatedAt:      holder.UpdatedAt.UTC(),
	}
}

func (m holderModel) toEntity() entities.Holder {
	return entities.Holder{
		ID:             m.ID,
		BatchPayoutID:  m.BatchPayoutID,
		DistributionID: m.DistributionID,
		AccountID:      m.AccountID,
		EVMAddress:     m.EVMAddress,
		RetryCount:     m.RetryCount,
		Status:         entities.HolderStatus(m.Status),
		NextRetryAt:    normalizeOptionalTime(m.NextRetryAt),
		FailureReason:  m.FailureReason,
		PaidAmount:     m.PaidAmount,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type payoutOutboxModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (payoutOutboxModel) TableName() string {
	return "payout_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	t := value.UTC()
	return &t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.Repository = (*Repository)(nil)
var _ ports.StatusCascader = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
