package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	"paymaster/contexts/settlement/payout-service/ports"

	"github.com/shopspring/decimal"
)

const (
	defaultBatchSize          = 100
	defaultResolveConcurrency = 8
)

type CreateDistributionCommand struct {
	AssetID    string
	Kind       string
	AmountType string
	Amount     decimal.Decimal
	RecordDate *time.Time
	PayoutAt   time.Time
}

type UseCase struct {
	Repository ports.Repository
	Executor   ports.PaymentExecutor
	Hashes     ports.TransactionHashResolver
	Addresses  ports.AddressResolver
	Holders    ports.HolderCounter
	Cascade    ports.StatusCascader
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger

	// BatchSize caps recipients per batch payout; zero means the default 100.
	BatchSize int
	// ResolveConcurrency bounds concurrent address-resolver calls during
	// holder materialization.
	ResolveConcurrency int
}

// CreateDistribution registers a scheduled payment campaign. Execution is
// driven separately, either by the due-schedule worker or an explicit call.
func (uc UseCase) CreateDistribution(ctx context.Context, cmd CreateDistributionCommand) (entities.Distribution, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	dist := entities.Distribution{
		AssetID:    strings.TrimSpace(cmd.AssetID),
		Kind:       entities.DistributionKind(strings.TrimSpace(cmd.Kind)),
		AmountType: entities.AmountType(strings.TrimSpace(cmd.AmountType)),
		Amount:     cmd.Amount,
		RecordDate: cmd.RecordDate,
		PayoutAt:   cmd.PayoutAt.UTC(),
		Status:     entities.DistributionStatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := validateDistribution(dist); err != nil {
		logger.Warn("payout distribution rejected",
			"event", "payout_create_distribution_invalid_input",
			"module", "settlement/payout-service",
			"layer", "application",
			"asset_id", dist.AssetID,
			"kind", string(dist.Kind),
			"error", err.Error(),
		)
		return entities.Distribution{}, err
	}

	id, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Distribution{}, err
	}
	dist.ID = id

	if err := uc.Repository.CreateDistribution(ctx, dist); err != nil {
		logger.Error("payout distribution create failed",
			"event", "payout_create_distribution_failed",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
			"error", err.Error(),
		)
		return entities.Distribution{}, err
	}
	logger.Info("payout distribution scheduled",
		"event", "payout_distribution_scheduled",
		"module", "settlement/payout-service",
		"layer", "application",
		"distribution_id", dist.ID,
		"asset_id", dist.AssetID,
		"kind", string(dist.Kind),
		"payout_at", dist.PayoutAt.Format(time.RFC3339),
	)
	return dist, nil
}

// Distribute runs the full payout pipeline for one scheduled distribution:
// mark in progress, plan batches, then settle each batch in order.
func (uc UseCase) Distribute(ctx context.Context, distributionID string) error {
	logger := application.ResolveLogger(uc.Logger)
	dist, err := uc.requireDistribution(ctx, distributionID)
	if err != nil {
		return err
	}
	if dist.Status != entities.DistributionStatusScheduled {
		logger.Warn("payout distribute invalid state",
			"event", "payout_distribute_invalid_state",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
			"status", string(dist.Status),
		)
		return wrapStatusError(dist.ID, dist.Status, entities.DistributionStatusScheduled)
	}

	dist.Status = entities.DistributionStatusInProgress
	dist.UpdatedAt = uc.now()
	if err := uc.Repository.UpdateDistribution(ctx, dist); err != nil {
		return err
	}

	batches, err := uc.CreateBatches(ctx, dist)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		// Nothing to pay: no holders at the snapshot.
		dist.Status = entities.DistributionStatusCompleted
		dist.UpdatedAt = uc.now()
		if err := uc.Repository.UpdateDistribution(ctx, dist); err != nil {
			return err
		}
		logger.Info("payout distribution completed with no holders",
			"event", "payout_distribution_empty_completed",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
		)
		return nil
	}
	return uc.ProcessBatches(ctx, dist, batches)
}

func (uc UseCase) requireDistribution(ctx context.Context, distributionID string) (entities.Distribution, error) {
	dist, err := uc.Repository.GetDistribution(ctx, strings.TrimSpace(distributionID))
	if err != nil {
		return entities.Distribution{}, err
	}
	return dist, nil
}

func (uc UseCase) appendOutbox(ctx context.Context, eventType, partitionKey string, data map[string]any) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    uc.now(),
		SourceService: "payout-service",
		TraceID:       eventID,
		SchemaVersion: 1,
		PartitionKey:  partitionKey,
		Data:          payload,
	})
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc UseCase) batchSize() int {
	if uc.BatchSize > 0 {
		return uc.BatchSize
	}
	return defaultBatchSize
}

func (uc UseCase) resolveConcurrency() int {
	if uc.ResolveConcurrency > 0 {
		return uc.ResolveConcurrency
	}
	return defaultResolveConcurrency
}

func validateDistribution(dist entities.Distribution) error {
	if dist.AssetID == "" || dist.PayoutAt.IsZero() {
		return domainerrors.ErrInvalidDistributionInput
	}
	switch dist.Kind {
	case entities.DistributionKindCorporateAction:
		if dist.RecordDate == nil {
			return domainerrors.ErrInvalidDistributionInput
		}
	case entities.DistributionKindDirectPayout:
		if dist.AmountType != entities.AmountTypeFixed && dist.AmountType != entities.AmountTypePercentage {
			return domainerrors.ErrInvalidDistributionInput
		}
		if !dist.Amount.IsPositive() {
			return domainerrors.ErrInvalidDistributionInput
		}
	default:
		return domainerrors.ErrInvalidDistributionInput
	}
	return nil
}
