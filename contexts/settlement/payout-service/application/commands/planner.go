package commands

import (
	"context"
	"fmt"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
)

// CreateBatches splits the distribution's holder set into fixed-size batch
// payouts. Batches for a distribution are created exactly once; a second call
// is a programming error and fails loudly.
func (uc UseCase) CreateBatches(ctx context.Context, dist entities.Distribution) ([]entities.BatchPayout, error) {
	logger := application.ResolveLogger(uc.Logger)

	existing, err := uc.Repository.ListBatchesByDistribution(ctx, dist.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		logger.Error("payout batches already exist",
			"event", "payout_create_batches_duplicate",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
			"existing_count", len(existing),
		)
		return nil, fmt.Errorf("%w: distribution %s", domainerrors.ErrBatchesAlreadyExist, dist.ID)
	}

	holdersCount, err := uc.Holders.CountHolders(ctx, dist)
	if err != nil {
		return nil, err
	}

	batchSize := uc.batchSize()
	numberOfBatches := (holdersCount + batchSize - 1) / batchSize

	batches := make([]entities.BatchPayout, 0, numberOfBatches)
	for i := 0; i < numberOfBatches; i++ {
		currentBatchSize := batchSize
		if remaining := holdersCount - i*batchSize; remaining < currentBatchSize {
			currentBatchSize = remaining
		}

		id, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		now := uc.now()
		batch := entities.BatchPayout{
			ID:              id,
			DistributionID:  dist.ID,
			Name:            fmt.Sprintf("Batch %d", i+1),
			TransactionID:   entities.ZeroTransactionID,
			TransactionHash: entities.ZeroTransactionHash,
			RecipientCount:  currentBatchSize,
			Status:          entities.BatchPayoutStatusInProgress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := uc.Repository.CreateBatch(ctx, batch); err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	logger.Info("payout batches created",
		"event", "payout_batches_created",
		"module", "settlement/payout-service",
		"layer", "application",
		"distribution_id", dist.ID,
		"holders_count", holdersCount,
		"batch_size", batchSize,
		"batch_count", len(batches),
	)
	return batches, nil
}
