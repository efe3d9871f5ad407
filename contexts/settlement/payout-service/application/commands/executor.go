package commands

import (
	"context"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/domain/entities"
)

// ProcessBatches settles each batch in creation order. The page index handed
// to the settlement layer is the batch's zero-based position. An error aborts
// the remaining batches; batches already processed keep their committed state.
func (uc UseCase) ProcessBatches(ctx context.Context, dist entities.Distribution, batches []entities.BatchPayout) error {
	for pageIndex, batch := range batches {
		if err := uc.processSingleBatch(ctx, dist, batch, pageIndex); err != nil {
			return err
		}
	}
	return nil
}

func (uc UseCase) processSingleBatch(ctx context.Context, dist entities.Distribution, batch entities.BatchPayout, pageIndex int) error {
	logger := application.ResolveLogger(uc.Logger)

	strategy, err := strategyFor(dist)
	if err != nil {
		return err
	}
	result, err := strategy.execute(ctx, uc.Executor, dist, pageIndex, batch.RecipientCount)
	if err != nil {
		logger.Error("payout settlement call failed",
			"event", "payout_settlement_failed",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
			"batch_id", batch.ID,
			"page_index", pageIndex,
			"error", err.Error(),
		)
		return err
	}

	if _, err := uc.materializeHolders(ctx, batch, result); err != nil {
		return err
	}

	batch = uc.recordTransaction(ctx, batch, result.TransactionID)

	if _, err := uc.UpdateBatchStatus(ctx, batch); err != nil {
		return err
	}
	logger.Info("payout batch processed",
		"event", "payout_batch_processed",
		"module", "settlement/payout-service",
		"layer", "application",
		"distribution_id", dist.ID,
		"batch_id", batch.ID,
		"page_index", pageIndex,
		"succeeded_count", len(result.SucceededAddresses),
		"failed_count", len(result.FailedAddresses),
	)
	return nil
}

// recordTransaction rewrites the batch's transaction id and hash when the
// settlement layer reported a transaction. The hash is cosmetic bookkeeping:
// a failure here is logged and swallowed and the original batch carries on,
// it must not abort the payout pipeline.
func (uc UseCase) recordTransaction(ctx context.Context, batch entities.BatchPayout, transactionID string) entities.BatchPayout {
	if transactionID == "" {
		return batch
	}
	logger := application.ResolveLogger(uc.Logger)

	record, err := uc.Hashes.ResolveHash(ctx, transactionID)
	if err != nil {
		logger.Warn("payout transaction hash resolution failed",
			"event", "payout_transaction_hash_failed",
			"module", "settlement/payout-service",
			"layer", "application",
			"batch_id", batch.ID,
			"transaction_id", transactionID,
			"error", err.Error(),
		)
		return batch
	}
	updated := batch.WithTransaction(transactionID, record.TransactionHash, uc.now())
	if err := uc.Repository.UpdateBatch(ctx, updated); err != nil {
		logger.Warn("payout transaction update failed",
			"event", "payout_transaction_update_failed",
			"module", "settlement/payout-service",
			"layer", "application",
			"batch_id", batch.ID,
			"transaction_id", transactionID,
			"error", err.Error(),
		)
		return batch
	}
	return updated
}
