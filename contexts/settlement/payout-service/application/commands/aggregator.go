package commands

import (
	"context"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/domain/entities"
)

// UpdateBatchStatus recomputes the batch's status from the full holder set
// currently associated with it, persists the batch, and cascades to the
// owning distribution. Both the initial pipeline and the retry pipeline pass
// through here, so the distribution's status is never left stale after a
// holder-state change.
func (uc UseCase) UpdateBatchStatus(ctx context.Context, batch entities.BatchPayout) (entities.BatchPayout, error) {
	logger := application.ResolveLogger(uc.Logger)

	holders, err := uc.Repository.ListHoldersByBatch(ctx, batch.ID)
	if err != nil {
		return entities.BatchPayout{}, err
	}

	next := entities.RollUpBatchStatus(batch.Status, holders)
	changed := next != batch.Status
	if changed {
		batch = batch.WithStatus(next, uc.now())
	}
	if err := uc.Repository.UpdateBatch(ctx, batch); err != nil {
		return entities.BatchPayout{}, err
	}

	if changed {
		if err := uc.appendOutbox(ctx, "payout.batch_status_changed", batch.DistributionID, map[string]any{
			"batch_payout_id": batch.ID,
			"distribution_id": batch.DistributionID,
			"status":          string(batch.Status),
		}); err != nil {
			return entities.BatchPayout{}, err
		}
	}

	dist, err := uc.Repository.GetDistribution(ctx, batch.DistributionID)
	if err != nil {
		return entities.BatchPayout{}, err
	}
	if err := uc.Cascade.OnBatchStatusChanged(ctx, dist); err != nil {
		return entities.BatchPayout{}, err
	}

	logger.Info("payout batch status aggregated",
		"event", "payout_batch_status_aggregated",
		"module", "settlement/payout-service",
		"layer", "application",
		"distribution_id", batch.DistributionID,
		"batch_id", batch.ID,
		"status", string(batch.Status),
		"holder_count", len(holders),
	)
	return batch, nil
}
