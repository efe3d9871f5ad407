package queries

import (
	"context"
	"log/slog"
	"strings"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/domain/entities"
	"paymaster/contexts/settlement/payout-service/ports"
)

type UseCase struct {
	Repository ports.Repository
	Logger     *slog.Logger
}

// Progress summarizes a distribution's holder outcomes. Batch status alone is
// not enough for progress reporting because a still-settling batch keeps its
// previous status; the holder counts are always current.
type Progress struct {
	Distribution entities.Distribution
	BatchCount   int
	HolderCounts map[entities.HolderStatus]int
}

func (uc UseCase) GetDistribution(ctx context.Context, distributionID string) (entities.Distribution, error) {
	return uc.Repository.GetDistribution(ctx, strings.TrimSpace(distributionID))
}

func (uc UseCase) GetProgress(ctx context.Context, distributionID string) (Progress, error) {
	logger := application.ResolveLogger(uc.Logger)
	normalizedID := strings.TrimSpace(distributionID)

	dist, err := uc.Repository.GetDistribution(ctx, normalizedID)
	if err != nil {
		logger.Warn("payout query get distribution failed",
			"event", "payout_query_get_distribution_failed",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", normalizedID,
			"error", err.Error(),
		)
		return Progress{}, err
	}
	batches, err := uc.Repository.ListBatchesByDistribution(ctx, dist.ID)
	if err != nil {
		return Progress{}, err
	}
	counts, err := uc.Repository.CountHoldersByStatus(ctx, dist.ID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		Distribution: dist,
		BatchCount:   len(batches),
		HolderCounts: counts,
	}, nil
}

func (uc UseCase) ListBatches(ctx context.Context, distributionID string) ([]entities.BatchPayout, error) {
	return uc.Repository.ListBatchesByDistribution(ctx, strings.TrimSpace(distributionID))
}

func (uc UseCase) ListHolders(ctx context.Context, batchID string) ([]entities.Holder, error) {
	normalizedID := strings.TrimSpace(batchID)
	if _, err := uc.Repository.GetBatch(ctx, normalizedID); err != nil {
		return nil, err
	}
	return uc.Repository.ListHoldersByBatch(ctx, normalizedID)
}
