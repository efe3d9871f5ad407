package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/application/commands"
	"paymaster/contexts/settlement/payout-service/application/queries"
	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	httptransport "paymaster/contexts/settlement/payout-service/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) CreateDistributionHandler(
	ctx context.Context,
	req httptransport.CreateDistributionRequest,
) (httptransport.DistributionDTO, error) {
	logger := application.ResolveLogger(h.Logger)

	cmd, err := parseCreateDistribution(req)
	if err != nil {
		logger.Warn("payout http create distribution parse failed",
			"event", "payout_http_create_distribution_parse_failed",
			"module", "settlement/payout-service",
			"layer", "adapter",
			"asset_id", strings.TrimSpace(req.AssetID),
			"error", err.Error(),
		)
		return httptransport.DistributionDTO{}, err
	}
	dist, err := h.Commands.CreateDistribution(ctx, cmd)
	if err != nil {
		logger.Warn("payout http create distribution failed",
			"event", "payout_http_create_distribution_failed",
			"module", "settlement/payout-service",
			"layer", "adapter",
			"asset_id", strings.TrimSpace(req.AssetID),
			"error", err.Error(),
		)
		return httptransport.DistributionDTO{}, err
	}
	logger.Info("payout http distribution created",
		"event", "payout_http_distribution_created",
		"module", "settlement/payout-service",
		"layer", "adapter",
		"distribution_id", dist.ID,
	)
	return mapDistribution(dist), nil
}

func (h Handler) ExecuteHandler(ctx context.Context, distributionID string) (httptransport.AcceptedResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	normalizedID := strings.TrimSpace(distributionID)

	if err := h.Commands.Distribute(ctx, normalizedID); err != nil {
		logger.Warn("payout http execute failed",
			"event", "payout_http_execute_failed",
			"module", "settlement/payout-service",
			"layer", "adapter",
			"distribution_id", normalizedID,
			"error", err.Error(),
		)
		return httptransport.AcceptedResponse{}, err
	}
	dist, err := h.Queries.GetDistribution(ctx, normalizedID)
	if err != nil {
		return httptransport.AcceptedResponse{}, err
	}
	logger.Info("payout http execute completed",
		"event", "payout_http_execute_completed",
		"module", "settlement/payout-service",
		"layer", "adapter",
		"distribution_id", normalizedID,
		"status", string(dist.Status),
	)
	return httptransport.AcceptedResponse{
		DistributionID: normalizedID,
		Status:         string(dist.Status),
	}, nil
}

func (h Handler) RetryHandler(ctx context.Context, distributionID string) (httptransport.AcceptedResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	normalizedID := strings.TrimSpace(distributionID)

	if err := h.Commands.RetryFailedHolders(ctx, normalizedID); err != nil {
		logger.Warn("payout http retry failed",
			"event", "payout_http_retry_failed",
			"module", "settlement/payout-service",
			"layer", "adapter",
			"distribution_id", normalizedID,
			"error", err.Error(),
		)
		return httptransport.AcceptedResponse{}, err
	}
	dist, err := h.Queries.GetDistribution(ctx, normalizedID)
	if err != nil {
		return httptransport.AcceptedResponse{}, err
	}
	logger.Info("payout http retry completed",
		"event", "payout_http_retry_completed",
		"module", "settlement/payout-service",
		"layer", "adapter",
		"distribution_id", normalizedID,
		"status", string(dist.Status),
	)
	return httptransport.AcceptedResponse{
		DistributionID: normalizedID,
		Status:         string(dist.Status),
	}, nil
}

func (h Handler) GetDistributionHandler(ctx context.Context, distributionID string) (httptransport.DistributionProgressResponse, error) {
	progress, err := h.Queries.GetProgress(ctx, distributionID)
	if err != nil {
		return httptransport.DistributionProgressResponse{}, err
	}
	counts := make(map[string]int, len(progress.HolderCounts))
	for status, count := range progress.HolderCounts {
		counts[string(status)] = count
	}
	return httptransport.DistributionProgressResponse{
		Distribution: mapDistribution(progress.Distribution),
		BatchCount:   progress.BatchCount,
		HolderCounts: counts,
	}, nil
}

func (h Handler) ListBatchesHandler(ctx context.Context, distributionID string) ([]httptransport.BatchPayoutDTO, error) {
	if _, err := h.Queries.GetDistribution(ctx, distributionID); err != nil {
		return nil, err
	}
	batches, err := h.Queries.ListBatches(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	dtos := make([]httptransport.BatchPayoutDTO, 0, len(batches))
	for _, batch := range batches {
		dtos = append(dtos, mapBatch(batch))
	}
	return dtos, nil
}

func (h Handler) ListHoldersHandler(ctx context.Context, batchID string) ([]httptransport.HolderDTO, error) {
	holders, err := h.Queries.ListHolders(ctx, batchID)
	if err != nil {
		return nil, err
	}
	dtos := make([]httptransport.HolderDTO, 0, len(holders))
	for _, holder := range holders {
		dtos = append(dtos, mapHolder(holder))
	}
	return dtos, nil
}

func parseCreateDistribution(req httptransport.CreateDistributionRequest) (commands.CreateDistributionCommand, error) {
	cmd := commands.CreateDistributionCommand{
		AssetID:    req.AssetID,
		Kind:       req.Kind,
		AmountType: req.AmountType,
	}

	payoutAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.PayoutAt))
	if err != nil {
		return commands.CreateDistributionCommand{}, domainerrors.ErrInvalidDistributionInput
	}
	cmd.PayoutAt = payoutAt.UTC()

	if raw := strings.TrimSpace(req.RecordDate); raw != "" {
		recordDate, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return commands.CreateDistributionCommand{}, domainerrors.ErrInvalidDistributionInput
		}
		utc := recordDate.UTC()
		cmd.RecordDate = &utc
	}
	if raw := strings.TrimSpace(req.Amount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return commands.CreateDistributionCommand{}, domainerrors.ErrInvalidDistributionInput
		}
		cmd.Amount = amount
	}
	return cmd, nil
}

func mapDistribution(dist entities.Distribution) httptransport.DistributionDTO {
	dto := httptransport.DistributionDTO{
		ID:         dist.ID,
		AssetID:    dist.AssetID,
		Kind:       string(dist.Kind),
		AmountType: string(dist.AmountType),
		PayoutAt:   dist.PayoutAt.Format(time.RFC3339),
		Status:     string(dist.Status),
		CreatedAt:  dist.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  dist.UpdatedAt.Format(time.RFC3339),
	}
	if !dist.Amount.IsZero() {
		dto.Amount = dist.Amount.String()
	}
	if dist.RecordDate != nil {
		dto.RecordDate = dist.RecordDate.Format(time.RFC3339)
	}
	return dto
}

func mapBatch(batch entities.BatchPayout) httptransport.BatchPayoutDTO {
	return httptransport.BatchPayoutDTO{
		ID:              batch.ID,
		DistributionID:  batch.DistributionID,
		Name:            batch.Name,
		TransactionID:   batch.TransactionID,
		TransactionHash: batch.TransactionHash,
		RecipientCount:  batch.RecipientCount,
		Status:          string(batch.Status),
		CreatedAt:       batch.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       batch.UpdatedAt.Format(time.RFC3339),
	}
}

func mapHolder(holder entities.Holder) httptransport.HolderDTO {
	dto := httptransport.HolderDTO{
		ID:             holder.ID,
		BatchPayoutID:  holder.BatchPayoutID,
		DistributionID: holder.DistributionID,
		AccountID:      holder.AccountID,
		EVMAddress:     holder.EVMAddress,
		RetryCount:     holder.RetryCount,
		Status:         string(holder.Status),
		FailureReason:  holder.FailureReason,
		CreatedAt:      holder.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      holder.UpdatedAt.Format(time.RFC3339),
	}
	if holder.NextRetryAt != nil {
		dto.NextRetryAt = holder.NextRetryAt.Format(time.RFC3339)
	}
	if holder.PaidAmount.Valid {
		dto.PaidAmount = holder.PaidAmount.Decimal.String()
	}
	return dto
}
