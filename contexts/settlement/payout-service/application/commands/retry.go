package commands

import (
	"context"
	"fmt"
	"sort"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	"paymaster/contexts/settlement/payout-service/ports"
)

// RetryFailedHolders re-drives every currently-failed holder of a failed
// distribution through the settlement layer, mutating the existing holder
// rows in place. Two holder writes happen per retry: the retrying marker
// first, then the terminal outcome. If the settlement call fails between
// them the holders stay retrying, which keeps a crashed retry observable.
func (uc UseCase) RetryFailedHolders(ctx context.Context, distributionID string) error {
	logger := application.ResolveLogger(uc.Logger)

	dist, err := uc.requireDistribution(ctx, distributionID)
	if err != nil {
		return err
	}
	if dist.Status != entities.DistributionStatusFailed {
		logger.Warn("payout retry invalid state",
			"event", "payout_retry_invalid_state",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
			"status", string(dist.Status),
		)
		return wrapStatusError(dist.ID, dist.Status, entities.DistributionStatusFailed)
	}

	failedHolders, err := uc.Repository.ListHoldersByDistributionAndStatus(ctx, dist.ID, entities.HolderStatusFailed)
	if err != nil {
		return err
	}
	if len(failedHolders) == 0 {
		logger.Info("payout retry found nothing to do",
			"event", "payout_retry_noop",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
		)
		return nil
	}

	now := uc.now()
	retrying := make([]entities.Holder, len(failedHolders))
	addresses := make([]string, len(failedHolders))
	for i, holder := range failedHolders {
		retrying[i] = holder.WithRetrying(now)
		addresses[i] = holder.EVMAddress
	}
	if err := uc.Repository.UpdateHolders(ctx, retrying); err != nil {
		return err
	}

	strategy, err := strategyFor(dist)
	if err != nil {
		return err
	}
	result, err := strategy.executeForAddresses(ctx, uc.Executor, dist, addresses)
	if err != nil {
		logger.Error("payout retry settlement call failed",
			"event", "payout_retry_settlement_failed",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
			"holder_count", len(retrying),
			"error", err.Error(),
		)
		return err
	}
	if err := validateSettlementResult(result); err != nil {
		// Holders stay retrying, same as a failed settlement call.
		logger.Error("payout retry settlement result rejected",
			"event", "payout_retry_settlement_result_rejected",
			"module", "settlement/payout-service",
			"layer", "application",
			"distribution_id", dist.ID,
			"succeeded_count", len(result.SucceededAddresses),
			"amount_count", len(result.PaidAmounts),
			"error", err.Error(),
		)
		return err
	}

	outcome := uc.applyRetryOutcome(retrying, result)
	if err := uc.Repository.UpdateHolders(ctx, outcome); err != nil {
		return err
	}

	for _, batchID := range distinctBatchIDs(outcome) {
		batch, err := uc.Repository.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if _, err := uc.UpdateBatchStatus(ctx, batch); err != nil {
			return err
		}
	}

	logger.Info("payout retry completed",
		"event", "payout_retry_completed",
		"module", "settlement/payout-service",
		"layer", "application",
		"distribution_id", dist.ID,
		"holder_count", len(outcome),
		"succeeded_count", len(result.SucceededAddresses),
		"failed_count", len(result.FailedAddresses),
	)
	return nil
}

// applyRetryOutcome maps the settlement response back onto the retried
// holders by address. A holder missing from both lists is marked failed
// rather than left retrying, so a successful settlement call always yields a
// terminal status for every holder it covered.
func (uc UseCase) applyRetryOutcome(retrying []entities.Holder, result ports.SettlementResult) []entities.Holder {
	now := uc.now()

	failed := make(map[string]struct{}, len(result.FailedAddresses))
	for _, address := range filterZeroAddresses(result.FailedAddresses) {
		failed[entities.CanonicalAddress(address)] = struct{}{}
	}
	succeeded := make(map[string]payment, len(result.SucceededAddresses))
	for _, pay := range zipPayments(result.SucceededAddresses, result.PaidAmounts) {
		succeeded[entities.CanonicalAddress(pay.address)] = pay
	}

	outcome := make([]entities.Holder, len(retrying))
	for i, holder := range retrying {
		address := entities.CanonicalAddress(holder.EVMAddress)
		if pay, ok := succeeded[address]; ok {
			outcome[i] = holder.WithSucceeded(pay.amount, now)
			continue
		}
		if _, ok := failed[address]; ok {
			outcome[i] = holder.WithFailed(entities.FailureReasonExecution, now)
			continue
		}
		outcome[i] = holder.WithFailed("Address missing from settlement result", now)
	}
	return outcome
}

func distinctBatchIDs(holders []entities.Holder) []string {
	seen := make(map[string]struct{}, len(holders))
	ids := make([]string, 0, len(holders))
	for _, holder := range holders {
		if _, ok := seen[holder.BatchPayoutID]; ok {
			continue
		}
		seen[holder.BatchPayoutID] = struct{}{}
		ids = append(ids, holder.BatchPayoutID)
	}
	sort.Strings(ids)
	return ids
}

func wrapStatusError(distributionID string, actual, expected entities.DistributionStatus) error {
	return fmt.Errorf("%w: distribution %s is %s, expected %s",
		domainerrors.ErrDistributionNotInStatus, distributionID, actual, expected)
}
