package commands

import (
	"context"

	application "paymaster/contexts/settlement/payout-service/application"
)

// ProcessDueScheduled drives the payout pipeline for every scheduled
// distribution whose payout time has passed. A failing distribution does not
// block the remaining due ones; the first error is reported after the cycle.
func (uc UseCase) ProcessDueScheduled(ctx context.Context, limit int) error {
	logger := application.ResolveLogger(uc.Logger)

	due, err := uc.Repository.ListDueScheduled(ctx, uc.now(), limit)
	if err != nil {
		logger.Error("payout due list failed",
			"event", "payout_due_list_failed",
			"module", "settlement/payout-service",
			"layer", "worker",
			"limit", limit,
			"error", err.Error(),
		)
		return err
	}

	var firstErr error
	for _, dist := range due {
		if err := uc.Distribute(ctx, dist.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logger.Error("payout due distribution failed",
				"event", "payout_due_distribution_failed",
				"module", "settlement/payout-service",
				"layer", "worker",
				"distribution_id", dist.ID,
				"error", err.Error(),
			)
		}
	}
	if len(due) > 0 {
		logger.Info("payout due cycle completed",
			"event", "payout_due_cycle_completed",
			"module", "settlement/payout-service",
			"layer", "worker",
			"due_count", len(due),
		)
	}
	return firstErr
}
