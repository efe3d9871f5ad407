package workers

import (
	"context"
	"log/slog"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/application/commands"
)

// PayoutJob runs one due-schedule payout cycle per invocation.
type PayoutJob struct {
	Commands  commands.UseCase
	BatchSize int
	Logger    *slog.Logger
}

func (j PayoutJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	limit := j.BatchSize
	if limit <= 0 {
		limit = 10
	}
	if err := j.Commands.ProcessDueScheduled(ctx, limit); err != nil {
		logger.Error("payout job cycle failed",
			"event", "payout_job_cycle_failed",
			"module", "settlement/payout-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("payout job cycle succeeded",
		"event", "payout_job_cycle_succeeded",
		"module", "settlement/payout-service",
		"layer", "worker",
		"limit", limit,
	)
	return nil
}
