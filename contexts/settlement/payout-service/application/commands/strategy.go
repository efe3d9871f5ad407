package commands

import (
	"context"
	"fmt"

	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	"paymaster/contexts/settlement/payout-service/ports"
)

// settlementStrategy selects the settlement entry points for one distribution
// kind. Both variants share the whole orchestration; only the calls into the
// payment executor differ.
type settlementStrategy interface {
	execute(ctx context.Context, executor ports.PaymentExecutor, dist entities.Distribution, pageIndex, pageSize int) (ports.SettlementResult, error)
	executeForAddresses(ctx context.Context, executor ports.PaymentExecutor, dist entities.Distribution, addresses []string) (ports.SettlementResult, error)
}

func strategyFor(dist entities.Distribution) (settlementStrategy, error) {
	switch dist.Kind {
	case entities.DistributionKindCorporateAction:
		return corporateActionStrategy{}, nil
	case entities.DistributionKindDirectPayout:
		return directPayoutStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", domainerrors.ErrInvalidDistributionInput, dist.Kind)
	}
}

type corporateActionStrategy struct{}

func (corporateActionStrategy) execute(ctx context.Context, executor ports.PaymentExecutor, dist entities.Distribution, pageIndex, pageSize int) (ports.SettlementResult, error) {
	return executor.SnapshotAndDistribute(ctx, dist, pageIndex, pageSize)
}

func (corporateActionStrategy) executeForAddresses(ctx context.Context, executor ports.PaymentExecutor, dist entities.Distribution, addresses []string) (ports.SettlementResult, error) {
	return executor.DistributeToAddresses(ctx, dist, addresses)
}

type directPayoutStrategy struct{}

func (directPayoutStrategy) execute(ctx context.Context, executor ports.PaymentExecutor, dist entities.Distribution, pageIndex, pageSize int) (ports.SettlementResult, error) {
	return executor.AmountSnapshot(ctx, dist, pageIndex, pageSize)
}

func (directPayoutStrategy) executeForAddresses(ctx context.Context, executor ports.PaymentExecutor, dist entities.Distribution, addresses []string) (ports.SettlementResult, error) {
	if dist.AmountType == entities.AmountTypePercentage {
		return executor.PercentageSnapshotForAddresses(ctx, dist, addresses)
	}
	return executor.AmountSnapshotForAddresses(ctx, dist, addresses)
}
