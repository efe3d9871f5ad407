package commands

import (
	"context"
	"fmt"

	application "paymaster/contexts/settlement/payout-service/application"
	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	"paymaster/contexts/settlement/payout-service/ports"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// payment pairs one succeeded address with its paid amount. Zipping happens
// before zero-address filtering so a sentinel entry can never shift the
// amounts against the remaining addresses.
type payment struct {
	address string
	amount  decimal.Decimal
}

// materializeHolders turns one settlement response into holder rows for the
// batch: failed addresses first, then succeeded ones, with zero-address
// sentinel slots dropped from both lists. All rows are persisted in a single
// batch write.
func (uc UseCase) materializeHolders(ctx context.Context, batch entities.BatchPayout, result ports.SettlementResult) ([]entities.Holder, error) {
	logger := application.ResolveLogger(uc.Logger)

	if err := validateSettlementResult(result); err != nil {
		logger.Error("payout settlement result rejected",
			"event", "payout_settlement_result_rejected",
			"module", "settlement/payout-service",
			"layer", "application",
			"batch_id", batch.ID,
			"succeeded_count", len(result.SucceededAddresses),
			"amount_count", len(result.PaidAmounts),
			"error", err.Error(),
		)
		return nil, err
	}

	failed := filterZeroAddresses(result.FailedAddresses)
	succeeded := zipPayments(result.SucceededAddresses, result.PaidAmounts)

	accountIDs, err := uc.resolveAddresses(ctx, failed, addressesOf(succeeded))
	if err != nil {
		logger.Error("payout address resolution failed",
			"event", "payout_address_resolution_failed",
			"module", "settlement/payout-service",
			"layer", "application",
			"batch_id", batch.ID,
			"error", err.Error(),
		)
		return nil, err
	}

	now := uc.now()
	holders := make([]entities.Holder, 0, len(failed)+len(succeeded))
	for i, address := range failed {
		id, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		holder := entities.Holder{
			ID:             id,
			BatchPayoutID:  batch.ID,
			DistributionID: batch.DistributionID,
			AccountID:      accountIDs[i],
			EVMAddress:     entities.CanonicalAddress(address),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		holders = append(holders, holder.WithFailed(entities.FailureReasonExecution, now))
	}
	for i, pay := range succeeded {
		id, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		holder := entities.Holder{
			ID:             id,
			BatchPayoutID:  batch.ID,
			DistributionID: batch.DistributionID,
			AccountID:      accountIDs[len(failed)+i],
			EVMAddress:     entities.CanonicalAddress(pay.address),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		holders = append(holders, holder.WithSucceeded(pay.amount, now))
	}

	if len(holders) == 0 {
		return nil, nil
	}
	if err := uc.Repository.SaveHolders(ctx, holders); err != nil {
		return nil, err
	}
	return holders, nil
}

// resolveAddresses maps every address to its settlement account id. Calls run
// concurrently; results land by index so the failed-then-succeeded grouping
// order is preserved.
func (uc UseCase) resolveAddresses(ctx context.Context, groups ...[]string) ([]string, error) {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	resolved := make([]string, total)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.resolveConcurrency())

	offset := 0
	for _, group := range groups {
		for i, address := range group {
			index, address := offset+i, address
			g.Go(func() error {
				accountID, err := uc.Addresses.ToSettlementAddress(ctx, address)
				if err != nil {
					return err
				}
				resolved[index] = accountID
				return nil
			})
		}
		offset += len(group)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func filterZeroAddresses(addresses []string) []string {
	filtered := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if entities.IsZeroAddress(address) {
			continue
		}
		filtered = append(filtered, address)
	}
	return filtered
}

// validateSettlementResult rejects a response whose paid amounts do not line
// up one-to-one with the succeeded addresses. Persisting a recipient as paid
// without a reported amount would forge a ledger entry, so the whole response
// is refused instead.
func validateSettlementResult(result ports.SettlementResult) error {
	if len(result.PaidAmounts) != len(result.SucceededAddresses) {
		return fmt.Errorf("%w: %d succeeded addresses, %d paid amounts",
			domainerrors.ErrSettlementResultMismatch,
			len(result.SucceededAddresses), len(result.PaidAmounts))
	}
	return nil
}

func zipPayments(addresses []string, amounts []decimal.Decimal) []payment {
	payments := make([]payment, 0, len(addresses))
	for i, address := range addresses {
		if entities.IsZeroAddress(address) {
			continue
		}
		payments = append(payments, payment{address: address, amount: amounts[i]})
	}
	return payments
}

func addressesOf(payments []payment) []string {
	addresses := make([]string, len(payments))
	for i, pay := range payments {
		addresses[i] = pay.address
	}
	return addresses
}
