package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	"paymaster/contexts/settlement/payout-service/ports"

	"github.com/shopspring/decimal"
)

// seedFailedDistribution stores a failed distribution with one failed batch
// (two failed holders) and one completed batch (one succeeded holder).
func seedFailedDistribution(t *testing.T, env testEnv) (entities.Distribution, entities.BatchPayout, entities.BatchPayout) {
	t.Helper()
	ctx := context.Background()
	now := env.uc.Clock.Now().Add(-2 * time.Hour)

	dist, err := env.store.GetDistribution(ctx, "dist-1")
	if err != nil {
		t.Fatalf("seed distribution missing: %v", err)
	}
	dist.Status = entities.DistributionStatusFailed
	if err := env.store.UpdateDistribution(ctx, dist); err != nil {
		t.Fatalf("seed distribution failed: %v", err)
	}

	failedBatch := entities.BatchPayout{
		ID:              "batch-1",
		DistributionID:  dist.ID,
		Name:            "Batch 1",
		TransactionID:   "0.0.100",
		TransactionHash: "0xaaa",
		RecipientCount:  2,
		Status:          entities.BatchPayoutStatusFailed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	completedBatch := entities.BatchPayout{
		ID:              "batch-2",
		DistributionID:  dist.ID,
		Name:            "Batch 2",
		TransactionID:   "0.0.101",
		TransactionHash: "0xbbb",
		RecipientCount:  1,
		Status:          entities.BatchPayoutStatusCompleted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, batch := range []entities.BatchPayout{failedBatch, completedBatch} {
		if err := env.store.CreateBatch(ctx, batch); err != nil {
			t.Fatalf("seed batch failed: %v", err)
		}
	}

	nextRetry := now.Add(entities.RetryBackoff)
	holders := []entities.Holder{
		{
			ID: "holder-1", BatchPayoutID: failedBatch.ID, DistributionID: dist.ID,
			AccountID: "0.0.2001", EVMAddress: entities.CanonicalAddress(addrOne),
			Status: entities.HolderStatusFailed, NextRetryAt: &nextRetry,
			FailureReason: entities.FailureReasonExecution, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "holder-2", BatchPayoutID: failedBatch.ID, DistributionID: dist.ID,
			AccountID: "0.0.2002", EVMAddress: entities.CanonicalAddress(addrTwo),
			Status: entities.HolderStatusFailed, NextRetryAt: &nextRetry,
			FailureReason: entities.FailureReasonExecution, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "holder-3", BatchPayoutID: completedBatch.ID, DistributionID: dist.ID,
			AccountID: "0.0.2003", EVMAddress: entities.CanonicalAddress(addrThree),
			Status:     entities.HolderStatusSuccess,
			PaidAmount: decimal.NewNullDecimal(decimal.NewFromInt(9)),
			CreatedAt:  now, UpdatedAt: now,
		},
	}
	if err := env.store.SaveHolders(ctx, holders); err != nil {
		t.Fatalf("seed holders failed: %v", err)
	}
	return dist, failedBatch, completedBatch
}

func TestRetryFailedHoldersMixedOutcome(t *testing.T) {
	env := newTestEnv([]entities.Distribution{scheduledDistribution("dist-1")}, 100)
	dist, failedBatch, _ := seedFailedDistribution(t, env)

	// addrOne succeeds (reported lowercase, matching must be case-insensitive),
	// addrTwo is absent from the response entirely.
	env.engine.Script(ports.SettlementResult{
		SucceededAddresses: []string{strings.ToLower(addrOne)},
		PaidAmounts:        []decimal.Decimal{decimal.NewFromInt(15)},
		TransactionID:      "0.0.200",
	})

	if err := env.uc.RetryFailedHolders(context.Background(), dist.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	calls := env.engine.Calls()
	if len(calls) != 1 || calls[0].Method != "DistributeToAddresses" {
		t.Fatalf("expected one DistributeToAddresses call, got %+v", calls)
	}
	if len(calls[0].Addresses) != 2 {
		t.Fatalf("expected 2 retried addresses, got %v", calls[0].Addresses)
	}

	holders, _ := env.store.ListHoldersByBatch(context.Background(), failedBatch.ID)
	if len(holders) != 2 {
		t.Fatalf("retry must mutate rows, not create them: got %d holders", len(holders))
	}
	recovered, missing := holders[0], holders[1]
	if recovered.Status != entities.HolderStatusSuccess {
		t.Fatalf("expected holder-1 success, got %s", recovered.Status)
	}
	if !recovered.PaidAmount.Decimal.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("unexpected paid amount %v", recovered.PaidAmount)
	}
	if recovered.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", recovered.RetryCount)
	}
	if missing.Status != entities.HolderStatusFailed {
		t.Fatalf("expected holder-2 failed, got %s", missing.Status)
	}
	if missing.FailureReason != "Address missing from settlement result" {
		t.Fatalf("unexpected failure reason %q", missing.FailureReason)
	}
	if missing.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", missing.RetryCount)
	}

	batch, _ := env.store.GetBatch(context.Background(), failedBatch.ID)
	if batch.Status != entities.BatchPayoutStatusFailed {
		t.Fatalf("batch with a failed holder must stay failed, got %s", batch.Status)
	}
	got, _ := env.store.GetDistribution(context.Background(), dist.ID)
	if got.Status != entities.DistributionStatusFailed {
		t.Fatalf("expected distribution still failed, got %s", got.Status)
	}

	untouched, _ := env.store.ListHoldersByBatch(context.Background(), "batch-2")
	if untouched[0].RetryCount != 0 || untouched[0].Status != entities.HolderStatusSuccess {
		t.Fatalf("succeeded holder must not be re-driven: %+v", untouched[0])
	}
}

func TestRetryFullRecoveryCompletesDistribution(t *testing.T) {
	env := newTestEnv([]entities.Distribution{scheduledDistribution("dist-1")}, 100)
	dist, failedBatch, _ := seedFailedDistribution(t, env)

	env.engine.Script(ports.SettlementResult{
		SucceededAddresses: []string{addrOne, addrTwo},
		PaidAmounts:        []decimal.Decimal{decimal.NewFromInt(15), decimal.NewFromInt(25)},
	})

	if err := env.uc.RetryFailedHolders(context.Background(), dist.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	batch, _ := env.store.GetBatch(context.Background(), failedBatch.ID)
	if batch.Status != entities.BatchPayoutStatusCompleted {
		t.Fatalf("expected recovered batch completed, got %s", batch.Status)
	}
	got, _ := env.store.GetDistribution(context.Background(), dist.ID)
	if got.Status != entities.DistributionStatusCompleted {
		t.Fatalf("expected distribution completed, got %s", got.Status)
	}
}

func TestRetryRequiresFailedStatus(t *testing.T) {
	dist := scheduledDistribution("dist-1")
	dist.Status = entities.DistributionStatusCompleted
	env := newTestEnv([]entities.Distribution{dist}, 100)

	err := env.uc.RetryFailedHolders(context.Background(), dist.ID)
	if !errors.Is(err, domainerrors.ErrDistributionNotInStatus) {
		t.Fatalf("expected ErrDistributionNotInStatus, got %v", err)
	}
}

func TestRetryUnknownDistribution(t *testing.T) {
	env := newTestEnv(nil, 100)
	err := env.uc.RetryFailedHolders(context.Background(), "missing")
	if !errors.Is(err, domainerrors.ErrDistributionNotFound) {
		t.Fatalf("expected ErrDistributionNotFound, got %v", err)
	}
}

func TestRetryWithoutFailedHoldersIsNoop(t *testing.T) {
	dist := scheduledDistribution("dist-1")
	dist.Status = entities.DistributionStatusFailed
	env := newTestEnv([]entities.Distribution{dist}, 100)

	if err := env.uc.RetryFailedHolders(context.Background(), dist.ID); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
	if len(env.engine.Calls()) != 0 {
		t.Fatal("settlement layer must not be called without failed holders")
	}
}

func TestRetrySettlementFailureLeavesHoldersRetrying(t *testing.T) {
	env := newTestEnv([]entities.Distribution{scheduledDistribution("dist-1")}, 100)
	dist, failedBatch, _ := seedFailedDistribution(t, env)
	env.engine.ScriptError(errors.New("settlement layer unavailable"))

	err := env.uc.RetryFailedHolders(context.Background(), dist.ID)
	if err == nil {
		t.Fatal("expected settlement error to surface")
	}

	holders, _ := env.store.ListHoldersByBatch(context.Background(), failedBatch.ID)
	for _, holder := range holders {
		if holder.Status != entities.HolderStatusRetrying {
			t.Fatalf("expected holder %s left retrying, got %s", holder.ID, holder.Status)
		}
		if holder.RetryCount != 1 {
			t.Fatalf("expected bumped retry count, got %d", holder.RetryCount)
		}
	}
}

func TestRetryRejectsShortPaidAmountList(t *testing.T) {
	env := newTestEnv([]entities.Distribution{scheduledDistribution("dist-1")}, 100)
	dist, failedBatch, _ := seedFailedDistribution(t, env)

	env.engine.Script(ports.SettlementResult{
		SucceededAddresses: []string{addrOne, addrTwo},
		PaidAmounts:        []decimal.Decimal{decimal.NewFromInt(15)},
	})

	err := env.uc.RetryFailedHolders(context.Background(), dist.ID)
	if !errors.Is(err, domainerrors.ErrSettlementResultMismatch) {
		t.Fatalf("expected ErrSettlementResultMismatch, got %v", err)
	}

	holders, _ := env.store.ListHoldersByBatch(context.Background(), failedBatch.ID)
	for _, holder := range holders {
		if holder.Status != entities.HolderStatusRetrying {
			t.Fatalf("expected holder %s left retrying, got %s", holder.ID, holder.Status)
		}
		if holder.PaidAmount.Valid {
			t.Fatalf("rejected response must not record paid amounts, got %+v", holder.PaidAmount)
		}
	}
}

func TestRetryPercentagePayoutUsesPercentageSnapshot(t *testing.T) {
	dist := entities.Distribution{
		ID:         "dist-1",
		AssetID:    "asset-1",
		Kind:       entities.DistributionKindDirectPayout,
		AmountType: entities.AmountTypePercentage,
		Amount:     decimal.RequireFromString("1.5"),
		PayoutAt:   time.Date(2026, time.April, 1, 11, 0, 0, 0, time.UTC),
		Status:     entities.DistributionStatusScheduled,
	}
	env := newTestEnv([]entities.Distribution{dist}, 100)
	seedFailedDistribution(t, env)

	env.engine.Script(ports.SettlementResult{
		SucceededAddresses: []string{addrOne, addrTwo},
		PaidAmounts:        []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2)},
	})
	if err := env.uc.RetryFailedHolders(context.Background(), dist.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	calls := env.engine.Calls()
	if len(calls) != 1 || calls[0].Method != "PercentageSnapshotForAddresses" {
		t.Fatalf("expected PercentageSnapshotForAddresses, got %+v", calls)
	}
}
