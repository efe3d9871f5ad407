package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	"paymaster/contexts/settlement/payout-service/ports"
	"paymaster/internal/shared/outbox"
)

func scheduledAt(id string, payoutAt time.Time) entities.Distribution {
	recordDate := payoutAt.Add(-24 * time.Hour)
	return entities.Distribution{
		ID:         id,
		AssetID:    "asset-1",
		Kind:       entities.DistributionKindCorporateAction,
		RecordDate: &recordDate,
		PayoutAt:   payoutAt,
		Status:     entities.DistributionStatusScheduled,
	}
}

func TestListDueScheduledOrdersByPayoutTimeAndHonorsLimit(t *testing.T) {
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	late := scheduledAt("dist-late", base.Add(2*time.Hour))
	early := scheduledAt("dist-early", base)
	future := scheduledAt("dist-future", base.Add(48*time.Hour))
	executed := scheduledAt("dist-done", base)
	executed.Status = entities.DistributionStatusCompleted

	store := NewStore([]entities.Distribution{late, early, future, executed})

	due, err := store.ListDueScheduled(context.Background(), base.Add(3*time.Hour), 0)
	if err != nil {
		t.Fatalf("list due failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due distributions, got %d", len(due))
	}
	if due[0].ID != "dist-early" || due[1].ID != "dist-late" {
		t.Fatalf("expected payout-time ordering, got %s then %s", due[0].ID, due[1].ID)
	}

	limited, err := store.ListDueScheduled(context.Background(), base.Add(3*time.Hour), 1)
	if err != nil {
		t.Fatalf("list due with limit failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "dist-early" {
		t.Fatalf("expected the earliest due distribution only, got %+v", limited)
	}
}

func TestListHoldersByDistributionAndStatusPreservesInsertionOrder(t *testing.T) {
	store := NewStore([]entities.Distribution{scheduledAt("dist-1", time.Now())})
	holders := []entities.Holder{
		{ID: "h1", BatchPayoutID: "b1", DistributionID: "dist-1", Status: entities.HolderStatusFailed},
		{ID: "h2", BatchPayoutID: "b1", DistributionID: "dist-1", Status: entities.HolderStatusSuccess},
		{ID: "h3", BatchPayoutID: "b2", DistributionID: "dist-1", Status: entities.HolderStatusFailed},
		{ID: "h4", BatchPayoutID: "b9", DistributionID: "dist-2", Status: entities.HolderStatusFailed},
	}
	if err := store.SaveHolders(context.Background(), holders); err != nil {
		t.Fatalf("save holders failed: %v", err)
	}

	failed, err := store.ListHoldersByDistributionAndStatus(context.Background(), "dist-1", entities.HolderStatusFailed)
	if err != nil {
		t.Fatalf("list failed holders failed: %v", err)
	}
	if len(failed) != 2 || failed[0].ID != "h1" || failed[1].ID != "h3" {
		t.Fatalf("expected h1 then h3, got %+v", failed)
	}

	counts, err := store.CountHoldersByStatus(context.Background(), "dist-1")
	if err != nil {
		t.Fatalf("count holders failed: %v", err)
	}
	if counts[entities.HolderStatusFailed] != 2 || counts[entities.HolderStatusSuccess] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestUpdateHoldersRejectsUnknownRow(t *testing.T) {
	store := NewStore(nil)
	err := store.UpdateHolders(context.Background(), []entities.Holder{{ID: "missing"}})
	if !errors.Is(err, domainerrors.ErrHolderNotFound) {
		t.Fatalf("expected ErrHolderNotFound, got %v", err)
	}
}

func TestCreateDistributionRejectsDuplicateID(t *testing.T) {
	dist := scheduledAt("dist-1", time.Now())
	store := NewStore([]entities.Distribution{dist})
	err := store.CreateDistribution(context.Background(), dist)
	if !errors.Is(err, domainerrors.ErrDistributionAlreadyExists) {
		t.Fatalf("expected ErrDistributionAlreadyExists, got %v", err)
	}
}

func TestCreateBatchRejectsDuplicateID(t *testing.T) {
	store := NewStore(nil)
	batch := entities.BatchPayout{ID: "b1", DistributionID: "dist-1"}
	if err := store.CreateBatch(context.Background(), batch); err != nil {
		t.Fatalf("create batch failed: %v", err)
	}
	err := store.CreateBatch(context.Background(), batch)
	if !errors.Is(err, domainerrors.ErrBatchesAlreadyExist) {
		t.Fatalf("expected ErrBatchesAlreadyExist, got %v", err)
	}
}

func TestMarkOutboxPublishedRejectsUnknownRow(t *testing.T) {
	store := NewStore(nil)
	err := store.MarkOutboxPublished(context.Background(), "missing", time.Now())
	if !errors.Is(err, domainerrors.ErrOutboxRowNotFound) {
		t.Fatalf("expected ErrOutboxRowNotFound, got %v", err)
	}
}

func TestOnBatchStatusChangedRecomputesDistributionStatus(t *testing.T) {
	ctx := context.Background()
	dist := scheduledAt("dist-1", time.Now())
	dist.Status = entities.DistributionStatusInProgress
	store := NewStore([]entities.Distribution{dist})

	batchOne := entities.BatchPayout{ID: "b1", DistributionID: dist.ID, Status: entities.BatchPayoutStatusCompleted}
	batchTwo := entities.BatchPayout{ID: "b2", DistributionID: dist.ID, Status: entities.BatchPayoutStatusInProgress}
	for _, batch := range []entities.BatchPayout{batchOne, batchTwo} {
		if err := store.CreateBatch(ctx, batch); err != nil {
			t.Fatalf("create batch failed: %v", err)
		}
	}

	if err := store.OnBatchStatusChanged(ctx, dist); err != nil {
		t.Fatalf("cascade failed: %v", err)
	}
	got, _ := store.GetDistribution(ctx, dist.ID)
	if got.Status != entities.DistributionStatusInProgress {
		t.Fatalf("expected in_progress while a batch settles, got %s", got.Status)
	}

	batchTwo.Status = entities.BatchPayoutStatusCompleted
	if err := store.UpdateBatch(ctx, batchTwo); err != nil {
		t.Fatalf("update batch failed: %v", err)
	}
	if err := store.OnBatchStatusChanged(ctx, dist); err != nil {
		t.Fatalf("cascade failed: %v", err)
	}
	got, _ = store.GetDistribution(ctx, dist.ID)
	if got.Status != entities.DistributionStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	batchTwo.Status = entities.BatchPayoutStatusFailed
	if err := store.UpdateBatch(ctx, batchTwo); err != nil {
		t.Fatalf("update batch failed: %v", err)
	}
	if err := store.OnBatchStatusChanged(ctx, dist); err != nil {
		t.Fatalf("cascade failed: %v", err)
	}
	got, _ = store.GetDistribution(ctx, dist.ID)
	if got.Status != entities.DistributionStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestOutboxAppendIsIdempotentByEventID(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	envelope := ports.EventEnvelope{
		EventID:      "evt-1",
		EventType:    "payout.batch_status_changed",
		OccurredAt:   time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC),
		PartitionKey: "dist-1",
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("duplicate append must be a no-op, got %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 0)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "evt-1" {
		t.Fatalf("expected one pending row, got %+v", pending)
	}
	if pending[0].Status != outbox.StatusPending {
		t.Fatalf("expected pending status, got %s", pending[0].Status)
	}

	publishedAt := envelope.OccurredAt.Add(time.Minute)
	if err := store.MarkOutboxPublished(ctx, "evt-1", publishedAt); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 0)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows after publish, got %+v", pending)
	}
}
