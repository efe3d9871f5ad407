package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"paymaster/contexts/settlement/payout-service/adapters/memory"
	"paymaster/contexts/settlement/payout-service/ports"
)

type capturePublisher struct {
	topics    []string
	envelopes []ports.EventEnvelope
	err       error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.envelopes = append(p.envelopes, event)
	return nil
}

func appendEnvelope(t *testing.T, store *memory.Store, eventID string, occurredAt time.Time) {
	t.Helper()
	err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:      eventID,
		EventType:    "payout.batch_status_changed",
		OccurredAt:   occurredAt,
		PartitionKey: "dist-1",
	})
	if err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}
}

func TestOutboxRelayPublishesPendingInOrder(t *testing.T) {
	store := memory.NewStore(nil)
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	appendEnvelope(t, store, "evt-2", base.Add(time.Minute))
	appendEnvelope(t, store, "evt-1", base)

	publisher := &capturePublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Topic: "payout.status"}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay cycle failed: %v", err)
	}
	if len(publisher.envelopes) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.envelopes))
	}
	if publisher.envelopes[0].EventID != "evt-1" || publisher.envelopes[1].EventID != "evt-2" {
		t.Fatalf("expected oldest-first publish order, got %s then %s",
			publisher.envelopes[0].EventID, publisher.envelopes[1].EventID)
	}
	if publisher.topics[0] != "payout.status" {
		t.Fatalf("unexpected topic %q", publisher.topics[0])
	}

	pending, err := store.ListPendingOutbox(context.Background(), 0)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected published rows to be acknowledged, got %d pending", len(pending))
	}
}

func TestOutboxRelayLeavesRowsPendingOnPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	appendEnvelope(t, store, "evt-1", time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC))

	publisher := &capturePublisher{err: errors.New("broker unavailable")}
	relay := OutboxRelay{Outbox: store, Publisher: publisher}

	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatal("expected publish failure to surface")
	}
	pending, err := store.ListPendingOutbox(context.Background(), 0)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("failed publish must keep the row pending, got %d", len(pending))
	}
}

func TestOutboxRelayEmptyQueueIsNoop(t *testing.T) {
	relay := OutboxRelay{Outbox: memory.NewStore(nil), Publisher: &capturePublisher{}}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("empty cycle failed: %v", err)
	}
}
