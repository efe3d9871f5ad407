package ports

import (
	"context"
	"time"

	"paymaster/contexts/settlement/payout-service/domain/entities"
	"paymaster/internal/shared/events"
	"paymaster/internal/shared/outbox"

	"github.com/shopspring/decimal"
)

// SettlementResult is the per-call response shape of the payment executor.
// PaidAmounts is index-aligned with SucceededAddresses. TransactionID is
// empty when the settlement layer did not report one.
type SettlementResult struct {
	FailedAddresses    []string
	SucceededAddresses []string
	PaidAmounts        []decimal.Decimal
	TransactionID      string
}

// PaymentExecutor is the external settlement layer that actually moves funds.
// The first two entry points settle one page of a distribution's holder set;
// the ByAddresses variants re-drive an explicit address list on retries.
type PaymentExecutor interface {
	SnapshotAndDistribute(ctx context.Context, dist entities.Distribution, pageIndex, pageSize int) (SettlementResult, error)
	AmountSnapshot(ctx context.Context, dist entities.Distribution, pageIndex, pageSize int) (SettlementResult, error)
	DistributeToAddresses(ctx context.Context, dist entities.Distribution, addresses []string) (SettlementResult, error)
	AmountSnapshotForAddresses(ctx context.Context, dist entities.Distribution, addresses []string) (SettlementResult, error)
	PercentageSnapshotForAddresses(ctx context.Context, dist entities.Distribution, addresses []string) (SettlementResult, error)
}

// TransactionRecord is the resolved human-readable form of a settlement
// transaction identifier.
type TransactionRecord struct {
	TransactionHash string
	FromMirrorNode  bool
}

type TransactionHashResolver interface {
	ResolveHash(ctx context.Context, transactionID string) (TransactionRecord, error)
}

// AddressResolver maps a settlement-layer source address onto the network's
// account representation.
type AddressResolver interface {
	ToSettlementAddress(ctx context.Context, address string) (string, error)
}

// HolderCounter is the variant-specific holder-count oracle feeding the
// batching planner.
type HolderCounter interface {
	CountHolders(ctx context.Context, dist entities.Distribution) (int, error)
}

// StatusCascader propagates a batch status change to the owning distribution.
type StatusCascader interface {
	OnBatchStatusChanged(ctx context.Context, dist entities.Distribution) error
}

type Repository interface {
	CreateDistribution(ctx context.Context, dist entities.Distribution) error
	GetDistribution(ctx context.Context, distributionID string) (entities.Distribution, error)
	UpdateDistribution(ctx context.Context, dist entities.Distribution) error
	ListDueScheduled(ctx context.Context, threshold time.Time, limit int) ([]entities.Distribution, error)

	CreateBatch(ctx context.Context, batch entities.BatchPayout) error
	UpdateBatch(ctx context.Context, batch entities.BatchPayout) error
	GetBatch(ctx context.Context, batchID string) (entities.BatchPayout, error)
	ListBatchesByDistribution(ctx context.Context, distributionID string) ([]entities.BatchPayout, error)

	SaveHolders(ctx context.Context, holders []entities.Holder) error
	UpdateHolders(ctx context.Context, holders []entities.Holder) error
	ListHoldersByBatch(ctx context.Context, batchID string) ([]entities.Holder, error)
	ListHoldersByDistributionAndStatus(ctx context.Context, distributionID string, status entities.HolderStatus) ([]entities.Holder, error)
	CountHoldersByStatus(ctx context.Context, distributionID string) (map[entities.HolderStatus]int, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the shared cross-module event shape.
type EventEnvelope = events.Envelope

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage = outbox.Message

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher publishes envelopes to a topic on the process bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
