package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"paymaster/contexts/settlement/payout-service/domain/entities"
	domainerrors "paymaster/contexts/settlement/payout-service/domain/errors"
	"paymaster/contexts/settlement/payout-service/ports"
	"paymaster/internal/shared/outbox"

	"github.com/google/uuid"
)

// Store is the in-memory repository used by tests and the in-memory module.
// It also implements the holder-count oracle and the distribution status
// cascade so a full payout cycle can run without external services.
type Store struct {
	mu sync.RWMutex

	distributions map[string]entities.Distribution
	batches       map[string]entities.BatchPayout
	batchOrder    map[string][]string
	holders       map[string]entities.Holder
	holderOrder   []string
	holderCounts  map[string]int
	outboxRows    map[string]outbox.Message
}

func NewStore(seed []entities.Distribution) *Store {
	distributions := make(map[string]entities.Distribution, len(seed))
	for _, dist := range seed {
		distributions[dist.ID] = dist
	}
	return &Store{
		distributions: distributions,
		batches:       make(map[string]entities.BatchPayout),
		batchOrder:    make(map[string][]string),
		holders:       make(map[string]entities.Holder),
		holderCounts:  make(map[string]int),
		outboxRows:    make(map[string]outbox.Message),
	}
}

// SeedHolderCount fixes the holder-count oracle's answer for a distribution.
func (s *Store) SeedHolderCount(distributionID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holderCounts[distributionID] = count
}

func (s *Store) CreateDistribution(_ context.Context, dist entities.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.distributions[dist.ID]; exists {
		return domainerrors.ErrDistributionAlreadyExists
	}
	s.distributions[dist.ID] = dist
	return nil
}

func (s *Store) GetDistribution(_ context.Context, distributionID string) (entities.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist, exists := s.distributions[strings.TrimSpace(distributionID)]
	if !exists {
		return entities.Distribution{}, domainerrors.ErrDistributionNotFound
	}
	return dist, nil
}

func (s *Store) UpdateDistribution(_ context.Context, dist entities.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.distributions[dist.ID]; !exists {
		return domainerrors.ErrDistributionNotFound
	}
	s.distributions[dist.ID] = dist
	return nil
}

func (s *Store) ListDueScheduled(_ context.Context, threshold time.Time, limit int) ([]entities.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	due := make([]entities.Distribution, 0, limit)
	for _, dist := range s.distributions {
		if dist.Status != entities.DistributionStatusScheduled {
			continue
		}
		if dist.PayoutAt.After(threshold.UTC()) {
			continue
		}
		due = append(due, dist)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].PayoutAt.Before(due[j].PayoutAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) CreateBatch(_ context.Context, batch entities.BatchPayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; exists {
		return domainerrors.ErrBatchesAlreadyExist
	}
	s.batches[batch.ID] = batch
	s.batchOrder[batch.DistributionID] = append(s.batchOrder[batch.DistributionID], batch.ID)
	return nil
}

func (s *Store) UpdateBatch(_ context.Context, batch entities.BatchPayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; !exists {
		return domainerrors.ErrBatchPayoutNotFound
	}
	s.batches[batch.ID] = batch
	return nil
}

func (s *Store) GetBatch(_ context.Context, batchID string) (entities.BatchPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, exists := s.batches[strings.TrimSpace(batchID)]
	if !exists {
		return entities.BatchPayout{}, domainerrors.ErrBatchPayoutNotFound
	}
	return batch, nil
}

func (s *Store) ListBatchesByDistribution(_ context.Context, distributionID string) ([]entities.BatchPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.batchOrder[strings.TrimSpace(distributionID)]
	batches := make([]entities.BatchPayout, 0, len(ids))
	for _, id := range ids {
		batches = append(batches, s.batches[id])
	}
	return batches, nil
}

func (s *Store) SaveHolders(_ context.Context, holders []entities.Holder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, holder := range holders {
		if _, exists := s.holders[holder.ID]; !exists {
			s.holderOrder = append(s.holderOrder, holder.ID)
		}
		s.holders[holder.ID] = holder
	}
	return nil
}

func (s *Store) UpdateHolders(_ context.Context, holders []entities.Holder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, holder := range holders {
		if _, exists := s.holders[holder.ID]; !exists {
			return domainerrors.ErrHolderNotFound
		}
	}
	for _, holder := range holders {
		s.holders[holder.ID] = holder
	}
	return nil
}

func (s *Store) ListHoldersByBatch(_ context.Context, batchID string) ([]entities.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalizedID := strings.TrimSpace(batchID)
	holders := make([]entities.Holder, 0)
	for _, id := range s.holderOrder {
		if holder := s.holders[id]; holder.BatchPayoutID == normalizedID {
			holders = append(holders, holder)
		}
	}
	return holders, nil
}

func (s *Store) ListHoldersByDistributionAndStatus(_ context.Context, distributionID string, status entities.HolderStatus) ([]entities.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalizedID := strings.TrimSpace(distributionID)
	holders := make([]entities.Holder, 0)
	for _, id := range s.holderOrder {
		holder := s.holders[id]
		if holder.DistributionID == normalizedID && holder.Status == status {
			holders = append(holders, holder)
		}
	}
	return holders, nil
}

func (s *Store) CountHoldersByStatus(_ context.Context, distributionID string) (map[entities.HolderStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalizedID := strings.TrimSpace(distributionID)
	counts := make(map[entities.HolderStatus]int)
	for _, holder := range s.holders {
		if holder.DistributionID == normalizedID {
			counts[holder.Status]++
		}
	}
	return counts, nil
}

// CountHolders is the oracle answer seeded via SeedHolderCount.
func (s *Store) CountHolders(_ context.Context, dist entities.Distribution) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holderCounts[dist.ID], nil
}

// OnBatchStatusChanged recomputes the distribution's status from its batches:
// any failed batch fails the distribution, all completed completes it,
// anything else keeps it in progress.
func (s *Store) OnBatchStatusChanged(_ context.Context, dist entities.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.distributions[dist.ID]
	if !exists {
		return domainerrors.ErrDistributionNotFound
	}

	ids := s.batchOrder[dist.ID]
	if len(ids) == 0 {
		return nil
	}
	next := entities.DistributionStatusCompleted
	for _, id := range ids {
		switch s.batches[id].Status {
		case entities.BatchPayoutStatusFailed:
			next = entities.DistributionStatusFailed
		case entities.BatchPayoutStatusCompleted:
		default:
			if next != entities.DistributionStatusFailed {
				next = entities.DistributionStatusInProgress
			}
		}
	}
	current.Status = next
	current.UpdatedAt = time.Now().UTC()
	s.distributions[dist.ID] = current
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(envelope.EventID)
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.outboxRows[id]; exists {
		return nil
	}
	s.outboxRows[id] = outbox.Message{
		ID:           id,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	pending := make([]ports.OutboxMessage, 0)
	for _, row := range s.outboxRows {
		if row.Status == outbox.StatusPending {
			pending = append(pending, row)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.outboxRows[strings.TrimSpace(outboxID)]
	if !exists {
		return domainerrors.ErrOutboxRowNotFound
	}
	timestamp := publishedAt.UTC()
	row.Status = outbox.StatusPublished
	row.PublishedAt = &timestamp
	s.outboxRows[outboxID] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.Repository = (*Store)(nil)
var _ ports.HolderCounter = (*Store)(nil)
var _ ports.StatusCascader = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
