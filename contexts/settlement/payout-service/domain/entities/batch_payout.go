package entities

import "time"

type BatchPayoutStatus string

const (
	BatchPayoutStatusInProgress BatchPayoutStatus = "in_progress"
	BatchPayoutStatusCompleted  BatchPayoutStatus = "completed"
	BatchPayoutStatusFailed     BatchPayoutStatus = "failed"
)

// Sentinel transaction fields carried by a batch until the settlement layer
// reports a real transaction for it.
const (
	ZeroTransactionID   = "0.0.0"
	ZeroTransactionHash = "0x0"
)

// BatchPayout is one fixed-size slice of a distribution's recipient set.
// Everything except the status and transaction fields is immutable after
// creation.
type BatchPayout struct {
	ID              string
	DistributionID  string
	Name            string
	TransactionID   string
	TransactionHash string
	RecipientCount  int
	Status          BatchPayoutStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WithTransaction returns a copy with the settlement transaction recorded.
// Identity and creation timestamp never change across the update.
func (b BatchPayout) WithTransaction(transactionID, transactionHash string, now time.Time) BatchPayout {
	updated := b
	updated.TransactionID = transactionID
	updated.TransactionHash = transactionHash
	updated.UpdatedAt = now.UTC()
	return updated
}

// WithStatus returns a copy carrying the given status.
func (b BatchPayout) WithStatus(status BatchPayoutStatus, now time.Time) BatchPayout {
	updated := b
	updated.Status = status
	updated.UpdatedAt = now.UTC()
	return updated
}

// RollUpBatchStatus derives a batch's status from its holders. Any failed
// holder marks the batch failed; a batch with every holder succeeded is
// completed; a mix of success and retrying leaves the current status alone,
// the batch is still settling.
func RollUpBatchStatus(current BatchPayoutStatus, holders []Holder) BatchPayoutStatus {
	if len(holders) == 0 {
		return current
	}
	allSucceeded := true
	for _, holder := range holders {
		switch holder.Status {
		case HolderStatusFailed:
			return BatchPayoutStatusFailed
		case HolderStatusSuccess:
		default:
			allSucceeded = false
		}
	}
	if allSucceeded {
		return BatchPayoutStatusCompleted
	}
	return current
}
