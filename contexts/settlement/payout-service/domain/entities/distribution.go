package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type DistributionKind string

const (
	// DistributionKindCorporateAction pays holders of record at a snapshot
	// date; the settlement layer computes per-holder amounts.
	DistributionKindCorporateAction DistributionKind = "corporate_action"
	// DistributionKindDirectPayout pays an explicit amount, either fixed per
	// holder or a percentage of the holder's balance at its own snapshot.
	DistributionKindDirectPayout DistributionKind = "direct_payout"
)

type AmountType string

const (
	AmountTypeFixed      AmountType = "fixed"
	AmountTypePercentage AmountType = "percentage"
)

type DistributionStatus string

const (
	DistributionStatusScheduled  DistributionStatus = "scheduled"
	DistributionStatusInProgress DistributionStatus = "in_progress"
	DistributionStatusCompleted  DistributionStatus = "completed"
	DistributionStatusFailed     DistributionStatus = "failed"
)

// Distribution is one payment campaign against an asset's holder set.
// Status is only mutated by the status cascade after batch-level changes,
// except for the scheduled -> in_progress kickoff transition.
type Distribution struct {
	ID         string
	AssetID    string
	Kind       DistributionKind
	AmountType AmountType
	Amount     decimal.Decimal
	RecordDate *time.Time
	PayoutAt   time.Time
	Status     DistributionStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
