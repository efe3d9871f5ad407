package entities

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type HolderStatus string

const (
	HolderStatusFailed   HolderStatus = "failed"
	HolderStatusSuccess  HolderStatus = "success"
	HolderStatusRetrying HolderStatus = "retrying"
)

// FailureReasonExecution is recorded on holders the settlement layer reported
// as failed.
const FailureReasonExecution = "Payment execution failed"

// RetryBackoff is how long a failed holder waits before it is eligible for a
// retry pass.
const RetryBackoff = time.Hour

// Holder is one recipient's outcome within one batch payout. Rows are created
// once per batch execution and mutated in place on retries; a holder is never
// created as retrying.
type Holder struct {
	ID             string
	BatchPayoutID  string
	DistributionID string
	AccountID      string
	EVMAddress     string
	RetryCount     int
	Status         HolderStatus
	NextRetryAt    *time.Time
	FailureReason  string
	PaidAmount     decimal.NullDecimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WithRetrying marks the holder as an in-flight retry. The bumped retry count
// and cleared terminal fields make a crashed retry distinguishable from a
// terminal failure.
func (h Holder) WithRetrying(now time.Time) Holder {
	updated := h
	updated.Status = HolderStatusRetrying
	updated.RetryCount++
	updated.NextRetryAt = nil
	updated.FailureReason = ""
	updated.UpdatedAt = now.UTC()
	return updated
}

// WithSucceeded records a successful payment of the given amount.
func (h Holder) WithSucceeded(amount decimal.Decimal, now time.Time) Holder {
	updated := h
	updated.Status = HolderStatusSuccess
	updated.NextRetryAt = nil
	updated.FailureReason = ""
	updated.PaidAmount = decimal.NewNullDecimal(amount)
	updated.UpdatedAt = now.UTC()
	return updated
}

// WithFailed records a failed payment and schedules retry eligibility.
func (h Holder) WithFailed(reason string, now time.Time) Holder {
	nextRetry := now.UTC().Add(RetryBackoff)
	updated := h
	updated.Status = HolderStatusFailed
	updated.NextRetryAt = &nextRetry
	updated.FailureReason = reason
	updated.PaidAmount = decimal.NullDecimal{}
	updated.UpdatedAt = now.UTC()
	return updated
}

// IsZeroAddress reports whether the address is the settlement network's
// zero/sentinel address. The settlement layer uses it for empty recipient
// slots, which are not real holders.
func IsZeroAddress(address string) bool {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return true
	}
	return common.HexToAddress(trimmed) == (common.Address{})
}

// CanonicalAddress normalizes an EVM hex address to its checksummed form so
// settlement responses can be matched against stored holders regardless of
// casing.
func CanonicalAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return trimmed
	}
	return common.HexToAddress(trimmed).Hex()
}
