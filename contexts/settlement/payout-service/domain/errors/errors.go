package errors

import "errors"

var (
	ErrDistributionNotFound      = errors.New("distribution not found")
	ErrDistributionAlreadyExists = errors.New("distribution already exists")
	ErrDistributionNotInStatus   = errors.New("distribution not in required status")
	ErrBatchesAlreadyExist       = errors.New("batch payouts already exist for distribution")
	ErrBatchPayoutNotFound       = errors.New("batch payout not found")
	ErrHolderNotFound            = errors.New("holder not found")
	ErrInvalidDistributionInput  = errors.New("invalid distribution input")
	ErrSettlementResultMismatch  = errors.New("settlement result does not match submitted addresses")
	ErrOutboxRowNotFound         = errors.New("outbox row not found")
	ErrOutboxPayloadConflict     = errors.New("outbox row already exists with a different payload")
)
