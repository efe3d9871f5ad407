// Package payoutservice implements batch payout orchestration against an
// external settlement layer.
//
// The module owns the payout distribution, batch payout, and holder tables and
// exposes HTTP command/query handlers plus worker entrypoints for due-schedule
// processing and outbox relay. A distribution is split into fixed-size
// batches, each batch is settled with one executor call, and per-holder
// outcomes drive batch and distribution status. Failed holders are retried
// explicitly, without re-paying anyone who already succeeded.
package payoutservice
