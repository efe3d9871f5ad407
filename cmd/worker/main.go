package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"paymaster/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Run the cron scheduler (due payouts + outbox relay) until SIGINT/SIGTERM.
func main() {
	log.Println("paymaster worker starting")
	app, err := bootstrap.BuildWorker()
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("paymaster worker stopped with error: %v", err)
	}

	log.Println("paymaster worker stopped")
}
