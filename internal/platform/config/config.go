package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	// Settlement layer.
	RPCURL          string
	ContractAddress string
	OperatorKey     string
	ChainID         *big.Int
	TokenDecimals   int32
	MirrorNodeURL   string

	// Payout pipeline knobs.
	PayoutBatchSize    int
	ResolveConcurrency int

	// Worker scheduling.
	PayoutCronSpec  string
	DueBatchLimit   int
	OutboxTopic     string
	OutboxBatchSize int
}

// Load reads configuration from the environment, honoring an optional .env
// file for local runs.
func Load() (Config, error) {
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "paymaster"
	}
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		RPCURL:          os.Getenv("RPC_URL"),
		ContractAddress: os.Getenv("DISTRIBUTOR_CONTRACT_ADDRESS"),
		OperatorKey:     os.Getenv("OPERATOR_PRIVATE_KEY"),
		ChainID:         big.NewInt(int64(envInt("CHAIN_ID", 296))),
		TokenDecimals:   int32(envInt("TOKEN_DECIMALS", 18)),
		MirrorNodeURL:   envString("MIRROR_NODE_URL", "https://testnet.mirrornode.hedera.com"),

		PayoutBatchSize:    envInt("PAYOUT_BATCH_SIZE", 100),
		ResolveConcurrency: envInt("ADDRESS_RESOLVE_CONCURRENCY", 8),

		PayoutCronSpec:  envString("PAYOUT_CRON_SPEC", "@every 1m"),
		DueBatchLimit:   envInt("PAYOUT_DUE_LIMIT", 10),
		OutboxTopic:     envString("OUTBOX_TOPIC", "payout.status"),
		OutboxBatchSize: envInt("OUTBOX_BATCH_SIZE", 100),
	}, nil
}

func envString(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
