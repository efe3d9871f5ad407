package payoutservice

import (
	"log/slog"

	httpadapter "paymaster/contexts/settlement/payout-service/adapters/http"
	"paymaster/contexts/settlement/payout-service/adapters/memory"
	"paymaster/contexts/settlement/payout-service/application/commands"
	"paymaster/contexts/settlement/payout-service/application/queries"
	"paymaster/contexts/settlement/payout-service/application/workers"
	"paymaster/contexts/settlement/payout-service/domain/entities"
	"paymaster/contexts/settlement/payout-service/ports"
)

type Module struct {
	Handler    httpadapter.Handler
	Commands   commands.UseCase
	Queries    queries.UseCase
	PayoutJob  workers.PayoutJob
	Store      *memory.Store
	Settlement *memory.SettlementEngine
}

type Dependencies struct {
	Repository ports.Repository
	Executor   ports.PaymentExecutor
	Hashes     ports.TransactionHashResolver
	Addresses  ports.AddressResolver
	Holders    ports.HolderCounter
	Cascade    ports.StatusCascader
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger

	BatchSize          int
	ResolveConcurrency int
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Repository:         deps.Repository,
		Executor:           deps.Executor,
		Hashes:             deps.Hashes,
		Addresses:          deps.Addresses,
		Holders:            deps.Holders,
		Cascade:            deps.Cascade,
		Outbox:             deps.Outbox,
		Clock:              deps.Clock,
		IDGen:              deps.IDGen,
		Logger:             deps.Logger,
		BatchSize:          deps.BatchSize,
		ResolveConcurrency: deps.ResolveConcurrency,
	}
	queryUseCase := queries.UseCase{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
		Commands: commandUseCase,
		Queries:  queryUseCase,
		PayoutJob: workers.PayoutJob{
			Commands: commandUseCase,
			Logger:   deps.Logger,
		},
	}
}

// NewInMemoryModule wires the module against the in-memory store, a scripted
// settlement engine, and deterministic resolvers. Used by tests and local runs.
func NewInMemoryModule(seed []entities.Distribution, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	engine := memory.NewSettlementEngine()
	module := NewModule(Dependencies{
		Repository: store,
		Executor:   engine,
		Hashes:     memory.NewHashResolver(),
		Addresses:  memory.NewAddressBook(),
		Holders:    store,
		Cascade:    store,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	module.Settlement = engine
	return module
}
