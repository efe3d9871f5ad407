package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"paymaster/contexts/settlement/payout-service/domain/entities"
	"paymaster/contexts/settlement/payout-service/ports"
)

// SettlementCall records one invocation against the scripted engine.
type SettlementCall struct {
	Method    string
	PageIndex int
	PageSize  int
	Addresses []string
}

// SettlementEngine is a scripted payment executor. Each call pops the next
// queued result (or error) in FIFO order and records the invocation, so tests
// can assert both outcomes and call sequences.
type SettlementEngine struct {
	mu      sync.Mutex
	results []ports.SettlementResult
	errs    []error
	calls   []SettlementCall
}

func NewSettlementEngine() *SettlementEngine {
	return &SettlementEngine{}
}

// Script queues a successful settlement response.
func (e *SettlementEngine) Script(result ports.SettlementResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, result)
	e.errs = append(e.errs, nil)
}

// ScriptError queues a settlement failure.
func (e *SettlementEngine) ScriptError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, ports.SettlementResult{})
	e.errs = append(e.errs, err)
}

// Calls returns the recorded invocations in order.
func (e *SettlementEngine) Calls() []SettlementCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	calls := make([]SettlementCall, len(e.calls))
	copy(calls, e.calls)
	return calls
}

func (e *SettlementEngine) next(call SettlementCall) (ports.SettlementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, call)
	if len(e.results) == 0 {
		return ports.SettlementResult{}, fmt.Errorf("settlement engine: no scripted result for %s call %d", call.Method, len(e.calls))
	}
	result, err := e.results[0], e.errs[0]
	e.results = e.results[1:]
	e.errs = e.errs[1:]
	return result, err
}

func (e *SettlementEngine) SnapshotAndDistribute(_ context.Context, _ entities.Distribution, pageIndex, pageSize int) (ports.SettlementResult, error) {
	return e.next(SettlementCall{Method: "SnapshotAndDistribute", PageIndex: pageIndex, PageSize: pageSize})
}

func (e *SettlementEngine) AmountSnapshot(_ context.Context, _ entities.Distribution, pageIndex, pageSize int) (ports.SettlementResult, error) {
	return e.next(SettlementCall{Method: "AmountSnapshot", PageIndex: pageIndex, PageSize: pageSize})
}

func (e *SettlementEngine) DistributeToAddresses(_ context.Context, _ entities.Distribution, addresses []string) (ports.SettlementResult, error) {
	return e.next(SettlementCall{Method: "DistributeToAddresses", Addresses: addresses})
}

func (e *SettlementEngine) AmountSnapshotForAddresses(_ context.Context, _ entities.Distribution, addresses []string) (ports.SettlementResult, error) {
	return e.next(SettlementCall{Method: "AmountSnapshotForAddresses", Addresses: addresses})
}

func (e *SettlementEngine) PercentageSnapshotForAddresses(_ context.Context, _ entities.Distribution, addresses []string) (ports.SettlementResult, error) {
	return e.next(SettlementCall{Method: "PercentageSnapshotForAddresses", Addresses: addresses})
}

var _ ports.PaymentExecutor = (*SettlementEngine)(nil)

// AddressBook maps source addresses to settlement account ids. Unknown
// addresses resolve to a deterministic synthetic account so tests do not need
// to register every holder up front.
type AddressBook struct {
	mu       sync.RWMutex
	accounts map[string]string
	fallback int
}

func NewAddressBook() *AddressBook {
	return &AddressBook{accounts: make(map[string]string)}
}

func (b *AddressBook) Register(address, accountID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[entities.CanonicalAddress(address)] = accountID
}

func (b *AddressBook) ToSettlementAddress(_ context.Context, address string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := entities.CanonicalAddress(address)
	if accountID, exists := b.accounts[key]; exists {
		return accountID, nil
	}
	b.fallback++
	accountID := fmt.Sprintf("0.0.%d", 900000+b.fallback)
	b.accounts[key] = accountID
	return accountID, nil
}

var _ ports.AddressResolver = (*AddressBook)(nil)

// HashResolver answers transaction-hash lookups from a fixed table.
type HashResolver struct {
	mu     sync.RWMutex
	hashes map[string]string
	err    error
}

func NewHashResolver() *HashResolver {
	return &HashResolver{hashes: make(map[string]string)}
}

func (r *HashResolver) Register(transactionID, hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes[transactionID] = hash
}

// Fail makes every subsequent lookup return err.
func (r *HashResolver) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *HashResolver) ResolveHash(_ context.Context, transactionID string) (ports.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.err != nil {
		return ports.TransactionRecord{}, r.err
	}
	if hash, exists := r.hashes[transactionID]; exists {
		return ports.TransactionRecord{TransactionHash: hash, FromMirrorNode: true}, nil
	}
	return ports.TransactionRecord{
		TransactionHash: "0x" + strings.ReplaceAll(transactionID, ".", ""),
		FromMirrorNode:  false,
	}, nil
}

var _ ports.TransactionHashResolver = (*HashResolver)(nil)
