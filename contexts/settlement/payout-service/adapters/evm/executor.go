package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"paymaster/contexts/settlement/payout-service/domain/entities"
	"paymaster/contexts/settlement/payout-service/ports"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// distributorABI is the settlement contract surface the executor drives. The
// contract settles one page (or one explicit recipient list) per call and
// reports per-recipient outcomes in a single PaymentsSettled event.
const distributorABI = `[
  {"type":"function","name":"snapshotAndDistribute","stateMutability":"nonpayable","inputs":[{"name":"pageIndex","type":"uint256"},{"name":"pageSize","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"amountSnapshot","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"pageIndex","type":"uint256"},{"name":"pageSize","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"distributeToAddresses","stateMutability":"nonpayable","inputs":[{"name":"recipients","type":"address[]"}],"outputs":[]},
  {"type":"function","name":"amountSnapshotForAddresses","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"recipients","type":"address[]"}],"outputs":[]},
  {"type":"function","name":"percentageSnapshotForAddresses","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"recipients","type":"address[]"}],"outputs":[]},
  {"type":"function","name":"holderCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"PaymentsSettled","anonymous":false,"inputs":[{"name":"failedRecipients","type":"address[]","indexed":false},{"name":"succeededRecipients","type":"address[]","indexed":false},{"name":"paidAmounts","type":"uint256[]","indexed":false}]}
]`

type paymentsSettledEvent struct {
	FailedRecipients    []common.Address
	SucceededRecipients []common.Address
	PaidAmounts         []*big.Int
}

// Executor drives the on-chain payment distributor contract. Every settlement
// call is one signed transaction; the result is decoded from the receipt's
// PaymentsSettled event after the transaction is mined.
type Executor struct {
	client      *ethclient.Client
	contract    *bind.BoundContract
	contractABI abi.ABI
	signer      *bind.TransactOpts
	decimals    int32
	logger      *slog.Logger
}

// NewExecutor dials nothing itself; the caller owns the client lifecycle.
func NewExecutor(client *ethclient.Client, contractAddress string, privateKeyHex string, chainID *big.Int, decimals int32, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parsedABI, err := abi.JSON(strings.NewReader(distributorABI))
	if err != nil {
		return nil, fmt.Errorf("parse distributor abi: %w", err)
	}
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	contract := bind.NewBoundContract(common.HexToAddress(contractAddress), parsedABI, client, client, client)
	return &Executor{
		client:      client,
		contract:    contract,
		contractABI: parsedABI,
		signer:      signer,
		decimals:    decimals,
		logger:      logger,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}
	return key, nil
}

func (e *Executor) SnapshotAndDistribute(ctx context.Context, dist entities.Distribution, pageIndex, pageSize int) (ports.SettlementResult, error) {
	return e.settle(ctx, "snapshotAndDistribute", big.NewInt(int64(pageIndex)), big.NewInt(int64(pageSize)))
}

func (e *Executor) AmountSnapshot(ctx context.Context, dist entities.Distribution, pageIndex, pageSize int) (ports.SettlementResult, error) {
	return e.settle(ctx, "amountSnapshot", e.scaledAmount(dist.Amount), big.NewInt(int64(pageIndex)), big.NewInt(int64(pageSize)))
}

func (e *Executor) DistributeToAddresses(ctx context.Context, dist entities.Distribution, addresses []string) (ports.SettlementResult, error) {
	return e.settle(ctx, "distributeToAddresses", toAddresses(addresses))
}

func (e *Executor) AmountSnapshotForAddresses(ctx context.Context, dist entities.Distribution, addresses []string) (ports.SettlementResult, error) {
	return e.settle(ctx, "amountSnapshotForAddresses", e.scaledAmount(dist.Amount), toAddresses(addresses))
}

func (e *Executor) PercentageSnapshotForAddresses(ctx context.Context, dist entities.Distribution, addresses []string) (ports.SettlementResult, error) {
	return e.settle(ctx, "percentageSnapshotForAddresses", e.scaledAmount(dist.Amount), toAddresses(addresses))
}

// CountHolders reads the contract's holder registry size.
func (e *Executor) CountHolders(ctx context.Context, _ entities.Distribution) (int, error) {
	var out []any
	opts := &bind.CallOpts{Context: ctx}
	if err := e.contract.Call(opts, &out, "holderCount"); err != nil {
		return 0, fmt.Errorf("holder count call: %w", err)
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("holder count call: unexpected output type %T", out[0])
	}
	return int(count.Int64()), nil
}

func (e *Executor) settle(ctx context.Context, method string, args ...any) (ports.SettlementResult, error) {
	opts := *e.signer
	opts.Context = ctx

	tx, err := e.contract.Transact(&opts, method, args...)
	if err != nil {
		return ports.SettlementResult{}, fmt.Errorf("%s transact: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, e.client, tx)
	if err != nil {
		return ports.SettlementResult{}, fmt.Errorf("%s wait mined: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ports.SettlementResult{}, fmt.Errorf("%s transaction %s reverted", method, tx.Hash().Hex())
	}

	event, err := e.decodeSettledEvent(receipt)
	if err != nil {
		return ports.SettlementResult{}, fmt.Errorf("%s decode result: %w", method, err)
	}

	result := ports.SettlementResult{
		FailedAddresses:    hexAddresses(event.FailedRecipients),
		SucceededAddresses: hexAddresses(event.SucceededRecipients),
		PaidAmounts:        e.toDecimals(event.PaidAmounts),
		TransactionID:      tx.Hash().Hex(),
	}
	e.logger.Info("settlement transaction mined",
		"event", "payout_settlement_mined",
		"module", "settlement/payout-service",
		"layer", "adapter",
		"method", method,
		"transaction_hash", tx.Hash().Hex(),
		"succeeded_count", len(result.SucceededAddresses),
		"failed_count", len(result.FailedAddresses),
	)
	return result, nil
}

func (e *Executor) decodeSettledEvent(receipt *types.Receipt) (paymentsSettledEvent, error) {
	eventABI := e.contractABI.Events["PaymentsSettled"]
	for _, logEntry := range receipt.Logs {
		if len(logEntry.Topics) == 0 || logEntry.Topics[0] != eventABI.ID {
			continue
		}
		var event paymentsSettledEvent
		if err := e.contract.UnpackLog(&event, "PaymentsSettled", *logEntry); err != nil {
			return paymentsSettledEvent{}, err
		}
		return event, nil
	}
	return paymentsSettledEvent{}, fmt.Errorf("receipt %s carries no PaymentsSettled event", receipt.TxHash.Hex())
}

func (e *Executor) scaledAmount(amount decimal.Decimal) *big.Int {
	return amount.Shift(e.decimals).BigInt()
}

func (e *Executor) toDecimals(raw []*big.Int) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(raw))
	for _, value := range raw {
		amounts = append(amounts, decimal.NewFromBigInt(value, -e.decimals))
	}
	return amounts
}

func toAddresses(addresses []string) []common.Address {
	converted := make([]common.Address, 0, len(addresses))
	for _, address := range addresses {
		converted = append(converted, common.HexToAddress(strings.TrimSpace(address)))
	}
	return converted
}

func hexAddresses(addresses []common.Address) []string {
	converted := make([]string, 0, len(addresses))
	for _, address := range addresses {
		converted = append(converted, address.Hex())
	}
	return converted
}

var _ ports.PaymentExecutor = (*Executor)(nil)
var _ ports.HolderCounter = (*Executor)(nil)
