package mirrornode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paymaster/contexts/settlement/payout-service/ports"

	"github.com/cenkalti/backoff/v5"
)

const defaultTimeout = 10 * time.Second

// Client reads settled transaction and account data from the network's mirror
// node REST API. Lookups retry with exponential backoff because the mirror
// node lags the consensus layer by a few seconds.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxTries   uint
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
		maxTries:   5,
	}
}

type transactionResponse struct {
	Transactions []struct {
		TransactionID   string `json:"transaction_id"`
		TransactionHash string `json:"transaction_hash"`
		Result          string `json:"result"`
	} `json:"transactions"`
}

// ResolveHash looks the transaction up on the mirror node and returns its
// hash. A transaction the mirror node has not ingested yet is retried before
// giving up.
func (c *Client) ResolveHash(ctx context.Context, transactionID string) (ports.TransactionRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/transactions/%s", c.baseURL, url.PathEscape(strings.TrimSpace(transactionID)))

	operation := func() (ports.TransactionRecord, error) {
		var decoded transactionResponse
		if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
			return ports.TransactionRecord{}, err
		}
		if len(decoded.Transactions) == 0 {
			return ports.TransactionRecord{}, fmt.Errorf("mirror node has no record of transaction %s", transactionID)
		}
		return ports.TransactionRecord{
			TransactionHash: decoded.Transactions[0].TransactionHash,
			FromMirrorNode:  true,
		}, nil
	}

	record, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		c.logger.Warn("mirror node hash lookup failed",
			"event", "mirrornode_resolve_hash_failed",
			"module", "settlement/payout-service",
			"layer", "adapter",
			"transaction_id", transactionID,
			"error", err.Error(),
		)
		return ports.TransactionRecord{}, err
	}
	return record, nil
}

type accountResponse struct {
	Account    string `json:"account"`
	EVMAddress string `json:"evm_address"`
}

// ToSettlementAddress maps an EVM source address onto the network account id
// the mirror node associates with it.
func (c *Client) ToSettlementAddress(ctx context.Context, address string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s", c.baseURL, url.PathEscape(strings.ToLower(strings.TrimSpace(address))))

	operation := func() (string, error) {
		var decoded accountResponse
		if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
			return "", err
		}
		if strings.TrimSpace(decoded.Account) == "" {
			return "", fmt.Errorf("mirror node has no account for address %s", address)
		}
		return decoded.Account, nil
	}

	accountID, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		c.logger.Warn("mirror node account lookup failed",
			"event", "mirrornode_resolve_account_failed",
			"module", "settlement/payout-service",
			"layer", "adapter",
			"address", address,
			"error", err.Error(),
		)
		return "", err
	}
	return accountID, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode >= http.StatusInternalServerError:
		// Retryable: the record may simply not be ingested yet.
		return fmt.Errorf("mirror node returned status %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("mirror node returned status %d", resp.StatusCode))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return backoff.Permanent(err)
	}
	return nil
}

var _ ports.TransactionHashResolver = (*Client)(nil)
var _ ports.AddressResolver = (*Client)(nil)
