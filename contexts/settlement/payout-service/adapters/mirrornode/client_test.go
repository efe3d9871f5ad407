package mirrornode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestResolveHashReturnsMirrorNodeHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transactions/0.0.1001-1700000000-000000001" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"transactions":[{"transaction_id":"0.0.1001-1700000000-000000001","transaction_hash":"0xabc123","result":"SUCCESS"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	record, err := client.ResolveHash(context.Background(), "0.0.1001-1700000000-000000001")
	if err != nil {
		t.Fatalf("resolve hash failed: %v", err)
	}
	if record.TransactionHash != "0xabc123" {
		t.Fatalf("unexpected hash %q", record.TransactionHash)
	}
	if !record.FromMirrorNode {
		t.Fatal("expected record marked as mirror node sourced")
	}
}

func TestResolveHashRetriesUntilIngested(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"transactions":[{"transaction_hash":"0xabc123"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	record, err := client.ResolveHash(context.Background(), "0.0.1001-1700000000-000000001")
	if err != nil {
		t.Fatalf("resolve hash failed: %v", err)
	}
	if record.TransactionHash != "0xabc123" {
		t.Fatalf("unexpected hash %q", record.TransactionHash)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestResolveHashStopsOnPermanentStatus(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	if _, err := client.ResolveHash(context.Background(), "0.0.1001-1700000000-000000001"); err == nil {
		t.Fatal("expected error for bad request")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("bad request must not be retried, got %d attempts", got)
	}
}

func TestResolveHashGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	client.maxTries = 2
	if _, err := client.ResolveHash(context.Background(), "0.0.1001-1700000000-000000001"); err == nil {
		t.Fatal("expected error once retries are exhausted")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestToSettlementAddressLowercasesLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"account":"0.0.4242","evm_address":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	account, err := client.ToSettlementAddress(context.Background(), "0x5AAEB6053F3E94C9b9A09f33669435E7Ef1BeAed")
	if err != nil {
		t.Fatalf("resolve account failed: %v", err)
	}
	if account != "0.0.4242" {
		t.Fatalf("unexpected account %q", account)
	}
}

func TestToSettlementAddressRejectsEmptyAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"account":"","evm_address":""}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	client.maxTries = 1
	if _, err := client.ToSettlementAddress(context.Background(), "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"); err == nil {
		t.Fatal("expected error for account-less response")
	}
}
