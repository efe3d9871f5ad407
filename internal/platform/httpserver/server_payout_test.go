package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	payoutservice "paymaster/contexts/settlement/payout-service"
	"paymaster/contexts/settlement/payout-service/ports"
	payouthttp "paymaster/contexts/settlement/payout-service/transport/http"

	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T) (*Server, payoutservice.Module) {
	t.Helper()
	module := payoutservice.NewInMemoryModule(nil, nil)
	return New(module, nil, ":0"), module
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string, target any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if target != nil && recorder.Code < http.StatusBadRequest {
		if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
			t.Fatalf("decode %s %s response failed: %v", method, path, err)
		}
	}
	return recorder
}

func TestPayoutLifecycleOverHTTP(t *testing.T) {
	server, module := newTestServer(t)
	handler := server.Handler()

	var created payouthttp.DistributionDTO
	recorder := doJSON(t, handler, http.MethodPost, "/v1/payouts/distributions", `{
		"asset_id": "asset-1",
		"kind": "corporate_action",
		"record_date": "2026-04-01T00:00:00Z",
		"payout_at": "2026-04-02T09:00:00Z"
	}`, &created)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", recorder.Code, recorder.Body.String())
	}
	if created.Status != "scheduled" || created.ID == "" {
		t.Fatalf("unexpected create response %+v", created)
	}

	module.Store.SeedHolderCount(created.ID, 2)
	module.Settlement.Script(ports.SettlementResult{
		SucceededAddresses: []string{
			"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
			"0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
		},
		PaidAmounts:   []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(20)},
		TransactionID: "0.0.777",
	})

	var accepted payouthttp.AcceptedResponse
	recorder = doJSON(t, handler, http.MethodPost, "/v1/payouts/distributions/"+created.ID+"/execute", "", &accepted)
	if recorder.Code != http.StatusOK {
		t.Fatalf("execute returned %d: %s", recorder.Code, recorder.Body.String())
	}
	if accepted.Status != "completed" {
		t.Fatalf("expected completed distribution, got %q", accepted.Status)
	}

	var progress payouthttp.DistributionProgressResponse
	recorder = doJSON(t, handler, http.MethodGet, "/v1/payouts/distributions/"+created.ID, "", &progress)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get returned %d: %s", recorder.Code, recorder.Body.String())
	}
	if progress.BatchCount != 1 || progress.HolderCounts["success"] != 2 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	var batches []payouthttp.BatchPayoutDTO
	recorder = doJSON(t, handler, http.MethodGet, "/v1/payouts/distributions/"+created.ID+"/batches", "", &batches)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list batches returned %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(batches) != 1 || batches[0].Name != "Batch 1" || batches[0].RecipientCount != 2 {
		t.Fatalf("unexpected batches %+v", batches)
	}
	if batches[0].TransactionID != "0.0.777" {
		t.Fatalf("expected settled transaction id, got %q", batches[0].TransactionID)
	}

	var holders []payouthttp.HolderDTO
	recorder = doJSON(t, handler, http.MethodGet, "/v1/payouts/batches/"+batches[0].ID+"/holders", "", &holders)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list holders returned %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(holders) != 2 {
		t.Fatalf("expected 2 holders, got %d", len(holders))
	}
	for _, holder := range holders {
		if holder.Status != "success" || holder.PaidAmount == "" {
			t.Fatalf("unexpected holder %+v", holder)
		}
	}
}

func TestExecuteTwiceReturnsConflict(t *testing.T) {
	server, module := newTestServer(t)
	handler := server.Handler()

	var created payouthttp.DistributionDTO
	doJSON(t, handler, http.MethodPost, "/v1/payouts/distributions", `{
		"asset_id": "asset-1",
		"kind": "corporate_action",
		"record_date": "2026-04-01T00:00:00Z",
		"payout_at": "2026-04-02T09:00:00Z"
	}`, &created)
	module.Store.SeedHolderCount(created.ID, 0)

	recorder := doJSON(t, handler, http.MethodPost, "/v1/payouts/distributions/"+created.ID+"/execute", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("first execute returned %d: %s", recorder.Code, recorder.Body.String())
	}
	recorder = doJSON(t, handler, http.MethodPost, "/v1/payouts/distributions/"+created.ID+"/execute", "", nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for re-execution, got %d", recorder.Code)
	}
}

func TestUnknownDistributionReturnsNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	recorder := doJSON(t, server.Handler(), http.MethodGet, "/v1/payouts/distributions/missing", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestCreateDistributionRejectsMalformedBody(t *testing.T) {
	server, _ := newTestServer(t)
	recorder := doJSON(t, server.Handler(), http.MethodPost, "/v1/payouts/distributions", `{"asset_id":`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}

	recorder = doJSON(t, server.Handler(), http.MethodPost, "/v1/payouts/distributions", `{
		"asset_id": "asset-1",
		"kind": "direct_payout",
		"amount_type": "fixed",
		"amount": "-5",
		"payout_at": "2026-04-02T09:00:00Z"
	}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", recorder.Code)
	}
}
