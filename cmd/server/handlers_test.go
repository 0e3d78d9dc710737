package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/ledger"
	"pool-escrow/internal/observability"
	"pool-escrow/internal/storage"
	"pool-escrow/internal/storage/memory"
	"pool-escrow/internal/token"
)

// Counters register with the default registry, so all fixtures share one
// Metrics instance and tests assert on deltas.
var apiMetrics = observability.NewMetrics("pool_escrow_api_test")

type apiClock struct {
	mu  sync.Mutex
	now int64
}

func (c *apiClock) Set(ms int64) {
	c.mu.Lock()
	c.now = ms
	c.mu.Unlock()
}

func (c *apiClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.UnixMilli(c.now)
}

type apiFixture struct {
	srv   *httptest.Server
	bank  *token.Bank
	clock *apiClock
	admin domain.AccountID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	admin := domain.AccountID{0xAD}
	clock := &apiClock{now: 1500}
	bank := token.NewBank()

	journal := memory.NewEventJournal()
	admissions := memory.NewAdmissionStore()

	led := ledger.New(
		ledger.NewStaticAuthorizer(admin),
		bank,
		ledger.WithClock(clock.Now),
		ledger.WithSinks(
			storage.NewJournalSink(journal),
			storage.NewAdmissionSink(admissions),
		),
	)

	a := newAPI(led, bank, journal, admissions, apiMetrics, zerolog.Nop())
	mux := http.NewServeMux()
	a.register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &apiFixture{srv: srv, bank: bank, clock: clock, admin: admin}
}

// do issues a request with the caller identity header and decodes the response.
func (f *apiFixture) do(t *testing.T, method, path string, caller domain.AccountID, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if !caller.IsZero() {
		req.Header.Set("X-Account", caller.String())
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func testCreateBody(id domain.PoolID, custody domain.AccountID) createPoolRequest {
	return createPoolRequest{
		ID:                id,
		Name:              "weekly",
		RewardToken:       domain.RewardToken{Name: "RWD", Account: custody},
		EntryAmount:       10,
		StartTime:         1000,
		EndTime:           2000,
		BasePrice:         100,
		CurrentPrice:      100,
		UpperCircuitLimit: 110,
		LowerCircuitLimit: 90,
	}
}

func TestAPI_PoolLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	poolID := domain.PoolID{1}
	custody := domain.AccountID{0xCC}
	holder := domain.AccountID{0x01}
	payout := domain.AccountID{0x02}

	// Admin creates the pool
	status := f.do(t, http.MethodPost, "/v1/pools", f.admin, testCreateBody(poolID, custody), nil)
	if status != http.StatusCreated {
		t.Fatalf("create pool: expected 201, got %d", status)
	}

	// Fund the holder through the faucet
	status = f.do(t, http.MethodPost, "/v1/faucet", domain.AccountID{}, faucetRequest{Account: holder, Amount: 50}, nil)
	if status != http.StatusOK {
		t.Fatalf("faucet: expected 200, got %d", status)
	}

	// Holder enters within the window and band
	var receipt domain.Receipt
	status = f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/enter", poolID), holder,
		enterPoolRequest{ObservedPrice: 95}, &receipt)
	if status != http.StatusOK {
		t.Fatalf("enter pool: expected 200, got %d", status)
	}
	if receipt.Amount != 10 || receipt.PriceAtEntry != 95 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}

	// Snapshot reflects the admission
	var pool domain.Pool
	status = f.do(t, http.MethodGet, "/v1/pools/"+poolID.String(), domain.AccountID{}, nil, &pool)
	if status != http.StatusOK {
		t.Fatalf("get pool: expected 200, got %d", status)
	}
	if pool.TotalBalance != 10 || len(pool.Participants) != 1 {
		t.Errorf("unexpected pool state: balance=%d participants=%d", pool.TotalBalance, len(pool.Participants))
	}

	// Withdraw after the window closes
	f.clock.Set(2500)
	var report domain.DistributionReport
	status = f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/withdraw", poolID), f.admin,
		withdrawRequest{Recipients: []domain.AccountID{payout}}, &report)
	if status != http.StatusOK {
		t.Fatalf("withdraw: expected 200, got %d", status)
	}
	if report.Total != 10 {
		t.Errorf("expected total 10, got %d", report.Total)
	}

	// Payout landed
	var balance struct {
		Balance int64 `json:"balance"`
	}
	status = f.do(t, http.MethodGet, "/v1/accounts/"+payout.String()+"/balance", domain.AccountID{}, nil, &balance)
	if status != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d", status)
	}
	if balance.Balance != 10 {
		t.Errorf("expected payout balance 10, got %d", balance.Balance)
	}

	// Journal recorded create, enter and withdraw
	var events struct {
		Events []*domain.EventRecord `json:"events"`
	}
	status = f.do(t, http.MethodGet, fmt.Sprintf("/v1/pools/%s/events", poolID), domain.AccountID{}, nil, &events)
	if status != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", status)
	}
	if len(events.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events.Events))
	}

	// Admission timeseries has the single admission
	var admissions struct {
		Admissions []*domain.AdmissionPoint `json:"admissions"`
	}
	status = f.do(t, http.MethodGet, fmt.Sprintf("/v1/pools/%s/admissions", poolID), domain.AccountID{}, nil, &admissions)
	if status != http.StatusOK {
		t.Fatalf("admissions: expected 200, got %d", status)
	}
	if len(admissions.Admissions) != 1 || admissions.Admissions[0].Price != 95 {
		t.Errorf("unexpected admissions: %+v", admissions.Admissions)
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	f := newAPIFixture(t)

	poolID := domain.PoolID{1}
	custody := domain.AccountID{0xCC}
	outsider := domain.AccountID{0x05}

	// Non-admin cannot create
	status := f.do(t, http.MethodPost, "/v1/pools", outsider, testCreateBody(poolID, custody), nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin create, got %d", status)
	}

	// Missing caller header
	status = f.do(t, http.MethodPost, "/v1/pools", domain.AccountID{}, testCreateBody(poolID, custody), nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 without X-Account, got %d", status)
	}

	// Unknown pool
	status = f.do(t, http.MethodGet, "/v1/pools/"+poolID.String(), domain.AccountID{}, nil, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown pool, got %d", status)
	}

	// Create, then duplicate id conflicts
	status = f.do(t, http.MethodPost, "/v1/pools", f.admin, testCreateBody(poolID, custody), nil)
	if status != http.StatusCreated {
		t.Fatalf("create pool: expected 201, got %d", status)
	}
	status = f.do(t, http.MethodPost, "/v1/pools", f.admin, testCreateBody(poolID, custody), nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate pool, got %d", status)
	}

	// Price out of band
	f.do(t, http.MethodPost, "/v1/faucet", domain.AccountID{}, faucetRequest{Account: outsider, Amount: 50}, nil)
	status = f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/enter", poolID), outsider,
		enterPoolRequest{ObservedPrice: 120}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for out-of-band price, got %d", status)
	}

	// Unfunded entry fails on the transfer
	broke := domain.AccountID{0x06}
	status = f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/enter", poolID), broke,
		enterPoolRequest{ObservedPrice: 100}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for failed transfer, got %d", status)
	}

	// Withdraw during the active window
	status = f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/withdraw", poolID), f.admin,
		withdrawRequest{Recipients: []domain.AccountID{outsider}}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for withdraw during window, got %d", status)
	}

	// Withdraw with no recipients
	f.clock.Set(2500)
	status = f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/withdraw", poolID), f.admin,
		withdrawRequest{}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for empty recipients, got %d", status)
	}
}

func TestAPI_RejectionMetrics(t *testing.T) {
	f := newAPIFixture(t)

	poolID := domain.PoolID{1}
	custody := domain.AccountID{0xCC}
	outsider := domain.AccountID{0x05}

	createRejected := testutil.ToFloat64(apiMetrics.PoolCreateRejected.WithLabelValues("not_authorized"))
	bandRejected := testutil.ToFloat64(apiMetrics.AdmissionsRejected.WithLabelValues("price_out_of_band"))
	transferRejected := testutil.ToFloat64(apiMetrics.AdmissionsRejected.WithLabelValues("transfer_failed"))
	transferFailures := testutil.ToFloat64(apiMetrics.TransferFailures)
	withdrawRejected := testutil.ToFloat64(apiMetrics.WithdrawalsRejected.WithLabelValues("pool_still_active"))
	requests := testutil.ToFloat64(apiMetrics.HTTPRequests.WithLabelValues("POST /v1/pools/{id}/enter", "409"))

	f.do(t, http.MethodPost, "/v1/pools", outsider, testCreateBody(poolID, custody), nil)
	f.do(t, http.MethodPost, "/v1/pools", f.admin, testCreateBody(poolID, custody), nil)

	// Out-of-band price and an unfunded transfer both count as rejections;
	// only the transfer increments the failure counter.
	f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/enter", poolID), outsider,
		enterPoolRequest{ObservedPrice: 120}, nil)
	f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/enter", poolID), outsider,
		enterPoolRequest{ObservedPrice: 100}, nil)

	f.do(t, http.MethodPost, fmt.Sprintf("/v1/pools/%s/withdraw", poolID), f.admin,
		withdrawRequest{Recipients: []domain.AccountID{outsider}}, nil)

	if got := testutil.ToFloat64(apiMetrics.PoolCreateRejected.WithLabelValues("not_authorized")) - createRejected; got != 1 {
		t.Errorf("pool create rejections: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(apiMetrics.AdmissionsRejected.WithLabelValues("price_out_of_band")) - bandRejected; got != 1 {
		t.Errorf("out-of-band rejections: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(apiMetrics.AdmissionsRejected.WithLabelValues("transfer_failed")) - transferRejected; got != 1 {
		t.Errorf("transfer rejections: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(apiMetrics.TransferFailures) - transferFailures; got != 1 {
		t.Errorf("transfer failures: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(apiMetrics.WithdrawalsRejected.WithLabelValues("pool_still_active")) - withdrawRejected; got != 1 {
		t.Errorf("withdrawal rejections: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(apiMetrics.HTTPRequests.WithLabelValues("POST /v1/pools/{id}/enter", "409")) - requests; got != 2 {
		t.Errorf("409 enter requests: got %v, want 2", got)
	}
}
