package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/ledger"
	"pool-escrow/internal/observability"
	"pool-escrow/internal/storage"
	"pool-escrow/internal/token"
)

// api exposes the ledger operations and audit stores over JSON HTTP.
// The caller identity is taken from the X-Account header as a base58 account.
type api struct {
	ledger     *ledger.Ledger
	bank       *token.Bank
	journal    storage.EventJournal
	admissions storage.AdmissionStore
	metrics    *observability.Metrics
	log        zerolog.Logger
}

func newAPI(led *ledger.Ledger, bank *token.Bank, journal storage.EventJournal, admissions storage.AdmissionStore, metrics *observability.Metrics, log zerolog.Logger) *api {
	return &api{ledger: led, bank: bank, journal: journal, admissions: admissions, metrics: metrics, log: log}
}

func (a *api) register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"POST /v1/pools", a.handleCreatePool},
		{"GET /v1/pools", a.handleListPools},
		{"GET /v1/pools/{id}", a.handleGetPool},
		{"GET /v1/pools/{id}/participants", a.handleGetParticipants},
		{"POST /v1/pools/{id}/enter", a.handleEnterPool},
		{"POST /v1/pools/{id}/withdraw", a.handleWithdraw},
		{"GET /v1/pools/{id}/events", a.handleGetEvents},
		{"GET /v1/pools/{id}/admissions", a.handleGetAdmissions},
		{"POST /v1/faucet", a.handleFaucet},
		{"GET /v1/accounts/{id}/balance", a.handleBalance},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, a.instrument(rt.pattern, rt.handler))
	}
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency per route.
func (a *api) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		a.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		a.metrics.HTTPRequestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn().Err(err).Msg("encode response")
	}
}

// writeError maps domain errors to HTTP status codes.
func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPoolNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicatePool):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCircuitBand),
		errors.Is(err, domain.ErrNoRecipients):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrPoolNotStarted),
		errors.Is(err, domain.ErrPoolEnded),
		errors.Is(err, domain.ErrPoolStillActive),
		errors.Is(err, domain.ErrPriceOutOfBand),
		errors.Is(err, domain.ErrTransferFailed),
		errors.Is(err, domain.ErrReentrancy):
		status = http.StatusConflict
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// errReason is the metric label for a rejected mutation.
func errReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPoolNotFound):
		return "pool_not_found"
	case errors.Is(err, domain.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, domain.ErrDuplicatePool):
		return "duplicate_pool"
	case errors.Is(err, domain.ErrInvalidCircuitBand):
		return "invalid_circuit_band"
	case errors.Is(err, domain.ErrNoRecipients):
		return "no_recipients"
	case errors.Is(err, domain.ErrPoolNotStarted):
		return "pool_not_started"
	case errors.Is(err, domain.ErrPoolEnded):
		return "pool_ended"
	case errors.Is(err, domain.ErrPoolStillActive):
		return "pool_still_active"
	case errors.Is(err, domain.ErrPriceOutOfBand):
		return "price_out_of_band"
	case errors.Is(err, domain.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, domain.ErrReentrancy):
		return "reentrancy"
	default:
		return "internal"
	}
}

// caller extracts the calling account from the X-Account header.
func (a *api) caller(w http.ResponseWriter, r *http.Request) (domain.AccountID, bool) {
	raw := r.Header.Get("X-Account")
	if raw == "" {
		a.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing X-Account header"})
		return domain.AccountID{}, false
	}
	id, err := domain.ParseAccountID(raw)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid X-Account header: " + err.Error()})
		return domain.AccountID{}, false
	}
	return id, true
}

func (a *api) poolID(w http.ResponseWriter, r *http.Request) (domain.PoolID, bool) {
	id, err := domain.ParsePoolID(r.PathValue("id"))
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pool id: " + err.Error()})
		return domain.PoolID{}, false
	}
	return id, true
}

type createPoolRequest struct {
	ID                domain.PoolID      `json:"id"`
	Name              string             `json:"name"`
	RewardToken       domain.RewardToken `json:"reward_token"`
	EntryAmount       int64              `json:"entry_amount"`
	StartTime         int64              `json:"start_time"`
	EndTime           int64              `json:"end_time"`
	BasePrice         int64              `json:"base_price"`
	CurrentPrice      int64              `json:"current_price"`
	UpperCircuitLimit int64              `json:"upper_circuit_limit"`
	LowerCircuitLimit int64              `json:"lower_circuit_limit"`
}

func (a *api) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}

	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}

	start := time.Now()
	id, err := a.ledger.CreatePool(r.Context(), caller, domain.PoolConfig{
		ID:                req.ID,
		Name:              req.Name,
		RewardToken:       req.RewardToken,
		EntryAmount:       req.EntryAmount,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		BasePrice:         req.BasePrice,
		CurrentPrice:      req.CurrentPrice,
		UpperCircuitLimit: req.UpperCircuitLimit,
		LowerCircuitLimit: req.LowerCircuitLimit,
	})
	a.metrics.OperationLatency.WithLabelValues("create_pool").Observe(time.Since(start).Seconds())
	if err != nil {
		a.metrics.PoolCreateRejected.WithLabelValues(errReason(err)).Inc()
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *api) handleListPools(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{"pools": a.ledger.GetAllPoolIDs()})
}

func (a *api) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := a.poolID(w, r)
	if !ok {
		return
	}

	pool, err := a.ledger.GetPool(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, pool)
}

func (a *api) handleGetParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := a.poolID(w, r)
	if !ok {
		return
	}

	participants, err := a.ledger.GetPoolParticipants(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

type enterPoolRequest struct {
	ObservedPrice int64 `json:"observed_price"`
}

func (a *api) handleEnterPool(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := a.poolID(w, r)
	if !ok {
		return
	}

	var req enterPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}

	start := time.Now()
	receipt, err := a.ledger.EnterPool(r.Context(), caller, id, req.ObservedPrice)
	a.metrics.OperationLatency.WithLabelValues("enter_pool").Observe(time.Since(start).Seconds())
	if err != nil {
		a.metrics.AdmissionsRejected.WithLabelValues(errReason(err)).Inc()
		if errors.Is(err, domain.ErrTransferFailed) {
			a.metrics.TransferFailures.Inc()
		}
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, receipt)
}

type withdrawRequest struct {
	Recipients []domain.AccountID `json:"recipients"`
}

func (a *api) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := a.poolID(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}

	start := time.Now()
	report, err := a.ledger.WithdrawPoolFunds(r.Context(), caller, id, req.Recipients)
	a.metrics.OperationLatency.WithLabelValues("withdraw_pool_funds").Observe(time.Since(start).Seconds())
	if err != nil {
		a.metrics.WithdrawalsRejected.WithLabelValues(errReason(err)).Inc()
		if errors.Is(err, domain.ErrTransferFailed) {
			a.metrics.TransferFailures.Inc()
		}
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, report)
}

// timeRange reads optional ?start= and ?end= unix-ms query params.
func timeRange(r *http.Request) (start, end int64, set bool, err error) {
	rawStart := r.URL.Query().Get("start")
	rawEnd := r.URL.Query().Get("end")
	if rawStart == "" && rawEnd == "" {
		return 0, 0, false, nil
	}

	if rawStart != "" {
		if start, err = strconv.ParseInt(rawStart, 10, 64); err != nil {
			return 0, 0, false, err
		}
	}
	end = int64(1) << 62
	if rawEnd != "" {
		if end, err = strconv.ParseInt(rawEnd, 10, 64); err != nil {
			return 0, 0, false, err
		}
	}
	return start, end, true, nil
}

func (a *api) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := a.poolID(w, r)
	if !ok {
		return
	}

	start, end, ranged, err := timeRange(r)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid time range: " + err.Error()})
		return
	}

	var recs []*domain.EventRecord
	if ranged {
		recs, err = a.journal.GetByTimeRange(r.Context(), id.String(), start, end)
	} else {
		recs, err = a.journal.GetByPoolID(r.Context(), id.String())
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"events": recs})
}

func (a *api) handleGetAdmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := a.poolID(w, r)
	if !ok {
		return
	}

	start, end, ranged, err := timeRange(r)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid time range: " + err.Error()})
		return
	}

	var points []*domain.AdmissionPoint
	if ranged {
		points, err = a.admissions.GetByTimeRange(r.Context(), id.String(), start, end)
	} else {
		points, err = a.admissions.GetByPoolID(r.Context(), id.String())
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"admissions": points})
}

type faucetRequest struct {
	Account domain.AccountID `json:"account"`
	Amount  int64            `json:"amount"`
}

// handleFaucet mints tokens into an account of the in-process bank.
// Development convenience only.
func (a *api) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}
	if req.Amount <= 0 {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount must be positive"})
		return
	}

	if !req.Account.OnCurve() {
		// Custody accounts are off-curve on purpose; a faucet target
		// should be a user-held key, so flag the odd ones.
		a.log.Warn().Str("account", req.Account.String()).Msg("faucet target is not an ed25519 point")
	}
	if err := a.bank.Mint(req.Account, req.Amount); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"balance": a.bank.BalanceOf(req.Account),
	})
}

func (a *api) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAccountID(r.PathValue("id"))
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid account id: " + err.Error()})
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"account": id,
		"balance": a.bank.BalanceOf(id),
	})
}
