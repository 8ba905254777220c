// Package api binds the ledger operations to JSON over HTTP.
//
// The caller of every mutating request is the address in the X-Caller
// header. Amounts travel as decimal strings of base units.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/modelmarket/internal/domain/dedupe"
	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/internal/domain/types"
	"github.com/okian/modelmarket/pkg/logger"
	"github.com/okian/modelmarket/pkg/metrics"
)

const (
	headerCaller      = "X-Caller"
	headerIdempotency = "Idempotency-Key"
	maxBodyBytes      = 1 << 20
)

// Ledger is the ownership registry surface used by the handlers.
type Ledger interface {
	Mint(ctx context.Context, caller, to model.Address, uri string) (model.AssetID, error)
	Transfer(ctx context.Context, caller model.Address, id model.AssetID, to model.Address) error
	Approve(ctx context.Context, caller model.Address, id model.AssetID, operator model.Address) error
	SetApprovalForAll(ctx context.Context, caller, operator model.Address, approved bool) error
	UpdateMetrics(ctx context.Context, caller model.Address, id model.AssetID, m model.Metrics) error
	SetProfitConfig(ctx context.Context, caller model.Address, id model.AssetID, beneficiaries []model.Address, shares []uint64) error
	DistributeProfits(ctx context.Context, payer model.Address, id model.AssetID, amount model.Amount) ([]model.Payout, error)

	Asset(id model.AssetID) (model.Asset, error)
	IsApprovedForAll(owner, operator model.Address) bool
	BalanceOf(owner model.Address) (uint64, error)
	GetModelMetrics(id model.AssetID) (model.Metrics, error)
	ProfitConfig(id model.AssetID) (model.ProfitConfig, error)
	Transactions(after uint64, limit int) []model.Tx
}

// Market is the escrow surface used by the handlers.
type Market interface {
	ListModel(ctx context.Context, caller model.Address, id model.AssetID, price model.Amount) error
	CancelListing(ctx context.Context, caller model.Address, id model.AssetID) error
	BuyModel(ctx context.Context, buyer model.Address, id model.AssetID, payment model.Amount) (model.Settlement, error)
	Listing(id model.AssetID) (model.Listing, error)
	ActiveListings() []model.AssetID
}

// Accounts holds spendable balances.
type Accounts interface {
	Deposit(ctx context.Context, to model.Address, amount model.Amount) error
	Balance(ctx context.Context, addr model.Address) model.Amount
	SetRejecting(addr model.Address, reject bool)
}

// Ranking exposes the performance leaderboard.
type Ranking interface {
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, id model.AssetID) (Entry, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Dependencies bundles what the handlers need.
type Dependencies struct {
	Ledger   Ledger
	Market   Market
	Accounts Accounts
	Ranking  Ranking
	Deduper  dedupe.Deduper
	Stats    StatsProvider
}

// Server wires HTTP routes for the ledger API.
type Server struct {
	deps     Dependencies
	maxLimit int
	logger   logger.Logger

	health      *HealthHandler
	stats       *StatsHandler
	leaderboard *LeaderboardHandler
	rank        *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		maxLimit: defaultMaxLimit,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.health = NewHealthHandler()
	s.stats = NewStatsHandler(deps.Stats)
	s.leaderboard = NewLeaderboardHandler(deps.Ranking, s.maxLimit)
	s.rank = NewRankHandler(deps.Ranking)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.Handle(pattern, RequestID(MetricsMiddleware(h, endpoint)))
	}

	route("GET /healthz", "healthz", s.health.HandleHealth)
	route("GET /metrics", "metrics", s.health.HandleMetrics)
	route("GET /stats", "stats", s.stats.HandleStats)

	route("POST /assets", "mint", s.idempotent(s.handleMint))
	route("GET /assets/{id}", "asset", s.handleGetAsset)
	route("POST /assets/{id}/transfer", "transfer", s.idempotent(s.handleTransfer))
	route("POST /assets/{id}/approve", "approve", s.idempotent(s.handleApprove))
	route("PUT /assets/{id}/metrics", "update_metrics", s.idempotent(s.handleUpdateMetrics))
	route("GET /assets/{id}/metrics", "metrics_read", s.handleGetMetrics)
	route("PUT /assets/{id}/profit-config", "set_profit_config", s.idempotent(s.handleSetProfitConfig))
	route("GET /assets/{id}/profit-config", "profit_config", s.handleGetProfitConfig)
	route("POST /assets/{id}/distributions", "distribute_profits", s.idempotent(s.handleDistribute))
	route("GET /assets/{id}/rank", "rank", s.rank.HandleGetRank)

	route("POST /operators", "set_approval_for_all", s.idempotent(s.handleSetApprovalForAll))
	route("GET /operators/{owner}/{operator}", "is_approved_for_all", s.handleIsApprovedForAll)
	route("GET /owners/{owner}/balance", "balance_of", s.handleBalanceOf)

	route("POST /listings", "list_model", s.idempotent(s.handleListModel))
	route("GET /listings", "active_listings", s.handleActiveListings)
	route("GET /listings/{id}", "listing", s.handleGetListing)
	route("DELETE /listings/{id}", "cancel_listing", s.idempotent(s.handleCancelListing))
	route("POST /listings/{id}/purchase", "buy_model", s.idempotent(s.handleBuyModel))

	route("POST /accounts/{addr}/deposit", "deposit", s.idempotent(s.handleDeposit))
	route("POST /accounts/{addr}/reject", "reject", s.handleSetRejecting)
	route("GET /accounts/{addr}", "account", s.handleGetAccount)

	route("GET /transactions", "transactions", s.handleTransactions)
	route("GET /leaderboard", "leaderboard", s.leaderboard.HandleGetLeaderboard)
}

// idempotent rejects a repeated Idempotency-Key with 409. A request that
// fails releases its key so it can be retried.
func (s *Server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerIdempotency)
		if key == "" || s.deps.Deduper == nil {
			next(w, r)
			return
		}
		scoped := r.Method + " " + r.URL.Path + " " + key
		if s.deps.Deduper.SeenAndRecord(r.Context(), scoped) {
			metrics.RecordDuplicateRequest()
			writeError(w, http.StatusConflict, "duplicate_request", NewKind("api.idempotency", ErrDuplicate))
			return
		}
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)
		if rw.statusCode >= http.StatusBadRequest {
			s.deps.Deduper.Unrecord(r.Context(), scoped)
		}
	}
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes the status and code that correspond to err.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, code, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

func callerOf(r *http.Request) (model.Address, error) {
	raw := r.Header.Get(headerCaller)
	if raw == "" {
		return "", fmt.Errorf("missing %s header", headerCaller)
	}
	addr, err := model.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", headerCaller, err)
	}
	return addr, nil
}

func assetIDOf(r *http.Request) (model.AssetID, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid asset id %q", r.PathValue("id"))
	}
	return model.AssetID(id), nil
}

func addressOf(r *http.Request, name string) (model.Address, error) {
	addr, err := model.ParseAddress(r.PathValue(name))
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}
