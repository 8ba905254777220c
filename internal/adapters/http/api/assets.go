package api

import (
	"net/http"

	"github.com/okian/modelmarket/internal/domain/model"
)

type mintRequest struct {
	To  string `json:"to"`
	URI string `json:"uri"`
}

type mintResponse struct {
	ID model.AssetID `json:"id"`
}

type addressRequest struct {
	To       string `json:"to,omitempty"`
	Operator string `json:"operator,omitempty"`
}

type metricsRequest struct {
	RewardRate        model.Amount `json:"reward_rate"`
	CompletionRate    uint64       `json:"completion_rate"`
	ContributionScore model.Amount `json:"contribution_score"`
}

type profitConfigRequest struct {
	Beneficiaries []string `json:"beneficiaries"`
	Shares        []uint64 `json:"shares"`
}

type amountRequest struct {
	Amount model.Amount `json:"amount"`
}

type payoutsResponse struct {
	Payouts []model.Payout `json:"payouts"`
}

// handleMint handles POST /assets.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	const op = "api.mint"
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req mintRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	to, err := model.ParseAddress(req.To)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := s.deps.Ledger.Mint(r.Context(), caller, to, req.URI)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, mintResponse{ID: id})
}

// handleGetAsset handles GET /assets/{id}.
func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_asset"
	id, err := assetIDOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := s.deps.Ledger.Asset(id)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleTransfer handles POST /assets/{id}/transfer.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	const op = "api.transfer"
	caller, id, req, ok := s.assetRequest(w, r, op)
	if !ok {
		return
	}
	to, err := model.ParseAddress(req.To)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.deps.Ledger.Transfer(r.Context(), caller, id, to); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}

// handleApprove handles POST /assets/{id}/approve. An empty operator clears
// the approval.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	const op = "api.approve"
	caller, id, req, ok := s.assetRequest(w, r, op)
	if !ok {
		return
	}
	operator := model.ZeroAddress
	if req.Operator != "" {
		var err error
		if operator, err = model.ParseAddress(req.Operator); err != nil {
			s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if err := s.deps.Ledger.Approve(r.Context(), caller, id, operator); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}

func (s *Server) assetRequest(w http.ResponseWriter, r *http.Request, op string) (model.Address, model.AssetID, addressRequest, bool) {
	var req addressRequest
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return "", 0, req, false
	}
	id, err := assetIDOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return "", 0, req, false
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return "", 0, req, false
	}
	return caller, id, req, true
}

// handleUpdateMetrics handles PUT /assets/{id}/metrics.
func (s *Server) handleUpdateMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_metrics"
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := assetIDOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req metricsRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	m := model.Metrics{
		RewardRate:        uint64(req.RewardRate),
		CompletionRate:    req.CompletionRate,
		ContributionScore: uint64(req.ContributionScore),
	}
	if err := s.deps.Ledger.UpdateMetrics(r.Context(), caller, id, m); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleGetMetrics handles GET /assets/{id}/metrics.
func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_metrics"
	id, err := assetIDOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := s.deps.Ledger.GetModelMetrics(id)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleSetProfitConfig handles PUT /assets/{id}/profit-config.
func (s *Server) handleSetProfitConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_profit_config"
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := assetIDOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req profitConfigRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	beneficiaries := make([]model.Address, len(req.Beneficiaries))
	for i, raw := range req.Beneficiaries {
		if beneficiaries[i], err = model.ParseAddress(raw); err != nil {
			s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if err := s.deps.Ledger.SetProfitConfig(r.Context(), caller, id, beneficiaries, req.Shares); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ProfitConfig{Beneficiaries: beneficiaries, Shares: req.Shares})
}

// handleGetProfitConfig handles GET /assets/{id}/profit-config.
func (s *Server) handleGetProfitConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profit_config"
	id, err := assetIDOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	cfg, err := s.deps.Ledger.ProfitConfig(id)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleDistribute handles POST /assets/{id}/distributions. The caller pays.
func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	const op = "api.distribute_profits"
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := assetIDOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req amountRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	payouts, err := s.deps.Ledger.DistributeProfits(r.Context(), caller, id, req.Amount)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, payoutsResponse{Payouts: payouts})
}
