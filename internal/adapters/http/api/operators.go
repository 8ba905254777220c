package api

import (
	"net/http"

	"github.com/okian/modelmarket/internal/domain/model"
)

type operatorRequest struct {
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

type operatorResponse struct {
	Owner    model.Address `json:"owner"`
	Operator model.Address `json:"operator"`
	Approved bool          `json:"approved"`
}

type balanceOfResponse struct {
	Owner   model.Address `json:"owner"`
	Balance uint64        `json:"balance"`
}

// handleSetApprovalForAll handles POST /operators.
func (s *Server) handleSetApprovalForAll(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_approval_for_all"
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req operatorRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	operator, err := model.ParseAddress(req.Operator)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.deps.Ledger.SetApprovalForAll(r.Context(), caller, operator, req.Approved); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, operatorResponse{Owner: caller, Operator: operator, Approved: req.Approved})
}

// handleIsApprovedForAll handles GET /operators/{owner}/{operator}.
func (s *Server) handleIsApprovedForAll(w http.ResponseWriter, r *http.Request) {
	const op = "api.is_approved_for_all"
	owner, err := addressOf(r, "owner")
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	operator, err := addressOf(r, "operator")
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, operatorResponse{
		Owner:    owner,
		Operator: operator,
		Approved: s.deps.Ledger.IsApprovedForAll(owner, operator),
	})
}

// handleBalanceOf handles GET /owners/{owner}/balance.
func (s *Server) handleBalanceOf(w http.ResponseWriter, r *http.Request) {
	const op = "api.balance_of"
	owner, err := addressOf(r, "owner")
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	n, err := s.deps.Ledger.BalanceOf(owner)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceOfResponse{Owner: owner, Balance: n})
}
