package api

import (
	"net/http"

	"github.com/okian/modelmarket/internal/domain/model"
)

type accountResponse struct {
	Address model.Address `json:"address"`
	Balance model.Amount  `json:"balance"`
}

type rejectRequest struct {
	Reject bool `json:"reject"`
}

// handleDeposit handles POST /accounts/{addr}/deposit.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	const op = "api.deposit"
	addr, err := addressOf(r, "addr")
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req amountRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.deps.Accounts.Deposit(r.Context(), addr, req.Amount); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Address: addr, Balance: s.deps.Accounts.Balance(r.Context(), addr)})
}

// handleSetRejecting handles POST /accounts/{addr}/reject. A rejecting
// account refuses every credit.
func (s *Server) handleSetRejecting(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_rejecting"
	addr, err := addressOf(r, "addr")
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req rejectRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	s.deps.Accounts.SetRejecting(addr, req.Reject)
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}

// handleGetAccount handles GET /accounts/{addr}.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_account"
	addr, err := addressOf(r, "addr")
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Address: addr, Balance: s.deps.Accounts.Balance(r.Context(), addr)})
}
