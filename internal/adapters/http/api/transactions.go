package api

import (
	"net/http"
	"strconv"

	"github.com/okian/modelmarket/internal/domain/model"
)

const defaultTransactionsLimit = 100

type transactionsResponse struct {
	Transactions []model.Tx `json:"transactions"`
}

// handleTransactions handles GET /transactions?after=<seq>&limit=<n>.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "api.transactions"
	q := r.URL.Query()

	var after uint64
	if raw := q.Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
			return
		}
		after = v
	}
	limit := defaultTransactionsLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.fail(w, r, op, NewKind(op, ErrBadRequest))
			return
		}
		limit = v
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: s.deps.Ledger.Transactions(after, limit)})
}
