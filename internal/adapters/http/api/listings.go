package api

import (
	"net/http"

	"github.com/okian/modelmarket/internal/domain/model"
)

type listRequest struct {
	ID    model.AssetID `json:"id"`
	Price model.Amount  `json:"price"`
}

type listingResponse struct {
	ID model.AssetID `json:"id"`
	model.Listing
}

type purchaseRequest struct {
	Payment model.Amount `json:"payment"`
}

type activeListingsResponse struct {
	IDs []model.AssetID `json:"ids"`
}

// handleListModel handles POST /listings.
func (s *Server) handleListModel(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_model"
	caller, err := callerOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req listRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.deps.Market.ListModel(r.Context(), caller, req.ID, req.Price); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingResponse{
		ID:      req.ID,
		Listing: model.Listing{Seller: caller, Price: req.Price, IsActive: true},
	})
}

// handleGetListing handles GET /listings/{id}.
func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_listing"
	id, err := assetIDOf(r)
	if err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	l, err := s.deps.Market.Listing(id)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, listingResponse{ID: id, Listing: l})
}

// handleActiveListings handles GET /listings.
func (s *Server) handleActiveListings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, activeListingsResponse{IDs: s.deps.Market.ActiveListings()})
}

// handleCancelListing handles DELETE /listings/{id}.
func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	const op = "api.cancel_listing"
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
	if err := s.deps.Market.CancelListing(r.Context(), caller, id); err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok"})
}

// handleBuyModel handles POST /listings/{id}/purchase. The caller buys.
func (s *Server) handleBuyModel(w http.ResponseWriter, r *http.Request) {
	const op = "api.buy_model"
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
	var req purchaseRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	settlement, err := s.deps.Market.BuyModel(r.Context(), caller, id, req.Payment)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}
