package ledger

import (
	"context"
	"slices"
	"time"

	"github.com/okian/modelmarket/internal/domain/funds"
	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/pkg/metrics"
)

// Marketplace escrows listed assets and settles purchases. It holds listed
// assets under its own address and shares the registry's lock.
type Marketplace struct {
	reg          *Registry
	address      model.Address
	feeRecipient model.Address
	feeBps       uint64
	listings     map[model.AssetID]*model.Listing
}

// NewMarketplace creates a marketplace over reg. address becomes a custodian
// in reg: assets it holds can no longer be moved or approved directly.
func NewMarketplace(reg *Registry, address, feeRecipient model.Address, feeBps uint64) (*Marketplace, error) {
	const op = "new_marketplace"
	if feeBps > MaxFeeBps {
		return nil, &Error{Op: op, Kind: ErrInvalidConfig, Err: errInvalidFee}
	}
	if address.IsZero() || feeRecipient.IsZero() {
		return nil, &Error{Op: op, Kind: ErrInvalidRecipient}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.custodians[address] {
		return nil, &Error{Op: op, Kind: ErrInvalidConfig, Err: errDuplicateCustodian}
	}
	reg.custodians[address] = true

	return &Marketplace{
		reg:          reg,
		address:      address,
		feeRecipient: feeRecipient,
		feeBps:       feeBps,
		listings:     make(map[model.AssetID]*model.Listing),
	}, nil
}

// Address is the identity that holds escrowed assets.
func (m *Marketplace) Address() model.Address { return m.address }

// FeeRecipient receives the fee of every sale.
func (m *Marketplace) FeeRecipient() model.Address { return m.feeRecipient }

// FeeBps is the sale fee in basis points.
func (m *Marketplace) FeeBps() uint64 { return m.feeBps }

// ListModel puts an asset up for sale at price. The caller must own it and
// must have approved the marketplace for it, either per asset or as an
// operator. On success the marketplace holds the asset.
func (m *Marketplace) ListModel(ctx context.Context, caller model.Address, id model.AssetID, price model.Amount) error {
	const op = "list_model"
	start := time.Now()
	r := m.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return r.reject(ctx, op, start, id, ErrUnknownAsset, nil)
	}
	if l := m.listings[id]; l != nil && l.IsActive {
		return r.reject(ctx, op, start, id, ErrAlreadyListed, nil)
	}
	if caller != a.Owner || r.custodians[caller] {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errNotOwner)
	}
	if price == 0 {
		return r.reject(ctx, op, start, id, ErrInvalidPrice, errZeroPrice)
	}
	if a.Approved != m.address && !r.operators[a.Owner][m.address] {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errNotApproved)
	}

	custody := r.move(a, m.address)
	m.listings[id] = &model.Listing{Seller: caller, Price: price, IsActive: true}
	r.listed++

	r.commit(ctx, op, start, caller, id, custody, model.Event{
		Kind:   model.EventListed,
		From:   caller,
		Amount: price,
	})
	return nil
}

// CancelListing returns an escrowed asset to its seller.
func (m *Marketplace) CancelListing(ctx context.Context, caller model.Address, id model.AssetID) error {
	const op = "cancel_listing"
	start := time.Now()
	r := m.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	l := m.listings[id]
	if l == nil || !l.IsActive {
		return r.reject(ctx, op, start, id, ErrNotListed, nil)
	}
	if caller != l.Seller {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errNotSeller)
	}

	back := r.move(r.assets[id], l.Seller)
	l.IsActive = false
	r.listed--

	r.commit(ctx, op, start, caller, id, back, model.Event{
		Kind: model.EventListingCancelled,
		To:   l.Seller,
	})
	return nil
}

// BuyModel settles a purchase. payment is debited from buyer; the fee goes to
// the fee recipient, the rest of the price to the seller and anything above
// the price back to the buyer. Ownership changes only once every payment leg
// has succeeded; a failed leg reverts the earlier ones.
func (m *Marketplace) BuyModel(ctx context.Context, buyer model.Address, id model.AssetID, payment model.Amount) (model.Settlement, error) {
	const op = "buy_model"
	start := time.Now()
	r := m.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	l := m.listings[id]
	if l == nil || !l.IsActive {
		return model.Settlement{}, r.reject(ctx, op, start, id, ErrNotListed, nil)
	}
	if buyer.IsZero() {
		return model.Settlement{}, r.reject(ctx, op, start, id, ErrInvalidRecipient, nil)
	}
	if r.custodians[buyer] {
		return model.Settlement{}, r.reject(ctx, op, start, id, ErrUnauthorized, errCustodian)
	}
	if payment < l.Price {
		return model.Settlement{}, r.reject(ctx, op, start, id, ErrInsufficientPayment, nil)
	}

	fee := Fee(l.Price, m.feeBps)
	s := model.Settlement{
		Buyer:          buyer,
		Seller:         l.Seller,
		Price:          l.Price,
		Fee:            fee,
		SellerProceeds: l.Price - fee,
		Refund:         payment - l.Price,
	}

	batch := funds.NewBatch(r.sink)
	err := batch.Debit(ctx, buyer, payment)
	if err == nil {
		err = batch.Credit(ctx, m.feeRecipient, s.Fee)
	}
	if err == nil {
		err = batch.Credit(ctx, s.Seller, s.SellerProceeds)
	}
	if err == nil {
		err = batch.Credit(ctx, buyer, s.Refund)
	}
	if err != nil {
		return model.Settlement{}, r.reject(ctx, op, start, id, ErrSettlementFailed, r.unwind(ctx, op, batch, err))
	}

	sold := r.move(r.assets[id], buyer)
	l.IsActive = false
	r.listed--

	metrics.RecordSettlement(uint64(s.Price), uint64(s.Fee))
	r.commit(ctx, op, start, buyer, id, sold, model.Event{
		Kind:   model.EventSold,
		From:   s.Seller,
		To:     buyer,
		Amount: s.Price,
		Payouts: []model.Payout{
			{To: m.feeRecipient, Amount: s.Fee},
			{To: s.Seller, Amount: s.SellerProceeds},
		},
	})
	return s, nil
}

// Listing returns the listing of an asset. An asset that was never listed
// yields an inactive zero listing.
func (m *Marketplace) Listing(id model.AssetID) (model.Listing, error) {
	m.reg.mu.RLock()
	defer m.reg.mu.RUnlock()
	if _, ok := m.reg.assets[id]; !ok {
		return model.Listing{}, &Error{Op: "listing", Kind: ErrUnknownAsset}
	}
	if l := m.listings[id]; l != nil {
		return *l, nil
	}
	return model.Listing{}, nil
}

// ActiveListings returns the IDs of every active listing in ascending order.
func (m *Marketplace) ActiveListings() []model.AssetID {
	m.reg.mu.RLock()
	defer m.reg.mu.RUnlock()
	ids := make([]model.AssetID, 0, m.reg.listed)
	for id, l := range m.listings {
		if l.IsActive {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
