package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/modelmarket/internal/domain/funds"
	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/pkg/logger"
	"github.com/okian/modelmarket/pkg/metrics"
)

// Notifier receives events after their operation commits. Delivery is best
// effort: a false return means the event was dropped.
type Notifier interface {
	Enqueue(ctx context.Context, e model.Event) bool
}

// Registry tracks asset ownership, approvals, performance metrics and profit
// splits. A Marketplace created over a Registry shares its lock, so every
// mutation on either is serialized and observes the others completely or not
// at all.
type Registry struct {
	mu sync.RWMutex

	assets     map[model.AssetID]*model.Asset
	metrics    map[model.AssetID]model.Metrics
	configs    map[model.AssetID]model.ProfitConfig
	operators  map[model.Address]map[model.Address]bool
	balances   map[model.Address]uint64
	custodians map[model.Address]bool
	nextID     model.AssetID
	listed     int

	journal  *journal
	sink     funds.Sink
	notifier Notifier
	logger   logger.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		assets:     make(map[model.AssetID]*model.Asset),
		metrics:    make(map[model.AssetID]model.Metrics),
		configs:    make(map[model.AssetID]model.ProfitConfig),
		operators:  make(map[model.Address]map[model.Address]bool),
		balances:   make(map[model.Address]uint64),
		custodians: make(map[model.Address]bool),
		journal:    newJournal(defaultJournalLimit),
		sink:       funds.NewBank(),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sink returns the payment sink used for distributions and settlements.
func (r *Registry) Sink() funds.Sink { return r.sink }

// Mint creates a new asset owned by to. IDs start at 1 and increase by one.
// Marketplace addresses cannot receive assets outside a listing.
func (r *Registry) Mint(ctx context.Context, caller, to model.Address, uri string) (model.AssetID, error) {
	const op = "mint"
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if to.IsZero() || r.custodians[to] {
		return 0, r.reject(ctx, op, start, 0, ErrInvalidRecipient, nil)
	}
	r.nextID++
	id := r.nextID
	r.assets[id] = &model.Asset{ID: id, Owner: to, URI: uri}
	r.balances[to]++

	r.commit(ctx, op, start, caller, id, model.Event{Kind: model.EventMinted, To: to, URI: uri})
	return id, nil
}

// Transfer moves an asset to a new owner. The caller must be the owner, the
// asset's approved address, or an operator of the owner. Assets held by a
// marketplace can only leave through that marketplace.
func (r *Registry) Transfer(ctx context.Context, caller model.Address, id model.AssetID, to model.Address) error {
	const op = "transfer"
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return r.reject(ctx, op, start, id, ErrUnknownAsset, nil)
	}
	if r.custodians[a.Owner] {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errInCustody)
	}
	if !r.canManage(caller, a) {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errNotOwnerOrApproved)
	}
	if to.IsZero() || r.custodians[to] {
		return r.reject(ctx, op, start, id, ErrInvalidRecipient, nil)
	}

	ev := r.move(a, to)
	r.commit(ctx, op, start, caller, id, ev)
	return nil
}

// Approve grants operator the right to transfer one asset. The zero address
// clears the approval.
func (r *Registry) Approve(ctx context.Context, caller model.Address, id model.AssetID, operator model.Address) error {
	const op = "approve"
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return r.reject(ctx, op, start, id, ErrUnknownAsset, nil)
	}
	if r.custodians[a.Owner] {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errInCustody)
	}
	if caller != a.Owner && !r.operators[a.Owner][caller] {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errNotOwner)
	}
	if operator == a.Owner {
		return r.reject(ctx, op, start, id, ErrInvalidRecipient, errSelfApproval)
	}
	if operator.IsZero() {
		operator = ""
	}
	a.Approved = operator

	r.commit(ctx, op, start, caller, id, model.Event{Kind: model.EventApproval, From: a.Owner, To: operator})
	return nil
}

// SetApprovalForAll grants or revokes operator rights over every asset the
// caller owns, now or later.
func (r *Registry) SetApprovalForAll(ctx context.Context, caller, operator model.Address, approved bool) error {
	const op = "set_approval_for_all"
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller.IsZero() || r.custodians[caller] {
		return r.reject(ctx, op, start, 0, ErrUnauthorized, errCustodian)
	}
	if operator.IsZero() || operator == caller {
		return r.reject(ctx, op, start, 0, ErrInvalidRecipient, nil)
	}
	if approved {
		set := r.operators[caller]
		if set == nil {
			set = make(map[model.Address]bool)
			r.operators[caller] = set
		}
		set[operator] = true
	} else if set := r.operators[caller]; set != nil {
		delete(set, operator)
		if len(set) == 0 {
			delete(r.operators, caller)
		}
	}

	r.commit(ctx, op, start, caller, 0, model.Event{
		Kind:     model.EventApprovalForAll,
		From:     caller,
		To:       operator,
		Approved: approved,
	})
	return nil
}

// UpdateMetrics replaces the performance metrics of an asset. Only the
// owner may do this.
func (r *Registry) UpdateMetrics(ctx context.Context, caller model.Address, id model.AssetID, m model.Metrics) error {
	const op = "update_metrics"
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return r.reject(ctx, op, start, id, ErrUnknownAsset, nil)
	}
	if caller != a.Owner {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errNotOwner)
	}
	if m.CompletionRate > model.MaxCompletionRate {
		return r.reject(ctx, op, start, id, ErrOutOfRange, nil)
	}
	r.metrics[id] = m

	r.commit(ctx, op, start, caller, id, model.Event{Kind: model.EventMetricsUpdated, Metrics: &m})
	return nil
}

// SetProfitConfig replaces the profit split of an asset. Only the owner may
// do this. Beneficiaries and shares are copied.
func (r *Registry) SetProfitConfig(ctx context.Context, caller model.Address, id model.AssetID, beneficiaries []model.Address, shares []uint64) error {
	const op = "set_profit_config"
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return r.reject(ctx, op, start, id, ErrUnknownAsset, nil)
	}
	if caller != a.Owner {
		return r.reject(ctx, op, start, id, ErrUnauthorized, errNotOwner)
	}
	if err := validateProfitConfig(beneficiaries, shares); err != nil {
		return r.reject(ctx, op, start, id, ErrInvalidConfig, err)
	}
	r.configs[id] = model.ProfitConfig{Beneficiaries: beneficiaries, Shares: shares}.Clone()

	r.commit(ctx, op, start, caller, id, model.Event{Kind: model.EventProfitConfigSet})
	return nil
}

// DistributeProfits debits amount from payer and pays each beneficiary its
// share. Any failed leg reverts the whole distribution.
func (r *Registry) DistributeProfits(ctx context.Context, payer model.Address, id model.AssetID, amount model.Amount) ([]model.Payout, error) {
	const op = "distribute_profits"
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assets[id]; !ok {
		return nil, r.reject(ctx, op, start, id, ErrUnknownAsset, nil)
	}
	cfg, ok := r.configs[id]
	if !ok {
		return nil, r.reject(ctx, op, start, id, ErrConfigMissing, nil)
	}

	amounts := SplitProfits(amount, cfg.Shares)
	payouts := make([]model.Payout, len(amounts))
	batch := funds.NewBatch(r.sink)
	err := batch.Debit(ctx, payer, amount)
	for i := 0; err == nil && i < len(amounts); i++ {
		payouts[i] = model.Payout{To: cfg.Beneficiaries[i], Amount: amounts[i]}
		err = batch.Credit(ctx, payouts[i].To, payouts[i].Amount)
	}
	if err != nil {
		return nil, r.reject(ctx, op, start, id, ErrPayoutFailed, r.unwind(ctx, op, batch, err))
	}

	metrics.RecordDistribution(uint64(amount))
	r.commit(ctx, op, start, payer, id, model.Event{
		Kind:    model.EventProfitsDistributed,
		From:    payer,
		Amount:  amount,
		Payouts: payouts,
	})
	return payouts, nil
}

// OwnerOf returns the current owner of an asset.
func (r *Registry) OwnerOf(id model.AssetID) (model.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return "", &Error{Op: "owner_of", Kind: ErrUnknownAsset}
	}
	return a.Owner, nil
}

// TokenURI returns the metadata URI recorded at mint.
func (r *Registry) TokenURI(id model.AssetID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return "", &Error{Op: "token_uri", Kind: ErrUnknownAsset}
	}
	return a.URI, nil
}

// Asset returns a copy of the asset record.
func (r *Registry) Asset(id model.AssetID) (model.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return model.Asset{}, &Error{Op: "asset", Kind: ErrUnknownAsset}
	}
	return *a, nil
}

// GetApproved returns the per-asset approved address, or the empty address.
func (r *Registry) GetApproved(id model.AssetID) (model.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return "", &Error{Op: "get_approved", Kind: ErrUnknownAsset}
	}
	return a.Approved, nil
}

// IsApprovedForAll reports whether operator may manage every asset of owner.
func (r *Registry) IsApprovedForAll(owner, operator model.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operators[owner][operator]
}

// BalanceOf returns the number of assets owned by owner.
func (r *Registry) BalanceOf(owner model.Address) (uint64, error) {
	if owner.IsZero() {
		return 0, &Error{Op: "balance_of", Kind: ErrInvalidRecipient}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.balances[owner], nil
}

// TotalSupply returns how many assets have been minted.
func (r *Registry) TotalSupply() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.assets))
}

// GetModelMetrics returns the metrics of an asset; zero if never set.
func (r *Registry) GetModelMetrics(id model.AssetID) (model.Metrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.assets[id]; !ok {
		return model.Metrics{}, &Error{Op: "get_model_metrics", Kind: ErrUnknownAsset}
	}
	return r.metrics[id], nil
}

// ProfitConfig returns a copy of the profit split of an asset.
func (r *Registry) ProfitConfig(id model.AssetID) (model.ProfitConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.assets[id]; !ok {
		return model.ProfitConfig{}, &Error{Op: "profit_config", Kind: ErrUnknownAsset}
	}
	cfg, ok := r.configs[id]
	if !ok {
		return model.ProfitConfig{}, &Error{Op: "profit_config", Kind: ErrConfigMissing}
	}
	return cfg.Clone(), nil
}

// Transactions returns up to limit journal entries with sequence numbers
// greater than after, oldest first. A non-positive limit returns all of them.
func (r *Registry) Transactions(after uint64, limit int) []model.Tx {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.journal.since(after, limit)
}

// Stats is a point-in-time summary of the ledger.
type Stats struct {
	Minted         int    `json:"minted"`
	ActiveListings int    `json:"active_listings"`
	Owners         int    `json:"owners"`
	LastSeq        uint64 `json:"last_seq"`
	JournalEntries int    `json:"journal_entries"`
}

// Stats returns current counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Minted:         len(r.assets),
		ActiveListings: r.listed,
		Owners:         len(r.balances),
		LastSeq:        r.journal.seq,
		JournalEntries: r.journal.len(),
	}
}

// canManage reports whether caller may transfer a. Must hold r.mu.
func (r *Registry) canManage(caller model.Address, a *model.Asset) bool {
	if caller.IsZero() {
		return false
	}
	return caller == a.Owner || caller == a.Approved || r.operators[a.Owner][caller]
}

// move reassigns ownership and clears the per-asset approval. Must hold r.mu.
func (r *Registry) move(a *model.Asset, to model.Address) model.Event {
	from := a.Owner
	if r.balances[from]--; r.balances[from] == 0 {
		delete(r.balances, from)
	}
	r.balances[to]++
	a.Owner = to
	a.Approved = ""
	return model.Event{Kind: model.EventTransfer, From: from, To: to}
}

// unwind reverts the applied legs of a failed batch and returns the failure,
// joined with any rollback error.
func (r *Registry) unwind(ctx context.Context, op string, batch *funds.Batch, cause error) error {
	if rbErr := batch.Rollback(ctx); rbErr != nil {
		r.logger.Error(ctx, "rollback incomplete", logger.String("op", op), logger.Error(rbErr))
		return errors.Join(cause, rbErr)
	}
	return cause
}

// commit journals a successful operation, stamps and publishes its events.
// Must hold r.mu.
func (r *Registry) commit(ctx context.Context, op string, start time.Time, caller model.Address, id model.AssetID, events ...model.Event) {
	tx := r.journal.append(op, caller, id)

	for _, ev := range events {
		ev.Seq = tx.Seq
		ev.TxID = tx.ID
		ev.AssetID = id
		ev.Caller = caller
		ev.At = tx.At
		if r.notifier != nil && !r.notifier.Enqueue(ctx, ev) {
			metrics.RecordNotificationDropped()
			r.logger.Warn(ctx, "event dropped",
				logger.String("kind", string(ev.Kind)),
				logger.Uint64("seq", tx.Seq))
		}
	}

	metrics.RecordLedgerOperation(op, "ok", float64(time.Since(start).Microseconds())/1000)
	metrics.UpdateLedgerGauges(len(r.assets), r.listed, r.journal.len())
	r.logger.Debug(ctx, "committed",
		logger.String("op", op),
		logger.Uint64("seq", tx.Seq),
		logger.String("tx_id", tx.ID.String()),
		logger.Uint64("asset_id", uint64(id)),
		logger.String("caller", caller.String()))
}

// reject records a failed operation and builds its error.
func (r *Registry) reject(ctx context.Context, op string, start time.Time, id model.AssetID, kind, cause error) error {
	err := &Error{Op: op, Kind: kind, Err: cause}
	metrics.RecordLedgerOperation(op, Code(err), float64(time.Since(start).Microseconds())/1000)
	r.logger.Debug(ctx, "rejected",
		logger.String("op", op),
		logger.Uint64("asset_id", uint64(id)),
		logger.Error(err))
	return err
}
