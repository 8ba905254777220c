package funds

import (
	"context"
	"math"
	"sync"

	"github.com/okian/modelmarket/internal/domain/model"
)

// Bank is an in-memory account book implementing Sink.
type Bank struct {
	mu        sync.RWMutex
	balances  map[model.Address]model.Amount
	rejecting map[model.Address]bool
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances:  make(map[model.Address]model.Amount),
		rejecting: make(map[model.Address]bool),
	}
}

// Deposit adds external value to an account.
func (b *Bank) Deposit(_ context.Context, to model.Address, amount model.Amount) error {
	if to.IsZero() {
		return ErrInvalidAccount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.add(to, amount)
}

// Credit implements Sink.
func (b *Bank) Credit(_ context.Context, to model.Address, amount model.Amount) error {
	if to.IsZero() {
		return ErrInvalidAccount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejecting[to] {
		return ErrRejected
	}
	return b.add(to, amount)
}

// Refund implements Sink. It ignores the rejecting flag.
func (b *Bank) Refund(_ context.Context, to model.Address, amount model.Amount) error {
	if to.IsZero() {
		return ErrInvalidAccount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.add(to, amount)
}

// Debit implements Sink.
func (b *Bank) Debit(_ context.Context, from model.Address, amount model.Amount) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balances[from]
	if bal < amount {
		return ErrInsufficientFunds
	}
	b.balances[from] = bal - amount
	return nil
}

func (b *Bank) add(to model.Address, amount model.Amount) error {
	bal := b.balances[to]
	if uint64(bal) > math.MaxUint64-uint64(amount) {
		return ErrOverflow
	}
	b.balances[to] = bal + amount
	return nil
}

// Balance returns the balance of an account; unknown accounts hold zero.
func (b *Bank) Balance(_ context.Context, addr model.Address) model.Amount {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[addr]
}

// SetRejecting marks an account as refusing credits.
func (b *Bank) SetRejecting(addr model.Address, reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reject {
		b.rejecting[addr] = true
		return
	}
	delete(b.rejecting, addr)
}

// Accounts returns the number of accounts with a recorded balance.
func (b *Bank) Accounts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.balances)
}
