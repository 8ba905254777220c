// Package funds moves value between accounts on behalf of the ledger.
//
// The ledger never assumes a wallet type. It talks to a Sink and groups the
// legs of one operation into a Batch so a failing leg undoes the earlier ones.
package funds

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/modelmarket/internal/domain/model"
)

// Sink is the funds-transfer capability used by settlement.
//
// A Debit of an amount that was just credited to the same account within one
// ledger operation must succeed, and Refund of an amount that was just
// debited must succeed regardless of whether the account accepts credits.
type Sink interface {
	// Credit pays amount to the account. An error means the account refused it.
	Credit(ctx context.Context, to model.Address, amount model.Amount) error
	// Debit takes amount from the account.
	Debit(ctx context.Context, from model.Address, amount model.Amount) error
	// Refund returns a debited amount to the account it was taken from.
	Refund(ctx context.Context, to model.Address, amount model.Amount) error
}

type direction int

const (
	credit direction = iota
	debit
)

type leg struct {
	dir     direction
	account model.Address
	amount  model.Amount
}

// Batch applies legs in order and remembers them for Rollback.
type Batch struct {
	sink    Sink
	applied []leg
}

// NewBatch starts an empty batch against sink.
func NewBatch(sink Sink) *Batch {
	return &Batch{sink: sink}
}

// Debit applies a debit leg. Zero amounts are skipped.
func (b *Batch) Debit(ctx context.Context, from model.Address, amount model.Amount) error {
	return b.apply(ctx, leg{dir: debit, account: from, amount: amount})
}

// Credit applies a credit leg. Zero amounts are skipped.
func (b *Batch) Credit(ctx context.Context, to model.Address, amount model.Amount) error {
	return b.apply(ctx, leg{dir: credit, account: to, amount: amount})
}

func (b *Batch) apply(ctx context.Context, l leg) error {
	if l.amount == 0 {
		return nil
	}
	var err error
	switch l.dir {
	case credit:
		err = b.sink.Credit(ctx, l.account, l.amount)
	case debit:
		err = b.sink.Debit(ctx, l.account, l.amount)
	}
	if err != nil {
		return fmt.Errorf("%s %s of %s: %w", l.dir, l.account, l.amount, err)
	}
	b.applied = append(b.applied, l)
	return nil
}

// Rollback undoes applied legs in reverse order. Debits are reversed with
// Refund so an account that refuses credits still gets its value back.
func (b *Batch) Rollback(ctx context.Context) error {
	var errs []error
	for i := len(b.applied) - 1; i >= 0; i-- {
		l := b.applied[i]
		var err error
		switch l.dir {
		case credit:
			err = b.sink.Debit(ctx, l.account, l.amount)
		case debit:
			err = b.sink.Refund(ctx, l.account, l.amount)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("undo %s %s of %s: %w", l.dir, l.account, l.amount, err))
		}
	}
	b.applied = nil
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrRollback}, errs...)...)
	}
	return nil
}

// Len returns the number of applied legs.
func (b *Batch) Len() int { return len(b.applied) }

func (d direction) String() string {
	if d == debit {
		return "debit"
	}
	return "credit"
}
