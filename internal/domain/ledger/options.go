package ledger

import (
	"github.com/okian/modelmarket/internal/domain/funds"
	"github.com/okian/modelmarket/pkg/logger"
)

// Option configures a Registry.
type Option func(*Registry)

// WithSink sets where payments are debited and credited. Defaults to a fresh
// in-memory funds.Bank.
func WithSink(s funds.Sink) Option {
	return func(r *Registry) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithNotifier sets the receiver of committed events.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithJournalLimit bounds how many transactions are retained.
func WithJournalLimit(n int) Option {
	return func(r *Registry) { r.journal = newJournal(n) }
}
