// Package service assembles the ledger, marketplace and notification
// pipeline into a runnable unit and exposes them to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/modelmarket/internal/adapters/http/api"
	eventqueue "github.com/okian/modelmarket/internal/adapters/mq/queue"
	workerpool "github.com/okian/modelmarket/internal/adapters/mq/worker"
	"github.com/okian/modelmarket/internal/adapters/repository"
	"github.com/okian/modelmarket/internal/config"
	"github.com/okian/modelmarket/internal/domain/dedupe"
	"github.com/okian/modelmarket/internal/domain/funds"
	"github.com/okian/modelmarket/internal/domain/ledger"
	"github.com/okian/modelmarket/internal/domain/scoring"
	"github.com/okian/modelmarket/pkg/logger"
	"github.com/okian/modelmarket/pkg/metrics"
)

const (
	defaultGaugeInterval = 5 * time.Second
	stopTimeout          = 30 * time.Second
)

// ErrStopped is returned by Start once the service has been stopped. The
// ledger lives in memory, so a stopped service cannot be resumed.
var ErrStopped = errors.New("service stopped")

// Service owns every component behind the API.
type Service struct {
	mu sync.RWMutex

	cfg           *config.Config
	gaugeInterval time.Duration

	bank        *funds.Bank
	registry    *ledger.Registry
	market      *ledger.Marketplace
	ranking     *repository.TreapStore
	deduper     dedupe.Deduper
	eventQueue  *eventqueue.InMemoryQueue
	scorer      *scoring.WeightedScorer
	workerPool  *workerpool.Pool
	cancelTasks context.CancelFunc
	tasks       sync.WaitGroup

	started bool
	stopped bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.cfg.WorkerCount = count
		}
	}
}

// WithQueueSize bounds the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cfg.EventQueueSize = size
		}
	}
}

// WithDedupeSize bounds the idempotency key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.cfg.DedupeSize = size
	}
}

// WithFee sets the marketplace fee in basis points.
func WithFee(bps uint64) Option {
	return func(s *Service) {
		s.cfg.FeeBps = bps
	}
}

// WithMetricWeights sets the leaderboard metric weights.
func WithMetricWeights(weights map[string]float64) Option {
	return func(s *Service) {
		s.cfg.MetricWeights = weights
	}
}

// WithGaugeInterval sets how often gauges are refreshed in the background.
func WithGaugeInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gaugeInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Options run in order, so WithConfig should come
// before options that tweak individual values.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:           config.New(),
		gaugeInterval: defaultGaugeInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates configuration and starts every component.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	marketAddr, _ := s.cfg.Marketplace()
	recipient, _ := s.cfg.Recipient()

	s.logger.Info(ctx, "starting ledger service...")

	s.bank = funds.NewBank()
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.EventQueueSize))
	s.registry = ledger.NewRegistry(
		ledger.WithSink(s.bank),
		ledger.WithNotifier(s.eventQueue),
		ledger.WithJournalLimit(s.cfg.JournalLimit),
		ledger.WithLogger(s.logger.Named("ledger")),
	)
	market, err := ledger.NewMarketplace(s.registry, marketAddr, recipient, s.cfg.FeeBps)
	if err != nil {
		_ = s.eventQueue.Close()
		return fmt.Errorf("start service: %w", err)
	}
	s.market = market
	s.ranking = repository.NewTreapStore()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.scorer = scoring.NewWeightedScorer(scoring.WithWeightsFromConfig(s.cfg.MetricWeights, 0))

	s.workerPool = workerpool.NewPool(s.cfg.WorkerCount, s.eventQueue, s.scorer, s.ranking,
		workerpool.WithLogger(s.logger.Named("worker")))
	s.workerPool.Start(ctx)

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelTasks = cancel
	s.tasks.Add(1)
	go s.refreshGauges(taskCtx)

	s.started = true
	s.logger.Info(ctx, "ledger service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.cfg.EventQueueSize),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
		logger.String("marketplace", marketAddr.String()),
		logger.Uint64("feeBps", s.cfg.FeeBps),
	)
	return nil
}

// Stop closes the notification queue and waits for workers to drain it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping ledger service...")

	s.cancelTasks()
	s.tasks.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := s.workerPool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "ledger service stopped",
		logger.Any("processed", s.workerPool.Processed()))
}

// Dependencies returns what the HTTP API needs. It is only meaningful after
// Start.
func (s *Service) Dependencies() api.Dependencies {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return api.Dependencies{
		Ledger:   s.registry,
		Market:   s.market,
		Accounts: s.bank,
		Ranking:  s.ranking,
		Deduper:  s.deduper,
		Stats:    s,
	}
}

// Registry returns the ownership registry.
func (s *Service) Registry() *ledger.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Marketplace returns the escrow marketplace.
func (s *Service) Marketplace() *ledger.Marketplace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.market
}

// Bank returns the account balances that back payments.
func (s *Service) Bank() *funds.Bank {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bank
}

// Ranking returns the performance leaderboard.
func (s *Service) Ranking() *repository.TreapStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranking
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.EventQueueSize,
		"dedupeSize":  s.cfg.DedupeSize,
		"feeBps":      s.cfg.FeeBps,
	}
	if s.registry == nil {
		return stats
	}

	ctx := context.Background()
	ls := s.registry.Stats()
	stats["ledger"] = ls
	stats["marketplace"] = s.market.Address()
	stats["feeRecipient"] = s.market.FeeRecipient()
	stats["queueLength"] = s.eventQueue.Len(ctx)
	stats["rankedAssets"] = s.ranking.Count(ctx)
	stats["dedupeEntries"] = s.deduper.Size()
	stats["processedEvents"] = s.workerPool.Processed()
	stats["accounts"] = s.bank.Accounts()
	return stats
}

func (s *Service) refreshGauges(ctx context.Context) {
	defer s.tasks.Done()
	ticker := time.NewTicker(s.gaugeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ls := s.registry.Stats()
			metrics.UpdateLedgerGauges(ls.Minted, ls.ActiveListings, ls.JournalEntries)
			metrics.UpdateRankedAssets(s.ranking.Count(ctx))
			metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
		}
	}
}
