// Package config defines service configuration and its loader.
package config

import (
	"fmt"
	"runtime"

	"github.com/okian/modelmarket/internal/domain/model"
)

// MaxFeeBps is a 100% fee in basis points.
const MaxFeeBps = 10_000

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// FeeBps is the marketplace fee in basis points of the sale price.
	FeeBps uint64 `koanf:"fee_bps"`

	// MarketplaceAddress is the identity that holds listed assets.
	MarketplaceAddress string `koanf:"marketplace_address"`

	// FeeRecipient receives marketplace fees.
	FeeRecipient string `koanf:"fee_recipient"`

	// EventQueueSize bounds the notification queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of notification workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the idempotency key cache; <= 0 keeps every key.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// JournalLimit bounds how many transactions the journal retains.
	JournalLimit int `koanf:"journal_limit"`

	// MetricWeights weighs each performance metric in the leaderboard score.
	MetricWeights map[string]float64 `koanf:"metric_weights"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		FeeBps:              250,
		MarketplaceAddress:  "0x00000000000000000000000000000000000000fe",
		FeeRecipient:        "0x00000000000000000000000000000000000000fa",
		EventQueueSize:      10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 100,
		JournalLimit:        10_000,
		MetricWeights: map[string]float64{
			"reward_rate":        1,
			"completion_rate":    1,
			"contribution_score": 1,
		},
	}
}

// Validate checks values the service cannot start without.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.FeeBps > MaxFeeBps {
		return fmt.Errorf("%w: fee_bps %d exceeds %d", ErrInvalidConfig, c.FeeBps, MaxFeeBps)
	}
	market, err := c.Marketplace()
	if err != nil {
		return err
	}
	recipient, err := c.Recipient()
	if err != nil {
		return err
	}
	if market == recipient {
		return fmt.Errorf("%w: marketplace_address and fee_recipient must differ", ErrInvalidConfig)
	}
	for name, w := range c.MetricWeights {
		if w < 0 {
			return fmt.Errorf("%w: metric weight %s is negative", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Marketplace returns the parsed marketplace address.
func (c *Config) Marketplace() (model.Address, error) {
	return parseIdentity("marketplace_address", c.MarketplaceAddress)
}

// Recipient returns the parsed fee recipient address.
func (c *Config) Recipient() (model.Address, error) {
	return parseIdentity("fee_recipient", c.FeeRecipient)
}

func parseIdentity(key, raw string) (model.Address, error) {
	addr, err := model.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	if addr.IsZero() {
		return "", fmt.Errorf("%w: %s must not be the zero address", ErrInvalidConfig, key)
	}
	return addr, nil
}
