package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "MODELMARKET_"
	envFileKey = envPrefix + "CONFIG"
)

// nestedKeys lists map-valued keys that env vars may address, e.g.
// MODELMARKET_METRIC_WEIGHTS_REWARD_RATE -> metric_weights.reward_rate.
var nestedKeys = []string{"metric_weights"}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MODELMARKET_CONFIG is set
//  3. env (prefix MODELMARKET_)
func Load(_ context.Context) (*Config, error) {
	cfg := New()
	k := koanf.New(".")

	if path := os.Getenv(envFileKey); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps MODELMARKET_QUEUE_SIZE to queue_size. Underscores are kept so
// keys match the koanf tags, except after a nested key prefix.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if s == "config" {
		return ""
	}
	for _, nested := range nestedKeys {
		if rest, ok := strings.CutPrefix(s, nested+"_"); ok {
			return nested + "." + rest
		}
	}
	return s
}
