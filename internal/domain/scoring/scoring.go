// Package scoring turns asset performance metrics into a leaderboard score.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/modelmarket/internal/domain/model"
)

// Metric names accepted in weight maps.
const (
	MetricRewardRate        = "reward_rate"
	MetricCompletionRate    = "completion_rate"
	MetricContributionScore = "contribution_score"
)

const (
	defaultWeight = 1
	maxScoreValue = 100
	// unitScale is one whole token in base units; reward and contribution
	// are fractions expressed at this scale.
	unitScale = 1e18
)

// Option applies a configuration option to the WeightedScorer.
type Option func(*WeightedScorer)

// WithWeightsFromConfig sets per-metric weights. Unknown metric names and
// non-positive weights are ignored; metrics without a weight use
// defaultWeight.
func WithWeightsFromConfig(weights map[string]float64, fallback float64) Option {
	return func(s *WeightedScorer) {
		for name, w := range weights {
			if _, known := s.weights[name]; known && w >= 0 {
				s.weights[name] = w
			}
		}
		if fallback > 0 {
			for name := range s.weights {
				if _, set := weights[name]; !set {
					s.weights[name] = fallback
				}
			}
		}
	}
}

// Input is an asset's latest metrics.
type Input struct {
	AssetID model.AssetID
	Metrics model.Metrics
}

// Result contains the computed score for an asset.
type Result struct {
	AssetID model.AssetID
	Score   float64
}

// Scorer computes a score from an input.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// WeightedScorer scores each metric on 0..100 and returns the weighted mean.
type WeightedScorer struct {
	weights map[string]float64
}

// NewWeightedScorer creates a scorer with equal weights unless options say
// otherwise.
func NewWeightedScorer(opts ...Option) *WeightedScorer {
	s := &WeightedScorer{
		weights: map[string]float64{
			MetricRewardRate:        defaultWeight,
			MetricCompletionRate:    defaultWeight,
			MetricContributionScore: defaultWeight,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes a score for the given input.
func (s *WeightedScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}

	parts := map[string]float64{
		MetricRewardRate:        fraction(in.Metrics.RewardRate),
		MetricCompletionRate:    float64(in.Metrics.CompletionRate) / model.MaxCompletionRate,
		MetricContributionScore: fraction(in.Metrics.ContributionScore),
	}

	var total, weightSum float64
	for name, v := range parts {
		w := s.weights[name]
		total += w * v
		weightSum += w
	}
	if weightSum == 0 {
		return Result{AssetID: in.AssetID}, nil
	}

	score := maxScoreValue * total / weightSum
	score = math.Max(0, math.Min(maxScoreValue, score))
	return Result{AssetID: in.AssetID, Score: score}, nil
}

// Weight returns the weight applied to a metric.
func (s *WeightedScorer) Weight(metric string) float64 {
	return s.weights[metric]
}

func fraction(v uint64) float64 {
	return math.Min(1, float64(v)/unitScale)
}
