// Package repository holds the ranked index of assets by performance score.
package repository

import (
	"context"

	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/internal/domain/types"
)

// Entry is a leaderboard row.
type Entry = types.Entry

// Store provides read/write access to the ranking state.
type Store interface {
	// UpdateScore records the latest score of an asset. seq is the ledger
	// sequence of the metrics update; updates with a seq not newer than the
	// stored one are ignored and report false.
	UpdateScore(ctx context.Context, id model.AssetID, score float64, seq uint64) (bool, error)

	// Rank returns the current rank and score of an asset.
	// Returns ErrNotFound if the asset has never been scored.
	Rank(ctx context.Context, id model.AssetID) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked assets.
	Count(ctx context.Context) int
}
