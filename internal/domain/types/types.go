// Package types contains common types used across the application
package types

import "github.com/okian/modelmarket/internal/domain/model"

// Entry represents a performance leaderboard entry
type Entry struct {
	Rank    int           `json:"rank"`
	AssetID model.AssetID `json:"asset_id"`
	Score   float64       `json:"score"`
}
