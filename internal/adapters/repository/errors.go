package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("asset not ranked")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)
