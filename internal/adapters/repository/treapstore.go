package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then asset ID ASC. "less" means ranks earlier, so an
// in-order traversal yields the leaderboard from best to worst. Subtree
// sizes make rank queries O(log n).

// scoreScale fixes scores to 9 decimal places so equal scores compare equal.
const scoreScale = 1_000_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	switch {
	case math.IsNaN(x):
		return 0
	case x*scoreScale >= math.MaxInt64:
		return math.MaxInt64
	case x*scoreScale <= math.MinInt64:
		return math.MinInt64
	}
	return scoreFP(math.Round(x * scoreScale))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

type record struct {
	score scoreFP
	seq   uint64
}

type node struct {
	id    model.AssetID
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aScore scoreFP, aID model.AssetID, bScore scoreFP, bID model.AssetID) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// priority mixes the asset ID with the seed (splitmix64 finalizer).
func priority(id model.AssetID, seed uint64) uint64 {
	z := uint64(id) + seed + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func insert(n *node, fresh *node) *node {
	if n == nil {
		return fresh
	}
	if less(fresh.score, fresh.id, n.score, n.id) {
		n.left = insert(n.left, fresh)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, fresh)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id model.AssetID, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countBefore returns how many nodes rank strictly before (score, id).
func countBefore(n *node, score scoreFP, id model.AssetID) int {
	count := 0
	for n != nil {
		if less(n.score, n.id, score, id) {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{AssetID: n.id, Score: toFloat(n.score)})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore ranks assets by their latest score. Equal scores share a rank
// and the next distinct score skips ahead (1, 1, 3).
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[model.AssetID]record
	seed uint64
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{byID: make(map[model.AssetID]record)}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateRankedAssets(0)
	return s
}

// UpdateScore implements Store.UpdateScore in O(log n) expected time.
func (s *TreapStore) UpdateScore(_ context.Context, id model.AssetID, score float64, seq uint64) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	ns := toFixedPoint(score)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[id]; ok {
		if seq <= old.seq {
			return false, nil
		}
		if old.score == ns {
			s.byID[id] = record{score: ns, seq: seq}
			return true, nil
		}
		s.root = deleteNode(s.root, id, old.score)
	}
	s.byID[id] = record{score: ns, seq: seq}
	s.root = insert(s.root, &node{id: id, score: ns, prio: priority(id, s.seed), size: 1})

	metrics.UpdateRankedAssets(len(s.byID))
	return true, nil
}

// Rank returns the rank and score of an asset in O(log n).
func (s *TreapStore) Rank(_ context.Context, id model.AssetID) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	// Asset IDs start at 1, so (score, 0) sorts ahead of every asset that
	// shares the score: the count is the number of strictly better scores.
	better := countBefore(s.root, rec.score, 0)
	return Entry{Rank: better + 1, AssetID: id, Score: toFloat(rec.score)}, nil
}

// TopN returns the top N entries ordered by score desc.
func (s *TreapStore) TopN(_ context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &out)
	assignRanks(out)
	return out, nil
}

// Count returns the number of ranked assets.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// assignRanks gives entries in rank order competition ranks.
func assignRanks(entries []Entry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
