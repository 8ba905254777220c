package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/modelmarket/internal/domain/model"
)

const defaultJournalLimit = 10_000

// journal is the totally ordered log of committed operations. It is guarded
// by the registry's lock.
type journal struct {
	entries []model.Tx
	limit   int
	seq     uint64
}

func newJournal(limit int) *journal {
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	return &journal{limit: limit}
}

// append records a committed operation and returns its entry.
func (j *journal) append(op string, caller model.Address, id model.AssetID) model.Tx {
	j.seq++
	tx := model.Tx{
		Seq:     j.seq,
		ID:      uuid.New(),
		Op:      op,
		Caller:  caller,
		AssetID: id,
		At:      time.Now().UTC(),
	}
	j.entries = append(j.entries, tx)
	// Trim in bulk so the backing array is not copied on every append.
	if len(j.entries) >= 2*j.limit {
		j.entries = append(make([]model.Tx, 0, 2*j.limit), j.entries[len(j.entries)-j.limit:]...)
	}
	return tx
}

// since returns up to limit retained entries with Seq > after.
func (j *journal) since(after uint64, limit int) []model.Tx {
	retained := j.entries
	if len(retained) > j.limit {
		retained = retained[len(retained)-j.limit:]
	}
	out := make([]model.Tx, 0)
	for _, tx := range retained {
		if tx.Seq <= after {
			continue
		}
		out = append(out, tx)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (j *journal) len() int {
	if len(j.entries) > j.limit {
		return j.limit
	}
	return len(j.entries)
}
