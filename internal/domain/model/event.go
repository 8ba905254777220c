package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a committed ledger change.
type EventKind string

// Event kinds emitted by the ledger.
const (
	EventMinted             EventKind = "minted"
	EventTransfer           EventKind = "transfer"
	EventApproval           EventKind = "approval"
	EventApprovalForAll     EventKind = "approval_for_all"
	EventMetricsUpdated     EventKind = "metrics_updated"
	EventProfitConfigSet    EventKind = "profit_config_set"
	EventProfitsDistributed EventKind = "profits_distributed"
	EventListed             EventKind = "listed"
	EventListingCancelled   EventKind = "listing_cancelled"
	EventSold               EventKind = "sold"
)

// Event is a notification about a committed operation. Only the fields
// relevant to Kind are set.
type Event struct {
	Seq      uint64    `json:"seq"`
	TxID     uuid.UUID `json:"tx_id"`
	Kind     EventKind `json:"kind"`
	AssetID  AssetID   `json:"asset_id,omitempty"`
	Caller   Address   `json:"caller,omitempty"`
	From     Address   `json:"from,omitempty"`
	To       Address   `json:"to,omitempty"`
	Amount   Amount    `json:"amount,omitempty"`
	URI      string    `json:"uri,omitempty"`
	Approved bool      `json:"approved,omitempty"`
	Metrics  *Metrics  `json:"metrics,omitempty"`
	Payouts  []Payout  `json:"payouts,omitempty"`
	At       time.Time `json:"at"`
}

// Tx is one entry of the transaction journal.
type Tx struct {
	Seq     uint64    `json:"seq"`
	ID      uuid.UUID `json:"id"`
	Op      string    `json:"op"`
	Caller  Address   `json:"caller,omitempty"`
	AssetID AssetID   `json:"asset_id,omitempty"`
	At      time.Time `json:"at"`
}
