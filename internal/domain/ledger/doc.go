// Package ledger is the in-memory asset registry and marketplace escrow.
//
// A Registry records who owns each asset, who may move it, its performance
// metrics and how profits paid against it are split. A Marketplace built on
// top of a Registry takes listed assets into custody and settles purchases
// through a funds.Sink. Both types share one lock; every mutation is atomic
// and lands in a bounded transaction journal with a sequence number.
package ledger
