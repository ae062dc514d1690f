// Package appendfs implements an append-only, log-structured ring-buffer
// filesystem for block-addressable storage (flash, SD cards, or plain
// files) on memory-constrained devices. It persists a stream of
// fixed-size blocks on a bounded region, overwriting the oldest block once
// the region fills, and recovers the write head after a power loss in
// O(log N) storage reads rather than a full scan.
//
// The filesystem has no heap beyond one block-sized scratch buffer per
// mounted instance, no background goroutines, and no locking: a *FS is
// single-threaded and synchronous by design (see Format, Mount).
package appendfs
