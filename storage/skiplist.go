package storage

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// SkipList decorates a BlockStorage with a bitset of physical indices to
// treat as permanently torn: reads and writes against a marked index fail
// with ErrIO without touching the underlying backend. This is the
// "skip-block list" decorator spec.md §1 names as a future collaborator
// outside the filesystem core; it ships here as a reference decorator, used
// in tests to simulate bad sectors and in the field to fence off blocks a
// lower-level driver has already condemned.
type SkipList struct {
	BlockStorage
	bad *bitset.BitSet
}

// NewSkipList wraps st with an initially-empty skip set sized for
// numBlocks physical indices.
func NewSkipList(st BlockStorage, numBlocks uint) *SkipList {
	return &SkipList{BlockStorage: st, bad: bitset.New(numBlocks)}
}

// Mark adds index to the skip set. Subsequent reads and writes against it
// fail until Unmark is called.
func (s *SkipList) Mark(index uint64) {
	s.bad.Set(uint(index))
}

// Unmark removes index from the skip set.
func (s *SkipList) Unmark(index uint64) {
	s.bad.Clear(uint(index))
}

// IsMarked reports whether index is currently in the skip set.
func (s *SkipList) IsMarked(index uint64) bool {
	return s.bad.Test(uint(index))
}

func (s *SkipList) ReadBlock(ctx context.Context, index uint64, buf []byte) error {
	if s.bad.Test(uint(index)) {
		return wrapIO("read", index, fmt.Errorf("block is on the skip list"))
	}
	return s.BlockStorage.ReadBlock(ctx, index, buf)
}

func (s *SkipList) WriteBlock(ctx context.Context, index uint64, buf []byte) error {
	if s.bad.Test(uint(index)) {
		return wrapIO("write", index, fmt.Errorf("block is on the skip list"))
	}
	return s.BlockStorage.WriteBlock(ctx, index, buf)
}
