package storage

import (
	"context"
	"fmt"
)

// RAM is an in-memory BlockStorage backing, useful for tests and for
// embedded callers that want the ring semantics without a real device
// underneath (e.g. a bounded in-process log). It has no durability: data
// does not survive process restart, which makes it unsuitable for the
// power-loss recovery scenarios it is otherwise used to test (those are
// exercised via CorruptBlock instead, see ram_test.go).
type RAM struct {
	blockSize int
	blocks    [][]byte
}

// NewRAM allocates a RAM backend with numBlocks blocks of blockSize bytes
// each, all zeroed (an all-zero block fails verifyBlock's crc and version
// checks, so a fresh RAM reads back as an empty region).
func NewRAM(numBlocks, blockSize int) *RAM {
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = make([]byte, blockSize)
	}
	return &RAM{blockSize: blockSize, blocks: blocks}
}

func (r *RAM) BlockSize() int { return r.blockSize }

func (r *RAM) ReadBlock(ctx context.Context, index uint64, buf []byte) error {
	if err := r.checkBounds(index, buf); err != nil {
		return wrapIO("read", index, err)
	}
	copy(buf, r.blocks[index])
	return nil
}

func (r *RAM) WriteBlock(ctx context.Context, index uint64, buf []byte) error {
	if err := r.checkBounds(index, buf); err != nil {
		return wrapIO("write", index, err)
	}
	copy(r.blocks[index], buf)
	return nil
}

func (r *RAM) checkBounds(index uint64, buf []byte) error {
	if int(index) >= len(r.blocks) {
		return fmt.Errorf("index %d out of range [0,%d)", index, len(r.blocks))
	}
	if len(buf) != r.blockSize {
		return fmt.Errorf("buffer is %d bytes, want %d", len(buf), r.blockSize)
	}
	return nil
}

// CorruptBlock flips a byte in the block's crc field, simulating a torn
// write for the torn-tail tolerance tests of spec.md §8 property 4. It
// bypasses the BlockStorage interface deliberately: production backends
// have no equivalent call, this exists only to construct test fixtures.
func (r *RAM) CorruptBlock(index uint64) {
	b := r.blocks[index]
	if len(b) == 0 {
		return
	}
	b[len(b)-1] ^= 0xFF
}
