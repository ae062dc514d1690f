package appendfs

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Reader iterates a mounted region's blocks in age order, oldest first,
// across the seam if the ring has wrapped (spec.md §4.6).
type Reader struct {
	st        fsReader
	begin, n  uint64
	blockSize int
	cur       uint64
	remaining uint64
	log       logrus.FieldLogger
}

// fsReader is the subset of storage.BlockStorage the Reader needs; kept as
// a local interface so Reader doesn't import the storage package's full
// surface, mirroring the narrow internal interfaces the teacher favors
// (e.g. util.File).
type fsReader interface {
	ReadBlock(ctx context.Context, index uint64, buf []byte) error
}

// Open snapshots the facade's current (nextPos, nextID) and returns a
// Reader that will walk from the oldest surviving block up to and
// including the block most recently committed at the time of this call.
// Writes committed after Open are not observed by this Reader.
func (fs *FS) Open() *Reader {
	return &Reader{
		st:        fs.st,
		begin:     fs.begin,
		n:         fs.n,
		blockSize: fs.blockSize,
		cur:       fs.nextPos,
		remaining: fs.n,
		log:       fs.log,
	}
}

// Next reads the next block in age order into buf, which must be exactly
// blockSize bytes (the same size the mount was configured with). It
// returns the decoded id and a slice of buf holding the payload. Invalid
// or empty blocks encountered along the way (the unwrapped region's empty
// tail, or a single torn block) are skipped with a Warn-level log line, not
// surfaced as an error (spec.md §4.6, §7). Next returns io.EOF once the
// reader has consumed up to and including the snapshot head.
func (r *Reader) Next(ctx context.Context, buf []byte) (id uint64, payload []byte, err error) {
	if len(buf) != r.blockSize {
		return 0, nil, fmt.Errorf("appendfs: read buffer is %d bytes, want %d", len(buf), r.blockSize)
	}
	for r.remaining > 0 {
		pos := r.cur
		r.cur = ringAdvance(pos, r.begin, r.n, 1)
		r.remaining--

		if err := r.st.ReadBlock(ctx, pos, buf); err != nil {
			return 0, nil, fmt.Errorf("%w: reading block %d: %v", ErrIO, pos, err)
		}
		id, _, ok := verifyBlock(buf)
		if !ok {
			r.log.WithField("pos", pos).Warn("appendfs: skipping invalid block during read")
			continue
		}
		return id, buf[:payloadSize(len(buf))], nil
	}
	return 0, nil, io.EOF
}
