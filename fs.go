package appendfs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/appendfs/appendfs/storage"
)

// state is the writer side of the state machine from spec.md §4.5: Idle
// between writes, Buffered once a payload has been staged via
// BorrowPayload but not yet flushed via Commit.
type state int

const (
	stateIdle state = iota
	stateBuffered
)

// FS is a mounted filesystem instance: the facade of spec.md §4.7. It
// exclusively owns its Storage handle and a single block-sized scratch
// buffer; it is not safe for concurrent use (spec.md §5).
type FS struct {
	st         storage.BlockStorage
	begin, end uint64
	n          uint64
	blockSize  int

	nextPos uint64
	nextID  uint64
	state   state

	buf []byte // len == blockSize, the one and only scratch buffer
	log logrus.FieldLogger
}

// FormatOptions configures Format.
type FormatOptions struct {
	// Logger receives diagnostic output; defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// MountOptions configures Mount.
type MountOptions struct {
	// Logger receives diagnostic output; defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger
}

func validateRegion(st storage.BlockStorage, begin, end uint64) (blockSize int, err error) {
	if end <= begin || end-begin < 2 {
		return 0, ErrRegionTooSmall
	}
	blockSize = st.BlockSize()
	if blockSize < footerSize+4 {
		return 0, ErrInvalidBlockSize
	}
	return blockSize, nil
}

// Format writes a single sentinel block at begin with id=1, the empty
// payload bytes zeroed, and (opaque to the core, per spec.md §3) a freshly
// generated volume tag in the leading bytes of that payload if the payload
// is large enough to hold one. The rest of the region is left untouched;
// recovery does not require a zero-filled region (spec.md §4.7).
//
// After Format, Mount on the same region yields nextPos=begin+1, nextID=2.
func Format(ctx context.Context, st storage.BlockStorage, begin, end uint64, opts FormatOptions) error {
	blockSize, err := validateRegion(st, begin, end)
	if err != nil {
		return &MountError{Begin: begin, End: end, Err: err}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	buf := make([]byte, blockSize)
	payload := buf[:payloadSize(blockSize)]
	if len(payload) >= 16 {
		tag := uuid.New()
		copy(payload[:16], tag[:])
		log.WithFields(logrus.Fields{"begin": begin, "end": end, "volume": tag.String()}).
			Info("appendfs: formatting region")
	} else {
		log.WithFields(logrus.Fields{"begin": begin, "end": end}).
			Info("appendfs: formatting region (payload too small for a volume tag)")
	}
	stampBlock(buf, 1, currentVersion)

	if err := st.WriteBlock(ctx, begin, buf); err != nil {
		return fmt.Errorf("appendfs: format: writing sentinel block: %w", err)
	}
	return nil
}

// Mount runs the recovery search of spec.md §4.3 and returns a facade
// ready for BorrowPayload/Commit and Open. A freshly zeroed or never-formatted region mounts
// successfully as empty (spec.md §7: MountError::Empty is not an error).
func Mount(ctx context.Context, st storage.BlockStorage, begin, end uint64, opts MountOptions) (*FS, error) {
	blockSize, err := validateRegion(st, begin, end)
	if err != nil {
		return nil, &MountError{Begin: begin, End: end, Err: err}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	buf := make([]byte, blockSize)
	nextPos, nextID, err := recover(ctx, st, begin, end, buf)
	if err != nil {
		return nil, &MountError{Begin: begin, End: end, Err: err}
	}

	log.WithFields(logrus.Fields{
		"begin": begin, "end": end, "next_pos": nextPos, "next_id": nextID,
	}).Debug("appendfs: mounted")

	return &FS{
		st:        st,
		begin:     begin,
		end:       end,
		n:         end - begin,
		blockSize: blockSize,
		nextPos:   nextPos,
		nextID:    nextID,
		buf:       buf,
		log:       log,
	}, nil
}

// NextID returns the id that will be stamped on the next committed block.
func (fs *FS) NextID() uint64 { return fs.nextID }

// NextPos returns the physical block index the next Commit will write to.
func (fs *FS) NextPos() uint64 { return fs.nextPos }

// BlockSize returns B, the configured block size for this mount.
func (fs *FS) BlockSize() int { return fs.blockSize }

// PayloadSize returns B-F, the number of caller-usable bytes per block.
func (fs *FS) PayloadSize() int { return payloadSize(fs.blockSize) }
