package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/xattr"
	satori "github.com/satori/go.uuid"
)

const (
	xattrBlockSize = "user.appendfs.block_size"
	xattrVersion   = "user.appendfs.version"
	xattrSession   = "user.appendfs.session"

	// fileFormatVersion is stamped into the block_size/version xattrs so a
	// future on-media format bump can refuse to open a file written by an
	// older build before a single block is even read, the same role the
	// core's own version field plays for individual blocks.
	fileFormatVersion = "1"
)

// File is a BlockStorage backend over a regular file or a raw block
// device node (an SD card or similar presented at e.g. /dev/sdb). Blocks
// are addressed by a plain byte offset of index*blockSize; the file is
// opened once and kept open for the life of the backend.
type File struct {
	f         *os.File
	blockSize int
}

// OpenFileOptions configures OpenFile.
type OpenFileOptions struct {
	// Create, if true, creates the file (and, via Truncate, sizes it) when
	// it does not already exist. Has no effect when path names a device
	// node, which always pre-exists.
	Create bool
	// Truncate sizes a newly created regular file to exactly
	// numBlocks*blockSize bytes. Ignored for device nodes, whose size is
	// fixed by the hardware.
	Truncate int64
}

// OpenFile opens path as a block-addressable File backend. The first open
// that finds no block-size xattr stamps the block size and format version
// xattrs; a later open checks the recorded block size against blockSize
// and reports a mismatch before any block I/O is attempted, catching a
// stale or foreign file early. The version xattr is stamped but not
// checked. Device nodes generally don't support user xattrs on Linux
// block devices themselves, so the check is skipped whenever reading the
// block-size xattr fails; that is not itself an error.
func OpenFile(path string, blockSize int, opts OpenFileOptions) (*File, error) {
	_, statErr := os.Stat(path)
	created := opts.Create && os.IsNotExist(statErr)
	flag := os.O_RDWR
	if opts.Create {
		flag |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", path, err)
	}

	if created && opts.Truncate > 0 {
		if err := f.Truncate(opts.Truncate); err != nil {
			f.Close()
			return nil, fmt.Errorf("storage: sizing %s to %d bytes: %w", path, opts.Truncate, err)
		}
	}

	if err := checkOrStampMetadata(f, blockSize); err != nil {
		f.Close()
		return nil, err
	}

	// A per-open session tag, distinct from the per-volume tag Format
	// embeds in the sentinel block's payload: this one identifies which
	// process last had the file open, for diagnosing "who touched this"
	// after the fact, and is refreshed on every open rather than once at
	// format time.
	session := satori.NewV4()
	_ = xattr.FSet(f, xattrSession, []byte(session.String()))

	return &File{f: f, blockSize: blockSize}, nil
}

func checkOrStampMetadata(f *os.File, blockSize int) error {
	existing, err := xattr.FGet(f, xattrBlockSize)
	if err != nil {
		// No metadata yet (new or foreign file, or xattrs unsupported by
		// the underlying filesystem/device): best-effort stamp it and move
		// on, since this check is a diagnostic convenience, not load-
		// bearing for correctness.
		_ = xattr.FSet(f, xattrBlockSize, []byte(fmt.Sprint(blockSize)))
		_ = xattr.FSet(f, xattrVersion, []byte(fileFormatVersion))
		return nil
	}
	if existing != nil && string(existing) != fmt.Sprint(blockSize) {
		return fmt.Errorf("storage: file was formatted with block size %s, opening with %d", existing, blockSize)
	}
	return nil
}

func (d *File) BlockSize() int { return d.blockSize }

func (d *File) ReadBlock(ctx context.Context, index uint64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(buf) != d.blockSize {
		return wrapIO("read", index, fmt.Errorf("buffer is %d bytes, want %d", len(buf), d.blockSize))
	}
	n, err := d.f.ReadAt(buf, int64(index)*int64(d.blockSize))
	if err != nil && n != len(buf) {
		return wrapIO("read", index, err)
	}
	return nil
}

func (d *File) WriteBlock(ctx context.Context, index uint64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(buf) != d.blockSize {
		return wrapIO("write", index, fmt.Errorf("buffer is %d bytes, want %d", len(buf), d.blockSize))
	}
	if _, err := d.f.WriteAt(buf, int64(index)*int64(d.blockSize)); err != nil {
		return wrapIO("write", index, err)
	}
	return d.sync(index)
}

// Close releases the underlying file handle.
func (d *File) Close() error {
	return d.f.Close()
}
