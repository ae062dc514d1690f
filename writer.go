package appendfs

import (
	"context"

	"github.com/sirupsen/logrus"
)

// BorrowPayload hands out a mutable view of the payload region of the
// scratch buffer (spec.md §4.5). The caller fills it in place; no copy is
// made. Calling BorrowPayload again before Commit simply re-borrows the
// same bytes still staged from the previous call.
func (fs *FS) BorrowPayload() []byte {
	fs.state = stateBuffered
	return fs.buf[:fs.PayloadSize()]
}

// Commit stamps the footer with (nextID, currentVersion) and writes the
// staged block to nextPos. On success it advances nextID and nextPos
// (spec.md §4.5). On a storage error the mount state is left exactly as it
// was; the caller may retry Commit with the buffer returned by a fresh
// BorrowPayload call, or simply call Commit again if the payload bytes are
// unchanged (the scratch buffer still holds them).
func (fs *FS) Commit(ctx context.Context) error {
	stampBlock(fs.buf, fs.nextID, currentVersion)

	rotating := fs.nextPos == fs.end-1
	if err := fs.st.WriteBlock(ctx, fs.nextPos, fs.buf); err != nil {
		return &WriteError{Pos: fs.nextPos, Err: err}
	}

	if rotating {
		fs.log.WithFields(logrus.Fields{"begin": fs.begin, "id": fs.nextID}).
			Info("appendfs: ring rotated, next write overwrites the oldest block")
	}

	fs.nextID++
	fs.nextPos = ringAdvance(fs.nextPos, fs.begin, fs.n, 1)
	fs.state = stateIdle
	return nil
}
