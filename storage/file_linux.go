//go:build linux

package storage

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sync flushes the block just written. The Storage trait assumes
// per-block durability with no separate flush call (spec.md §4.1), so
// every WriteBlock pays for it directly; Fdatasync skips the inode
// metadata half of fsync(2) since block contents, not file size or mtime,
// are what recovery depends on.
func (d *File) sync(index uint64) error {
	if err := unix.Fdatasync(int(d.f.Fd())); err != nil {
		return wrapIO("sync", index, err)
	}
	return nil
}

// DeviceSize returns the size in bytes of the block device node backing
// d, via the BLKGETSIZE64 ioctl. A caller can derive an end-block bound
// for real flash/SD devices (spec.md §1) from it rather than already
// knowing the device's capacity; the bundled CLI front-ends do not call
// it. Returns an error if path is a regular file rather than a block
// device.
func (d *File) DeviceSize() (int64, error) {
	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, fmt.Errorf("storage: BLKGETSIZE64: %w", errno)
	}
	return int64(size), nil
}
