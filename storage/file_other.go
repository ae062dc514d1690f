//go:build !linux

package storage

import "fmt"

// sync flushes the block just written using the portable fsync(2).
// Linux gets the cheaper Fdatasync path in file_linux.go.
func (d *File) sync(index uint64) error {
	if err := d.f.Sync(); err != nil {
		return wrapIO("sync", index, err)
	}
	return nil
}

// DeviceSize is only meaningful against a real Linux block device node;
// elsewhere callers should size the region from the regular file's length.
func (d *File) DeviceSize() (int64, error) {
	return 0, fmt.Errorf("storage: DeviceSize is only supported on linux block devices")
}
