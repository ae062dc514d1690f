// Command appendfs-writer reads stdin and commits it to an appendfs region
// one block at a time, per spec.md §6. It is a CLI front-end, an external
// collaborator to the filesystem core, not part of it (spec.md §1).
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"

	"github.com/appendfs/appendfs"
	"github.com/appendfs/appendfs/internal/sizeunit"
	"github.com/appendfs/appendfs/storage"
)

const (
	exitOK = iota
	exitIO
	exitMount
	exitUsage
)

// compressHeaderSize is the CLI-private sub-format --compress uses inside
// the otherwise-opaque payload: 1 flag byte (1 = lz4-compressed) followed
// by a 4-byte little-endian compressed length. The core never interprets
// this; it is purely a convention between appendfs-writer and
// appendfs-reader --compressed.
const compressHeaderSize = 5

func main() {
	os.Exit(run(os.Args[1:], os.Stdin))
}

func run(args []string, stdin *os.File) int {
	fset := flag.NewFlagSet("appendfs-writer", flag.ContinueOnError)
	device := fset.String("device", "", "path to the backing file or block device")
	beginBlock := fset.Uint64("begin-block", 0, "first physical block of the region")
	endBlock := fset.Uint64("end-block", 0, "one past the last physical block of the region")
	blockSizeFlag := fset.String("block-size", "512", "block size, e.g. 512, 4KB, 1MiB")
	formatOnly := fset.Bool("format-only", false, "format the region and exit without reading stdin")
	compress := fset.Bool("compress", false, "lz4-compress each record before committing it")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	if *device == "" || *endBlock <= *beginBlock {
		fmt.Fprintln(os.Stderr, "usage: appendfs-writer --device PATH --begin-block N --end-block M [--block-size B] [--format-only] [--compress]")
		return exitUsage
	}
	blockSize, err := sizeunit.Parse(*blockSizeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	ctx := context.Background()
	dev, err := storage.OpenFile(*device, blockSize, storage.OpenFileOptions{
		Create:   true,
		Truncate: int64(*endBlock) * int64(blockSize),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	defer dev.Close()

	if err := appendfs.Format(ctx, dev, *beginBlock, *endBlock, appendfs.FormatOptions{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var me *appendfs.MountError
		if errors.As(err, &me) {
			return exitMount
		}
		return exitIO
	}
	if *formatOnly {
		return exitOK
	}

	fs, err := appendfs.Mount(ctx, dev, *beginBlock, *endBlock, appendfs.MountOptions{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitMount
	}

	payloadSize := fs.PayloadSize()
	chunkSize := payloadSize
	if *compress {
		chunkSize = payloadSize - compressHeaderSize
	}

	r := bufio.NewReader(stdin)
	chunk := make([]byte, chunkSize)
	hashTable := make([]int, 1<<16)
	compressed := make([]byte, lz4.CompressBlockBound(chunkSize))

	for {
		n, readErr := io.ReadFull(r, chunk)
		if n == 0 {
			break
		}
		for i := n; i < len(chunk); i++ {
			chunk[i] = 0
		}

		payload := fs.BorrowPayload()
		if *compress {
			stampCompressedPayload(payload, chunk, compressed, hashTable)
		} else {
			copy(payload, chunk)
		}

		if err := fs.Commit(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}

		if readErr != nil {
			break
		}
	}

	return exitOK
}

// stampCompressedPayload writes the --compress sub-format described above
// payload's length, falling back to storing raw bytes when lz4 does not
// shrink this particular chunk enough to fit the header.
func stampCompressedPayload(payload, chunk, scratch []byte, hashTable []int) {
	n, err := lz4.CompressBlock(chunk, scratch, hashTable)
	if err == nil && n > 0 && n+compressHeaderSize <= len(payload) {
		payload[0] = 1
		putUint32(payload[1:5], uint32(n))
		copy(payload[compressHeaderSize:], scratch[:n])
		for i := compressHeaderSize + n; i < len(payload); i++ {
			payload[i] = 0
		}
		return
	}
	payload[0] = 0
	putUint32(payload[1:5], uint32(len(chunk)))
	copy(payload[compressHeaderSize:], chunk)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true})
}
