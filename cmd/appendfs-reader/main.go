// Command appendfs-reader iterates a mounted appendfs region oldest-to-newest
// and writes each recovered record to stdout, per spec.md §6.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

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

const compressHeaderSize = 5

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fset := flag.NewFlagSet("appendfs-reader", flag.ContinueOnError)
	device := fset.String("device", "", "path to the backing file or block device")
	beginBlock := fset.Uint64("begin-block", 0, "first physical block of the region")
	endBlock := fset.Uint64("end-block", 0, "one past the last physical block of the region")
	blockSizeFlag := fset.String("block-size", "512", "block size, e.g. 512, 4KB, 1MiB")
	compressed := fset.Bool("compressed", false, "records were written with appendfs-writer --compress")
	exportXZ := fset.String("export-xz", "", "write the decoded stream to this path, xz-compressed, instead of stdout")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	if *device == "" || *endBlock <= *beginBlock {
		fmt.Fprintln(os.Stderr, "usage: appendfs-reader --device PATH --begin-block N --end-block M [--block-size B] [--compressed] [--export-xz PATH]")
		return exitUsage
	}
	blockSize, err := sizeunit.Parse(*blockSizeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	ctx := context.Background()
	dev, err := storage.OpenFile(*device, blockSize, storage.OpenFileOptions{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIO
	}
	defer dev.Close()

	fs, err := appendfs.Mount(ctx, dev, *beginBlock, *endBlock, appendfs.MountOptions{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitMount
	}

	out := stdout
	var xzw *xz.Writer
	var outFile *os.File
	if *exportXZ != "" {
		outFile, err = os.Create(*exportXZ)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}
		defer outFile.Close()
		xzw, err = xz.NewWriter(outFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}
		defer xzw.Close()
		out = xzw
	}

	rd := fs.Open()
	buf := make([]byte, fs.BlockSize())
	scratch := make([]byte, fs.PayloadSize())
	for {
		_, payload, err := rd.Next(ctx, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}

		record := payload
		if *compressed {
			record, err = decodeCompressedPayload(payload, scratch)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return exitIO
			}
		}
		if _, err := out.Write(record); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitIO
		}
	}

	return exitOK
}

// decodeCompressedPayload reverses the --compress sub-format appendfs-writer
// stamps into the payload: a flag byte, a 4-byte little-endian length, and
// either the raw or lz4-compressed record.
func decodeCompressedPayload(payload, scratch []byte) ([]byte, error) {
	if len(payload) < compressHeaderSize {
		return nil, fmt.Errorf("appendfs-reader: payload too small for --compressed header")
	}
	flagByte := payload[0]
	n := uint32(payload[1]) | uint32(payload[2])<<8 | uint32(payload[3])<<16 | uint32(payload[4])<<24
	body := payload[compressHeaderSize:]
	if flagByte == 0 {
		if int(n) > len(body) {
			return nil, fmt.Errorf("appendfs-reader: stored length %d exceeds payload", n)
		}
		return body[:n], nil
	}
	m, err := lz4.UncompressBlock(body[:n], scratch)
	if err != nil {
		return nil, fmt.Errorf("appendfs-reader: lz4 decompress: %w", err)
	}
	return scratch[:m], nil
}
