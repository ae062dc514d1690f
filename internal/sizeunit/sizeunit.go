// Package sizeunit parses the human-friendly byte-count flags the CLI
// front-ends accept for --block-size and similar options (e.g. "512",
// "4KB", "1MiB").
package sizeunit

import (
	"fmt"
	"strconv"
	"strings"
)

// Byte-count units, binary throughout: a "KB" here means 1024 bytes, not
// 1000, matching how block and sector sizes are actually quoted in storage
// tooling.
const (
	KB int64 = 1024
	MB int64 = 1024 * KB
	GB int64 = 1024 * MB
	TB int64 = 1024 * GB
)

var suffixes = []struct {
	suffix string
	factor int64
}{
	{"TB", TB}, {"TIB", TB},
	{"GB", GB}, {"GIB", GB},
	{"MB", MB}, {"MIB", MB},
	{"KB", KB}, {"KIB", KB},
	{"B", 1},
}

// Parse converts a byte-count string such as "512", "4KB", or "1.5MiB" into
// a plain byte count. The numeric part may be fractional; the result is
// truncated toward zero. An empty unit suffix means plain bytes.
func Parse(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	for _, u := range suffixes {
		if strings.HasSuffix(upper, u.suffix) {
			numPart := strings.TrimSpace(trimmed[:len(trimmed)-len(u.suffix)])
			if numPart == "" {
				return 0, fmt.Errorf("sizeunit: %q has a unit but no number", s)
			}
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("sizeunit: parsing %q: %w", s, err)
			}
			return int(n * float64(u.factor)), nil
		}
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("sizeunit: parsing %q: %w", s, err)
	}
	return n, nil
}
