package appendfs

import (
	"context"
	"fmt"

	"github.com/appendfs/appendfs/storage"
)

// recover implements spec.md §4.3: locate the head of the ring in
// O(log N) storage reads and derive the post-mount state (nextPos, nextID).
//
// buf is a caller-owned scratch buffer of exactly st.BlockSize() bytes,
// reused for every probe; recover never allocates.
func recover(ctx context.Context, st storage.BlockStorage, begin, end uint64, buf []byte) (nextPos, nextID uint64, err error) {
	n := end - begin

	readAt := func(pos uint64) (id uint64, ok bool, err error) {
		if err := st.ReadBlock(ctx, pos, buf); err != nil {
			return 0, false, err
		}
		id, _, ok = verifyBlock(buf)
		return id, ok, nil
	}

	idBegin, okBegin, err := readAt(begin)
	if err != nil {
		return 0, 0, fmt.Errorf("probing begin: %w", err)
	}
	idEnd, okEnd, err := readAt(end - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("probing end-1: %w", err)
	}

	switch {
	case !okBegin && !okEnd:
		// Empty region (spec.md §4.3 step 2).
		return begin, 1, nil

	case okBegin && !okEnd:
		// Unwrapped: [begin, begin+k) valid, [begin+k, end) empty.
		// Binary search the largest valid index in [begin, end).
		lo, hi := begin, end-1 // lo valid, hi invalid
		loID := idBegin
		for hi-lo > 1 {
			mid := lo + (hi-lo)/2
			id, ok, err := readAt(mid)
			if err != nil {
				return 0, 0, fmt.Errorf("probing %d: %w", mid, err)
			}
			if ok {
				lo, loID = mid, id
			} else {
				hi = mid
			}
		}
		return ringAdvance(lo, begin, n, 1), loID + 1, nil

	case okBegin && okEnd:
		// Wrapped: every position holds a valid block. Find the seam: the
		// largest p with id(p) >= idBegin, walking forward from begin.
		if idEnd >= idBegin {
			// No drop anywhere in the range: head is end-1 (spec.md §4.3
			// step 4 tie-break).
			return ringAdvance(end-1, begin, n, 1), idEnd + 1, nil
		}
		lo, hi := begin, end-1 // id(lo) >= idBegin (trivially, lo==begin); id(hi) < idBegin
		loID := idBegin
		torn := false
		for hi-lo > 1 {
			mid := lo + (hi-lo)/2
			id, ok, err := readAt(mid)
			if err != nil {
				return 0, 0, fmt.Errorf("probing %d: %w", mid, err)
			}
			if !ok {
				// The failure model (spec.md §4.5, glossary "torn block")
				// guarantees at most one invalid block in a wrapped ring,
				// and it can only be the position one past the true head
				// (the in-flight write interrupted by power loss). Since
				// the torn block is past the true head, it is treated as
				// the far side of the seam (hi moves to it), which
				// converges the search onto the true head exactly as if
				// the torn write had never been attempted.
				// A second invalid probe in the same mount is not
				// explainable by that model and is reported as corruption.
				if torn {
					return 0, 0, fmt.Errorf("%w: more than one invalid block found in a wrapped region", ErrCorrupted)
				}
				torn = true
				hi = mid
				continue
			}
			if id >= idBegin {
				lo, loID = mid, id
			} else {
				hi = mid
			}
		}
		return ringAdvance(lo, begin, n, 1), loID + 1, nil

	default: // !okBegin && okEnd
		// begin invalid, end-1 valid: the ring has completed at least one
		// full pass and the write that started the next pass at begin was
		// torn. The torn block is one past the true head, which is end-1.
		return ringAdvance(end-1, begin, n, 1), idEnd + 1, nil
	}
}
