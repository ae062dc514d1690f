package appendfs

import (
	"context"
	"testing"

	"github.com/go-test/deep"

	"github.com/appendfs/appendfs/storage"
)

// countingStorage wraps a storage.BlockStorage and counts reads, the
// "instrumented mock storage" spec.md §8 property 3 calls for.
type countingStorage struct {
	storage.BlockStorage
	reads int
}

func (c *countingStorage) ReadBlock(ctx context.Context, index uint64, buf []byte) error {
	c.reads++
	return c.BlockStorage.ReadBlock(ctx, index, buf)
}

func writePayload(t *testing.T, fs *FS, s string) {
	t.Helper()
	p := fs.BorrowPayload()
	copy(p, s)
	for i := len(s); i < len(p); i++ {
		p[i] = s[len(s)-1]
	}
	if err := fs.Commit(context.Background()); err != nil {
		t.Fatalf("Commit(%q): %v", s, err)
	}
}

// S1: Empty region [0,4). Mount -> (pos=0, id=1). Reader yields 0 records.
func TestScenarioS1Empty(t *testing.T) {
	ctx := context.Background()
	st := storage.NewRAM(4, 512)

	fs, err := Mount(ctx, st, 0, 4, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if fs.NextPos() != 0 || fs.NextID() != 1 {
		t.Fatalf("got (pos=%d,id=%d), want (pos=0,id=1)", fs.NextPos(), fs.NextID())
	}

	r := fs.Open()
	buf := make([]byte, 512)
	if _, _, err := r.Next(ctx, buf); err == nil {
		t.Fatalf("Next: expected io.EOF on an empty region, got a record")
	}
}

// S2: Unwrapped. Write A, B, C into [0,8). Remount -> pos=3, id=4.
// Reader yields A, B, C.
func TestScenarioS2Unwrapped(t *testing.T) {
	ctx := context.Background()
	st := storage.NewRAM(8, 512)

	fs, err := Mount(ctx, st, 0, 8, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	for _, s := range []string{"AAAA", "BBBB", "CCCC"} {
		writePayload(t, fs, s)
	}

	fs2, err := Mount(ctx, st, 0, 8, MountOptions{})
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	if fs2.NextPos() != 3 || fs2.NextID() != 4 {
		t.Fatalf("got (pos=%d,id=%d), want (pos=3,id=4)", fs2.NextPos(), fs2.NextID())
	}

	r := fs2.Open()
	buf := make([]byte, 512)
	var got []byte
	for _, want := range []byte{'A', 'B', 'C'} {
		id, payload, err := r.Next(ctx, buf)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, payload[0])
		_ = id
		if payload[0] != want {
			t.Fatalf("payload[0] = %q, want %q", payload[0], want)
		}
	}
	if _, _, err := r.Next(ctx, buf); err == nil {
		t.Fatalf("Next: expected io.EOF after 3 records")
	}
}

// S3: Exactly full. Write 8 payloads into [0,8). Remount -> pos=0, id=9.
// Reader yields payloads 1..8 in order.
func TestScenarioS3ExactlyFull(t *testing.T) {
	ctx := context.Background()
	st := storage.NewRAM(8, 512)

	fs, err := Mount(ctx, st, 0, 8, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	for i := 1; i <= 8; i++ {
		writePayload(t, fs, string(rune('0'+i)))
	}

	fs2, err := Mount(ctx, st, 0, 8, MountOptions{})
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	if fs2.NextPos() != 0 || fs2.NextID() != 9 {
		t.Fatalf("got (pos=%d,id=%d), want (pos=0,id=9)", fs2.NextPos(), fs2.NextID())
	}

	r := fs2.Open()
	buf := make([]byte, 512)
	for i := 1; i <= 8; i++ {
		_, payload, err := r.Next(ctx, buf)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if want := byte('0' + i); payload[0] != want {
			t.Fatalf("record %d: payload[0] = %q, want %q", i, payload[0], want)
		}
	}
	if _, _, err := r.Next(ctx, buf); err == nil {
		t.Fatalf("Next: expected io.EOF after 8 records")
	}
}

// S4: Wrapped. Write 10 payloads into [0,8). Remount -> pos=2, id=11.
// Reader yields payloads 3..10 in order.
func TestScenarioS4Wrapped(t *testing.T) {
	ctx := context.Background()
	st := storage.NewRAM(8, 512)

	fs, err := Mount(ctx, st, 0, 8, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	for i := 1; i <= 10; i++ {
		writePayload(t, fs, string(rune('A'-1+i)))
	}

	fs2, err := Mount(ctx, st, 0, 8, MountOptions{})
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	if fs2.NextPos() != 2 || fs2.NextID() != 11 {
		t.Fatalf("got (pos=%d,id=%d), want (pos=2,id=11)", fs2.NextPos(), fs2.NextID())
	}

	r := fs2.Open()
	buf := make([]byte, 512)
	for i := 3; i <= 10; i++ {
		id, payload, err := r.Next(ctx, buf)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if want := uint64(i); id != want {
			t.Fatalf("record %d: id = %d, want %d", i, id, want)
		}
		if want := byte('A' - 1 + i); payload[0] != want {
			t.Fatalf("record %d: payload[0] = %q, want %q", i, payload[0], want)
		}
	}
	if _, _, err := r.Next(ctx, buf); err == nil {
		t.Fatalf("Next: expected io.EOF after 8 records")
	}
}

// S5: Torn tail. Perform S4, then corrupt the physical block holding
// id=10 (position 1). Remount -> pos=1, id=10. Reader yields payloads 3..9.
func TestScenarioS5TornTail(t *testing.T) {
	ctx := context.Background()
	st := storage.NewRAM(8, 512)

	fs, err := Mount(ctx, st, 0, 8, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	for i := 1; i <= 10; i++ {
		writePayload(t, fs, string(rune('A'-1+i)))
	}

	st.CorruptBlock(1) // holds id=10 after S4's writes

	fs2, err := Mount(ctx, st, 0, 8, MountOptions{})
	if err != nil {
		t.Fatalf("remount after torn tail: %v", err)
	}
	if fs2.NextPos() != 1 || fs2.NextID() != 10 {
		t.Fatalf("got (pos=%d,id=%d), want (pos=1,id=10)", fs2.NextPos(), fs2.NextID())
	}

	r := fs2.Open()
	buf := make([]byte, 512)
	for i := 3; i <= 9; i++ {
		id, payload, err := r.Next(ctx, buf)
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if diff := deep.Equal(id, uint64(i)); diff != nil {
			t.Fatalf("record %d id mismatch: %v", i, diff)
		}
		if want := byte('A' - 1 + i); payload[0] != want {
			t.Fatalf("record %d: payload[0] = %q, want %q", i, payload[0], want)
		}
	}
	if _, _, err := r.Next(ctx, buf); err == nil {
		t.Fatalf("Next: expected io.EOF after 7 surviving records")
	}
}

// S6: Recovery read-count. Region [0,1024). Instrumented mount must issue
// <=13 reads regardless of head position.
func TestScenarioS6RecoveryReadCount(t *testing.T) {
	ctx := context.Background()

	for _, writes := range []int{0, 1, 500, 1023, 1024, 1025, 5000} {
		ram := storage.NewRAM(1024, 512)
		fs, err := Mount(ctx, ram, 0, 1024, MountOptions{})
		if err != nil {
			t.Fatalf("initial mount (writes=%d): %v", writes, err)
		}
		for i := 0; i < writes; i++ {
			writePayload(t, fs, "x")
		}

		counted := &countingStorage{BlockStorage: ram}
		if _, err := Mount(ctx, counted, 0, 1024, MountOptions{}); err != nil {
			t.Fatalf("instrumented remount (writes=%d): %v", writes, err)
		}
		if counted.reads > 13 {
			t.Fatalf("writes=%d: mount issued %d reads, want <=13", writes, counted.reads)
		}
	}
}

// Monotone ids across the seam: scanning the ring in physical order
// reveals at most one id-drop.
func TestMonotoneIdsAcrossSeam(t *testing.T) {
	ctx := context.Background()
	st := storage.NewRAM(6, 512)
	fs, err := Mount(ctx, st, 0, 6, MountOptions{})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	for i := 0; i < 15; i++ {
		writePayload(t, fs, "x")
	}

	buf := make([]byte, 512)
	drops := 0
	var prevID uint64
	havePrev := false
	for pos := uint64(0); pos < 6; pos++ {
		if err := st.ReadBlock(ctx, pos, buf); err != nil {
			t.Fatalf("ReadBlock(%d): %v", pos, err)
		}
		id, _, ok := verifyBlock(buf)
		if !ok {
			t.Fatalf("position %d: expected a valid block after 15 writes into a 6-block ring", pos)
		}
		if havePrev && id < prevID {
			drops++
		}
		prevID = id
		havePrev = true
	}
	if drops > 1 {
		t.Fatalf("found %d id-drops scanning physical order, want at most 1", drops)
	}
}

// MountError on a too-small region (spec.md §9 open question, resolved).
func TestMountRejectsTooSmallRegion(t *testing.T) {
	ctx := context.Background()
	st := storage.NewRAM(4, 512)

	if _, err := Mount(ctx, st, 0, 1, MountOptions{}); err == nil {
		t.Fatalf("Mount: expected an error for a region of length 1")
	}
	if _, err := Mount(ctx, st, 2, 2, MountOptions{}); err == nil {
		t.Fatalf("Mount: expected an error for an empty region")
	}
}
