package container

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestAllocatorFile(t *testing.T, blockSize, blockCount int64) File {
	t.Helper()
	name := filepath.Join(t.TempDir(), "alloc.bin")
	f, err := os.Create(name)
	if err != nil {
		t.Fatalf("creating backing file: %v", err)
	}
	if err := f.Truncate(headerBitmapOffset + bitmapByteLen(blockCount)); err != nil {
		t.Fatalf("truncating backing file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestMarkUsedClearsBitAndPersists(t *testing.T) {
	f := newTestAllocatorFile(t, 4096, 64)
	a := newAllocator(f, nil, 4096, 64)
	for i := int64(0); i < 64; i++ {
		a.bits.Set(uint(i))
	}

	if err := a.markUsed(5); err != nil {
		t.Fatalf("markUsed: %v", err)
	}
	if a.bits.Test(5) {
		t.Fatal("block 5 should be marked used (bit cleared)")
	}
	if got, want := a.countFree(), 63; got != want {
		t.Fatalf("countFree = %d, want %d", got, want)
	}

	raw, err := readAt(f, headerBitmapOffset, int(bitmapByteLen(64)))
	if err != nil {
		t.Fatalf("reading persisted bitmap: %v", err)
	}
	reloaded, err := loadAllocator(f, nil, 4096, 64, raw)
	if err != nil {
		t.Fatalf("loadAllocator: %v", err)
	}
	if reloaded.bits.Test(5) {
		t.Fatal("markUsed must persist: reloaded bitmap still shows block 5 free")
	}
}

func TestMarkFreeSetsBitAndPersists(t *testing.T) {
	f := newTestAllocatorFile(t, 4096, 64)
	a := newAllocator(f, nil, 4096, 64)

	if err := a.markFree(7); err != nil {
		t.Fatalf("markFree: %v", err)
	}
	if !a.bits.Test(7) {
		t.Fatal("block 7 should be marked free (bit set)")
	}
	if got, want := a.countFree(), 1; got != want {
		t.Fatalf("countFree = %d, want %d", got, want)
	}

	raw, err := readAt(f, headerBitmapOffset, int(bitmapByteLen(64)))
	if err != nil {
		t.Fatalf("reading persisted bitmap: %v", err)
	}
	reloaded, err := loadAllocator(f, nil, 4096, 64, raw)
	if err != nil {
		t.Fatalf("loadAllocator: %v", err)
	}
	if !reloaded.bits.Test(7) {
		t.Fatal("markFree must persist: reloaded bitmap still shows block 7 used")
	}
}

func TestMarkUsedThenMarkFreeRoundTrips(t *testing.T) {
	f := newTestAllocatorFile(t, 4096, 8)
	a := newAllocator(f, nil, 4096, 8)
	for i := int64(0); i < 8; i++ {
		a.bits.Set(uint(i))
	}

	if err := a.markUsed(3); err != nil {
		t.Fatalf("markUsed: %v", err)
	}
	if err := a.markFree(3); err != nil {
		t.Fatalf("markFree: %v", err)
	}
	if !a.bits.Test(3) {
		t.Fatal("block 3 should be free again after markUsed then markFree")
	}
	if got, want := a.countFree(), 8; got != want {
		t.Fatalf("countFree = %d, want %d", got, want)
	}
}
