package container

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-test/deep"
)

func newTestContainer(t *testing.T, blockSize, blockCount int64) (*Container, string) {
	t.Helper()
	name := filepath.Join(t.TempDir(), "test.cfs")
	c, err := CreateContainer(CreateOptions{
		Filename:      name,
		ContainerName: "test",
		BlockSize:     blockSize,
		BlockCount:    blockCount,
	})
	if err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, name
}

func TestCreateContainerReservesHeaderAndRoot(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	st, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.FreeBlocks != 4094 {
		t.Fatalf("FreeBlocks = %d, want 4094", st.FreeBlocks)
	}

	listing, err := c.ReadDirectory("/")
	if err != nil {
		t.Fatalf("ReadDirectory: %v", err)
	}
	if len(listing.Files) != 0 || len(listing.Directories) != 0 {
		t.Fatalf("root listing = %+v, want empty", listing)
	}
}

func TestWriteReadSmallFile(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	before, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("Hello, world!")
	if err := c.WriteFile("/", "hello.txt", payload); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := c.ReadFile("/", "hello.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadFile = %q, want %q", got, payload)
	}

	after, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if before.FreeBlocks-after.FreeBlocks != 1 {
		t.Fatalf("free blocks decreased by %d, want 1", before.FreeBlocks-after.FreeBlocks)
	}
}

func TestWriteReadOverflowFile(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	before, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte{'x'}, 10000)
	if err := c.WriteFile("/", "big.bin", payload); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := c.ReadFile("/", "big.bin")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadFile returned %d bytes, want %d matching", len(got), len(payload))
	}

	after, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if before.FreeBlocks-after.FreeBlocks != 3 {
		t.Fatalf("free blocks decreased by %d, want 3 (1 metadata + 2 overflow)", before.FreeBlocks-after.FreeBlocks)
	}
}

func TestRangedReadLaw(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	payload := bytes.Repeat([]byte{'a', 'b', 'c', 'd'}, 3000) // 12000 bytes, spans overflow
	if err := c.WriteFile("/", "ranged.bin", payload); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cases := []struct{ start, count int64 }{
		{0, 0},
		{0, 10},
		{3580, 20}, // straddles the metadata/overflow boundary
		{4000, 4096},
		{int64(len(payload)) - 5, 5},
		{0, int64(len(payload))},
	}
	for _, tc := range cases {
		got, err := c.ReadFileRange("/", "ranged.bin", tc.start, tc.count)
		if err != nil {
			t.Fatalf("ReadFileRange(%d,%d): %v", tc.start, tc.count, err)
		}
		want := payload[tc.start : tc.start+tc.count]
		if !bytes.Equal(got, want) {
			t.Fatalf("ReadFileRange(%d,%d) mismatch", tc.start, tc.count)
		}
	}

	if _, err := c.ReadFileRange("/", "ranged.bin", 0, int64(len(payload))+1); err == nil {
		t.Fatal("ReadFileRange beyond fullDataLength should fail")
	}
	if _, err := c.ReadFileRange("/", "ranged.bin", 5, -1); err == nil {
		t.Fatal("ReadFileRange with a negative count should fail, not panic on a negative slice bound")
	}
}

func TestNestedDirectoriesAndFile(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	if err := c.WriteDirectory("/a"); err != nil {
		t.Fatalf("WriteDirectory /a: %v", err)
	}
	if err := c.WriteDirectory("/a/b"); err != nil {
		t.Fatalf("WriteDirectory /a/b: %v", err)
	}
	if err := c.WriteFile("/a/b", "x.bin", []byte{0x42}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	listing, err := c.ReadDirectory("/a/b")
	if err != nil {
		t.Fatalf("ReadDirectory: %v", err)
	}
	want := []DirectoryEntry{{Name: "x.bin", Size: 1}}
	if diff := deep.Equal(listing.Files, want); diff != nil {
		t.Fatalf("ReadDirectory files diff: %v", diff)
	}
	if len(listing.Directories) != 0 {
		t.Fatalf("ReadDirectory directories = %v, want none", listing.Directories)
	}

	parentListing, err := c.ReadDirectory("/a")
	if err != nil {
		t.Fatalf("ReadDirectory /a: %v", err)
	}
	if diff := deep.Equal(parentListing.Directories, []string{"b"}); diff != nil {
		t.Fatalf("ReadDirectory /a directories diff: %v", diff)
	}
}

func TestDeleteDirectoryRequiresEmpty(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	before, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}

	if err := c.WriteDirectory("/a"); err != nil {
		t.Fatalf("WriteDirectory: %v", err)
	}
	if err := c.WriteFile("/a", "f", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := c.DeleteDirectory("/a"); err == nil {
		t.Fatal("DeleteDirectory on non-empty directory should fail")
	}

	if err := c.DeleteFile("/a", "f"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := c.DeleteDirectory("/a"); err != nil {
		t.Fatalf("DeleteDirectory: %v", err)
	}

	after, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if after.FreeBlocks != before.FreeBlocks {
		t.Fatalf("FreeBlocks = %d, want %d (restored)", after.FreeBlocks, before.FreeBlocks)
	}
}

func TestDeleteThenRewriteRestoresFreeBlocks(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	before, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("same length payload!!")
	if err := c.WriteFile("/", "f.bin", payload); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := c.DeleteFile("/", "f.bin"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := c.WriteFile("/", "f.bin", payload); err != nil {
		t.Fatalf("WriteFile (2nd): %v", err)
	}

	after, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if after.FreeBlocks != before.FreeBlocks-1 {
		t.Fatalf("FreeBlocks = %d, want %d", after.FreeBlocks, before.FreeBlocks-1)
	}
}

func TestNoSpaceThenRestored(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	before, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	initialFree := before.FreeBlocks

	// Each file consumes one metadata block; additionally, once the root directory's
	// child list outgrows its local payload capacity, every few hundred files also
	// consume an overflow block for the child list itself. So the exact count created
	// before NoSpace is reached is somewhat less than initialFree, not exactly equal.
	created := 0
	for i := int64(0); i < initialFree+10; i++ {
		name := "f" + strconv.FormatInt(i, 10)
		if err := c.WriteFile("/", name, []byte{byte(i)}); err != nil {
			if errors.Is(err, ErrNoSpace) {
				break
			}
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		created++
	}
	if created == 0 || int64(created) > initialFree {
		t.Fatalf("created %d files before NoSpace, want a positive count <= %d", created, initialFree)
	}

	for i := 0; i < created; i++ {
		name := "f" + strconv.Itoa(i)
		if err := c.DeleteFile("/", name); err != nil {
			t.Fatalf("DeleteFile(%s): %v", name, err)
		}
	}

	after, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if after.FreeBlocks != initialFree {
		t.Fatalf("FreeBlocks = %d, want %d (restored)", after.FreeBlocks, initialFree)
	}
}

func TestReopenPreservesFreeBlocks(t *testing.T) {
	c, name := newTestContainer(t, 4096, 4096)

	if err := c.WriteFile("/", "persisted.bin", bytes.Repeat([]byte{'z'}, 9000)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	before, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenContainer(OpenOptions{Filename: name})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	defer reopened.Close()

	after, err := reopened.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if after.FreeBlocks != before.FreeBlocks {
		t.Fatalf("FreeBlocks after reopen = %d, want %d", after.FreeBlocks, before.FreeBlocks)
	}

	got, err := reopened.ReadFile("/", "persisted.bin")
	if err != nil {
		t.Fatalf("ReadFile after reopen: %v", err)
	}
	if len(got) != 9000 {
		t.Fatalf("ReadFile after reopen returned %d bytes, want 9000", len(got))
	}
}

func TestFileNameMatchIsCaseInsensitive(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	if err := c.WriteFile("/", "Report.TXT", []byte("data")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := c.ReadFile("/", "report.txt"); err != nil {
		t.Fatalf("ReadFile with differing case: %v", err)
	}
}

func TestWriteFileRejectsCaseInsensitiveCollision(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	if err := c.WriteFile("/", "Report.TXT", []byte("data")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := c.WriteFile("/", "report.txt", []byte("other")); err == nil {
		t.Fatal("WriteFile with a name differing only by case should collide with the existing file")
	}
}

func TestDirectorySegmentMatchIsCaseSensitive(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	if err := c.WriteDirectory("/Docs"); err != nil {
		t.Fatalf("WriteDirectory: %v", err)
	}
	if _, _, err := c.findDirectory("/docs"); err == nil {
		t.Fatal("findDirectory with differing case should not resolve")
	}
}

func TestDotDotIsNotSupported(t *testing.T) {
	c, _ := newTestContainer(t, 4096, 4096)

	if err := c.WriteDirectory("/a"); err != nil {
		t.Fatalf("WriteDirectory /a: %v", err)
	}

	if err := c.WriteDirectory("/a/../b"); err == nil {
		t.Fatal("WriteDirectory with a \"..\" segment should fail, not create /b at the root")
	}
	if _, _, err := c.findDirectory("/b"); err == nil {
		t.Fatal("\"..\" segment must not have been silently resolved away, leaking /b into the root")
	}

	if err := c.WriteDirectory("/a/c"); err != nil {
		t.Fatalf("WriteDirectory /a/c: %v", err)
	}
	if err := c.DeleteDirectory("/a/../a/c"); err == nil {
		t.Fatal("DeleteDirectory with a \"..\" segment should fail, not resolve to /a/c")
	}
}

func TestCreateContainerRejectsBadParams(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.cfs")
	if _, err := CreateContainer(CreateOptions{Filename: name, BlockSize: 100, BlockCount: 4096}); err == nil {
		t.Fatal("expected error for undersized block size")
	}
	if _, err := os.Stat(name); err == nil {
		t.Fatal("file should not have been left behind by a failed precondition check")
	}
}

func TestCreateContainerRejectsBlockCountBeyondUint32(t *testing.T) {
	name := filepath.Join(t.TempDir(), "huge.cfs")
	// 2^32, a multiple of 4096 one past math.MaxUint32, paired with a blockSize that still
	// satisfies blockSize >= blockCount/4 so the uint32 bound is what actually trips.
	huge := int64(math.MaxUint32) + 1
	blockSize := huge / 4
	if _, err := CreateContainer(CreateOptions{Filename: name, BlockSize: blockSize, BlockCount: huge}); err == nil {
		t.Fatal("expected error for a block count that would be truncated by the uint32 header field")
	}
	if _, err := os.Stat(name); err == nil {
		t.Fatal("file should not have been left behind by a failed precondition check")
	}
}
