package container

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// allocator owns the in-memory free-block bitmap and keeps it synchronized with the on-disk
// copy in the header block on every change. Bit=1 means the block is free.
type allocator struct {
	file       File
	log        *logrus.Logger
	blockSize  int64
	blockCount int64
	bits       *bitset.BitSet
}

func newAllocator(f File, log *logrus.Logger, blockSize, blockCount int64) *allocator {
	return &allocator{
		file:       f,
		log:        log,
		blockSize:  blockSize,
		blockCount: blockCount,
		bits:       bitset.New(uint(blockCount)),
	}
}

// loadAllocator reconstructs an allocator from the raw bitmap bytes stored at headerBitmapOffset.
func loadAllocator(f File, log *logrus.Logger, blockSize, blockCount int64, raw []byte) (*allocator, error) {
	a := newAllocator(f, log, blockSize, blockCount)
	want := bitmapByteLen(blockCount)
	if int64(len(raw)) != want {
		return nil, errors.Wrapf(ErrMalformed, "bitmap is %d bytes, expected %d", len(raw), want)
	}
	for i := int64(0); i < blockCount; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		if raw[byteIdx]&(1<<bitIdx) != 0 {
			a.bits.Set(uint(i))
		}
	}
	return a, nil
}

// toRaw serializes the bitmap to its on-disk representation: bit i of byte i/8 (LSB first),
// exactly bitmapByteLen(blockCount) bytes long.
func (a *allocator) toRaw() []byte {
	out := make([]byte, bitmapByteLen(a.blockCount))
	for i := int64(0); i < a.blockCount; i++ {
		if a.bits.Test(uint(i)) {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// persist writes the current bitmap to the header block's bitmap slice.
func (a *allocator) persist() error {
	if err := writeAt(a.file, headerBitmapOffset, a.toRaw()); err != nil {
		return errors.Wrap(err, "persisting free-block bitmap")
	}
	if a.log != nil {
		a.log.WithField("freeBlocks", a.countFree()).Debug("allocator: bitmap persisted")
	}
	return nil
}

// markUsed flips block index i to USED and persists immediately.
func (a *allocator) markUsed(i int64) error {
	a.bits.Clear(uint(i))
	return a.persist()
}

// markFree flips block index i to FREE and persists immediately.
func (a *allocator) markFree(i int64) error {
	a.bits.Set(uint(i))
	return a.persist()
}

// countFree returns the number of free blocks.
func (a *allocator) countFree() int {
	return int(a.bits.Count())
}

// allocate scans the bitmap from index 0, collecting the first n free blocks. On success, all
// chosen blocks are marked USED and the bitmap is persisted once before returning their byte
// offsets in ascending order of selection. Fails with ErrNoSpace without marking anything if
// fewer than n blocks are free (atomic w.r.t. success).
func (a *allocator) allocate(n int) ([]int64, error) {
	if n == 0 {
		return nil, nil
	}
	indices := make([]uint, 0, n)
	idx := uint(0)
	for len(indices) < n {
		next, ok := a.bits.NextSet(idx)
		if !ok {
			return nil, errors.Wrapf(ErrNoSpace, "need %d free blocks, found %d", n, len(indices))
		}
		indices = append(indices, next)
		idx = next + 1
	}

	positions := make([]int64, n)
	for i, blockIdx := range indices {
		a.bits.Clear(blockIdx)
		positions[i] = int64(blockIdx) * a.blockSize
	}
	if err := a.persist(); err != nil {
		return nil, err
	}
	if a.log != nil {
		a.log.WithField("positions", positions).Debug("allocator: allocated blocks")
	}
	return positions, nil
}

// free releases the blocks at the given byte offsets back to the pool, persisting the bitmap
// once after marking all of them free.
func (a *allocator) free(positions []int64) error {
	if len(positions) == 0 {
		return nil
	}
	for _, pos := range positions {
		a.bits.Set(uint(pos / a.blockSize))
	}
	if err := a.persist(); err != nil {
		return err
	}
	if a.log != nil {
		a.log.WithField("positions", positions).Debug("allocator: freed blocks")
	}
	return nil
}
