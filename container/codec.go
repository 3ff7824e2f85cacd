package container

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// File is the storage handle a Container operates on. *os.File satisfies this; tests may
// substitute any in-memory implementation that supports the same random-access contract.
type File interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Close() error
}

// readAt seeks to an absolute byte offset and reads exactly count bytes, failing with
// ErrShortRead if the underlying file returns fewer.
func readAt(f File, position int64, count int) ([]byte, error) {
	if count == 0 {
		return nil, nil
	}
	buf := make([]byte, count)
	n, err := f.ReadAt(buf, position)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "reading %d bytes at offset %d", count, position)
	}
	if n != count {
		return nil, errors.Wrapf(ErrShortRead, "read %d of %d bytes at offset %d", n, count, position)
	}
	return buf, nil
}

// writeAt seeks to an absolute byte offset and writes b in full. A no-op for empty input.
func writeAt(f File, position int64, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := f.WriteAt(b, position)
	if err != nil {
		return errors.Wrapf(err, "writing %d bytes at offset %d", len(b), position)
	}
	if n != len(b) {
		return errors.Wrapf(ErrShortWrite, "wrote %d of %d bytes at offset %d", n, len(b), position)
	}
	return nil
}

// trimTrailingNuls drops trailing NUL bytes from a fixed-width field, leaving the logical
// (non-padded) content.
func trimTrailingNuls(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	out := make([]byte, end)
	copy(out, b[:end])
	return out
}

// padString encodes s as UTF-8, NUL-padded to exactly size bytes. A string longer than size
// bytes is not truncated; it is rejected with ErrInvalidParam.
func padString(s string, size int) ([]byte, error) {
	raw := []byte(s)
	if len(raw) > size {
		return nil, errors.Wrapf(ErrInvalidParam, "string of %d bytes exceeds field size %d", len(raw), size)
	}
	out := make([]byte, size)
	copy(out, raw)
	return out, nil
}

// packOffsets encodes a list of signed 8-byte little-endian offsets.
func packOffsets(offsets []int64) []byte {
	out := make([]byte, len(offsets)*8)
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(out[i*8:i*8+8], uint64(off))
	}
	return out
}

// unpackOffsets decodes a packed offset array, failing with ErrMalformed if the length is not
// a multiple of 8.
func unpackOffsets(b []byte) ([]int64, error) {
	if len(b)%8 != 0 {
		return nil, errors.Wrapf(ErrMalformed, "offset list of %d bytes is not a multiple of 8", len(b))
	}
	out := make([]int64, len(b)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[i*8 : i*8+8]))
	}
	return out, nil
}

func getUint32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }
func putUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func getInt64(b []byte) int64      { return int64(binary.LittleEndian.Uint64(b)) }
func putInt64(b []byte, v int64)   { binary.LittleEndian.PutUint64(b, uint64(v)) }
