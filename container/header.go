package container

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
)

// header is the decoded form of block 0: container-wide metadata. The free-block bitmap that
// follows it on disk is owned by the allocator, not this struct.
type header struct {
	version    int32
	name       string
	blockSize  int64
	blockCount int64
	created    time.Time
}

// headerFromBytes decodes the fixed portion of the header block (everything before the bitmap).
// The caller must supply at least headerBitmapOffset bytes.
func headerFromBytes(b []byte) (*header, error) {
	if len(b) < headerBitmapOffset {
		return nil, errors.Wrapf(ErrMalformed, "header block fragment of %d bytes shorter than %d", len(b), headerBitmapOffset)
	}
	if !bytes.Equal(b[0:4], signatureHeader[:]) {
		return nil, errors.Wrapf(ErrMalformed, "unexpected header block signature % x", b[0:4])
	}
	h := &header{
		version:    int32(getUint32(b[headerVersionOffset : headerVersionOffset+4])),
		blockSize:  int64(getUint32(b[headerBlockSizeOffset : headerBlockSizeOffset+4])),
		blockCount: int64(getUint32(b[headerBlockCountOffset : headerBlockCountOffset+4])),
	}
	h.name = string(trimTrailingNuls(b[headerNameOffset : headerNameOffset+headerNameSize]))

	createdRaw := string(trimTrailingNuls(b[headerCreatedOffset : headerCreatedOffset+headerCreatedSize]))
	if createdRaw != "" {
		t, err := time.Parse(timestampLayout, createdRaw)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "invalid created timestamp %q: %v", createdRaw, err)
		}
		h.created = t
	}
	return h, nil
}

// toBytes encodes the fixed header portion (bytes [0, headerBitmapOffset)). The bitmap itself
// is appended separately by the allocator.
func (h *header) toBytes() ([]byte, error) {
	b := make([]byte, headerBitmapOffset)
	copy(b[0:4], signatureHeader[:])
	putUint32(b[headerVersionOffset:headerVersionOffset+4], uint32(h.version))

	name, err := padString(h.name, headerNameSize)
	if err != nil {
		return nil, errors.Wrap(err, "encoding container name")
	}
	copy(b[headerNameOffset:headerNameOffset+headerNameSize], name)

	putUint32(b[headerBlockSizeOffset:headerBlockSizeOffset+4], uint32(h.blockSize))
	putUint32(b[headerBlockCountOffset:headerBlockCountOffset+4], uint32(h.blockCount))

	created, err := padString(h.created.UTC().Format(timestampLayout), headerCreatedSize)
	if err != nil {
		return nil, errors.Wrap(err, "encoding created timestamp")
	}
	copy(b[headerCreatedOffset:headerCreatedOffset+headerCreatedSize], created)

	return b, nil
}
