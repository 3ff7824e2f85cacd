package container

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
)

// metadataBlock is the decoded form of a file-or-directory node. For a file, payload holds
// opaque file bytes; for a directory, payload holds a packed array of 8-byte child-metadata
// offsets. In both cases only the first localDataLength bytes of payload are meaningful;
// overflow beyond metadataCapacity(blockSize) lives in the data-block chain starting at
// childDataBlock.
type metadataBlock struct {
	parent          int64
	childDataBlock  int64
	fullDataLength  int32
	localDataLength int32
	isDirectory     bool
	isFile          bool
	name            string
	created         time.Time
	updated         time.Time
	payload         []byte
}

func metadataFromBytes(b []byte) (*metadataBlock, error) {
	if len(b) < metadataHeaderSize {
		return nil, errors.Wrapf(ErrMalformed, "metadata block of %d bytes shorter than header %d", len(b), metadataHeaderSize)
	}
	if !bytes.Equal(b[0:4], signatureMetadata[:]) {
		return nil, errors.Wrapf(ErrMalformed, "unexpected metadata block signature % x", b[0:4])
	}
	m := &metadataBlock{
		parent:          getInt64(b[metadataParentOffset : metadataParentOffset+8]),
		childDataBlock:  getInt64(b[metadataChildDataBlockOffset : metadataChildDataBlockOffset+8]),
		fullDataLength:  int32(getUint32(b[metadataFullDataLengthOffset : metadataFullDataLengthOffset+4])),
		localDataLength: int32(getUint32(b[metadataLocalDataLengthOffset : metadataLocalDataLengthOffset+4])),
		isDirectory:     getUint32(b[metadataIsDirectoryOffset:metadataIsDirectoryOffset+4]) != 0,
		isFile:          getUint32(b[metadataIsFileOffset:metadataIsFileOffset+4]) != 0,
	}
	m.name = string(trimTrailingNuls(b[metadataNameOffset : metadataNameOffset+metadataNameSize]))

	createdRaw := string(trimTrailingNuls(b[metadataCreatedOffset : metadataCreatedOffset+metadataCreatedSize]))
	if createdRaw != "" {
		t, err := time.Parse(timestampLayout, createdRaw)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "invalid created timestamp %q: %v", createdRaw, err)
		}
		m.created = t
	}
	updatedRaw := string(trimTrailingNuls(b[metadataUpdatedOffset : metadataUpdatedOffset+metadataUpdatedSize]))
	if updatedRaw != "" {
		t, err := time.Parse(timestampLayout, updatedRaw)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "invalid updated timestamp %q: %v", updatedRaw, err)
		}
		m.updated = t
	}

	payload := b[metadataHeaderSize:]
	if int(m.localDataLength) > len(payload) {
		return nil, errors.Wrapf(ErrMalformed, "metadata block declares local length %d beyond capacity %d", m.localDataLength, len(payload))
	}
	m.payload = make([]byte, m.localDataLength)
	copy(m.payload, payload[:m.localDataLength])
	return m, nil
}

func (m *metadataBlock) toBytes(blockSize int64) ([]byte, error) {
	b := make([]byte, blockSize)
	copy(b[0:4], signatureMetadata[:])
	putInt64(b[metadataParentOffset:metadataParentOffset+8], m.parent)
	putInt64(b[metadataChildDataBlockOffset:metadataChildDataBlockOffset+8], m.childDataBlock)
	putUint32(b[metadataFullDataLengthOffset:metadataFullDataLengthOffset+4], uint32(m.fullDataLength))
	putUint32(b[metadataLocalDataLengthOffset:metadataLocalDataLengthOffset+4], uint32(m.localDataLength))
	if m.isDirectory {
		putUint32(b[metadataIsDirectoryOffset:metadataIsDirectoryOffset+4], 1)
	}
	if m.isFile {
		putUint32(b[metadataIsFileOffset:metadataIsFileOffset+4], 1)
	}

	name, err := padString(m.name, metadataNameSize)
	if err != nil {
		return nil, errors.Wrap(err, "encoding name")
	}
	copy(b[metadataNameOffset:metadataNameOffset+metadataNameSize], name)

	created, err := padString(m.created.UTC().Format(timestampLayout), metadataCreatedSize)
	if err != nil {
		return nil, errors.Wrap(err, "encoding created timestamp")
	}
	copy(b[metadataCreatedOffset:metadataCreatedOffset+metadataCreatedSize], created)

	updated, err := padString(m.updated.UTC().Format(timestampLayout), metadataUpdatedSize)
	if err != nil {
		return nil, errors.Wrap(err, "encoding updated timestamp")
	}
	copy(b[metadataUpdatedOffset:metadataUpdatedOffset+metadataUpdatedSize], updated)

	if int64(len(m.payload)) > metadataCapacity(blockSize) {
		return nil, errors.Wrapf(ErrInvalidParam, "local payload of %d bytes exceeds metadata capacity %d", len(m.payload), metadataCapacity(blockSize))
	}
	copy(b[metadataHeaderSize:], m.payload)
	return b, nil
}

// readMetadata reads and decodes the metadata block at the given byte offset.
func readMetadata(f File, blockSize, position int64) (*metadataBlock, error) {
	raw, err := readAt(f, position, int(blockSize))
	if err != nil {
		return nil, errors.Wrapf(err, "reading metadata block at %d", position)
	}
	return metadataFromBytes(raw)
}

// writeMetadata encodes and writes a metadata block at the given byte offset.
func writeMetadata(f File, blockSize, position int64, m *metadataBlock) error {
	raw, err := m.toBytes(blockSize)
	if err != nil {
		return err
	}
	return writeAt(f, position, raw)
}

// fileData reassembles the full byte content of a file node: its local payload followed by
// the concatenated payloads of its overflow data-block chain. Requires isFile.
func (m *metadataBlock) fileData(f File, blockSize int64) ([]byte, error) {
	if !m.isFile {
		return nil, errors.Wrap(ErrInvalidParam, "fileData called on a non-file metadata block")
	}
	out := make([]byte, 0, m.fullDataLength)
	out = append(out, m.payload...)
	if m.childDataBlock >= 0 {
		rest, err := readDataChainContent(f, blockSize, m.childDataBlock)
		if err != nil {
			return nil, err
		}
		out = append(out, rest...)
	}
	return out, nil
}

// childOffsets decodes the packed child-metadata-offset array for a directory node: the local
// payload concatenated with the raw bytes of its overflow data-block chain (each of whose
// payloads is itself a packed offset array), then split into 8-byte little-endian offsets.
// Requires isDirectory.
func (m *metadataBlock) childOffsets(f File, blockSize int64) ([]int64, error) {
	if !m.isDirectory {
		return nil, errors.Wrap(ErrInvalidParam, "childOffsets called on a non-directory metadata block")
	}
	raw := make([]byte, 0, len(m.payload))
	raw = append(raw, m.payload...)
	if m.childDataBlock >= 0 {
		rest, err := readDataChainContent(f, blockSize, m.childDataBlock)
		if err != nil {
			return nil, err
		}
		raw = append(raw, rest...)
	}
	return unpackOffsets(raw)
}

// dataBlockCount returns the length of the overflow data-block chain, if any.
func (m *metadataBlock) dataBlockCount(f File, blockSize int64) (int, error) {
	if m.childDataBlock < 0 {
		return 0, nil
	}
	positions, err := chainPositions(f, blockSize, m.childDataBlock)
	if err != nil {
		return 0, err
	}
	return len(positions), nil
}
