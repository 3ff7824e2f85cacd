package container

import (
	"bytes"

	"github.com/pkg/errors"
)

// BlockKind identifies which of the three on-disk block variants a block decodes as.
type BlockKind int

const (
	// BlockKindHeader marks the fixed block 0.
	BlockKindHeader BlockKind = iota
	// BlockKindMetadata marks a file-or-directory node.
	BlockKindMetadata
	// BlockKindData marks an overflow payload block.
	BlockKindData
)

func (k BlockKind) String() string {
	switch k {
	case BlockKindHeader:
		return "header"
	case BlockKindMetadata:
		return "metadata"
	case BlockKindData:
		return "data"
	default:
		return "unknown"
	}
}

// BlockDescription is a dispatched, human-inspectable summary of one block, used by the
// inspection CLI command.
type BlockDescription struct {
	Position int64
	Kind     BlockKind

	// Metadata/Data fields, zero-valued when not applicable to Kind.
	Parent         int64
	ChildDataBlock int64
	Name           string
	IsDirectory    bool
	IsFile         bool
	FullDataLength int32
	DataLength     int32
}

// ReadRawBlock returns the raw, undecoded bytes of the block at position.
func (c *Container) ReadRawBlock(position int64) ([]byte, error) {
	if position%c.blockSize != 0 || position < 0 || position >= c.blockCount*c.blockSize {
		return nil, errors.Wrapf(ErrOutOfRange, "position %d is not a valid block offset", position)
	}
	return readAt(c.file, position, int(c.blockSize))
}

// EnumerateBlock reads and decodes the block at position, dispatching on its 4-byte signature.
func (c *Container) EnumerateBlock(position int64) (BlockDescription, error) {
	raw, err := c.ReadRawBlock(position)
	if err != nil {
		return BlockDescription{}, err
	}
	if len(raw) < 4 {
		return BlockDescription{}, errors.Wrap(ErrMalformed, "block shorter than a signature")
	}

	switch {
	case bytes.Equal(raw[0:4], signatureHeader[:]):
		return BlockDescription{Position: position, Kind: BlockKindHeader}, nil
	case bytes.Equal(raw[0:4], signatureMetadata[:]):
		m, err := metadataFromBytes(raw)
		if err != nil {
			return BlockDescription{}, err
		}
		return BlockDescription{
			Position:       position,
			Kind:           BlockKindMetadata,
			Parent:         m.parent,
			ChildDataBlock: m.childDataBlock,
			Name:           m.name,
			IsDirectory:    m.isDirectory,
			IsFile:         m.isFile,
			FullDataLength: m.fullDataLength,
		}, nil
	case bytes.Equal(raw[0:4], signatureData[:]):
		d, err := dataBlockFromBytes(raw)
		if err != nil {
			return BlockDescription{}, err
		}
		return BlockDescription{
			Position:       position,
			Kind:           BlockKindData,
			Parent:         d.parent,
			ChildDataBlock: d.child,
			DataLength:     d.length,
		}, nil
	default:
		return BlockDescription{}, errors.Wrapf(ErrMalformed, "unrecognized signature % x at %d", raw[0:4], position)
	}
}
