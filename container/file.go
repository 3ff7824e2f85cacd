package container

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ReadFile returns the full byte content of the named file under parentPath.
func (c *Container) ReadFile(parentPath, name string) ([]byte, error) {
	pos, err := c.findFile(parentPath, name)
	if err != nil {
		return nil, err
	}
	meta, err := readMetadata(c.file, c.blockSize, pos)
	if err != nil {
		return nil, err
	}
	return meta.fileData(c.file, c.blockSize)
}

// ReadFileRange returns count bytes of the named file's content starting at start, failing
// with ErrOutOfRange if [start, start+count) falls outside [0, fullDataLength].
func (c *Container) ReadFileRange(parentPath, name string, start, count int64) ([]byte, error) {
	pos, err := c.findFile(parentPath, name)
	if err != nil {
		return nil, err
	}
	meta, err := readMetadata(c.file, c.blockSize, pos)
	if err != nil {
		return nil, err
	}
	if count < 0 || start < 0 || start > int64(meta.fullDataLength) || start+count > int64(meta.fullDataLength) {
		return nil, errors.Wrapf(ErrOutOfRange, "range [%d,%d) outside [0,%d]", start, start+count, meta.fullDataLength)
	}
	full, err := meta.fileData(c.file, c.blockSize)
	if err != nil {
		return nil, err
	}
	return full[start : start+count], nil
}

// WriteFile creates a new file named name under parentPath with the given content. Fails with
// ErrInvalidParam if name is empty, ErrNotFound if the parent does not exist, and
// ErrAlreadyExists if an entry of that name is already present.
func (c *Container) WriteFile(parentPath, name string, data []byte) error {
	if name == "" {
		return errors.Wrap(ErrInvalidParam, "file name must not be empty")
	}
	parent, parentPos, err := c.findDirectory(parentPath)
	if err != nil {
		return err
	}
	if _, exists, err := c.findEntry(parent, name); err != nil {
		return err
	} else if exists {
		return errors.Wrapf(ErrAlreadyExists, "an entry named %q already exists in %q", name, parentPath)
	}
	if exists, err := c.findFileEntry(parent, name); err != nil {
		return err
	} else if exists {
		return errors.Wrapf(ErrAlreadyExists, "a file named %q already exists in %q (case-insensitive)", name, parentPath)
	}

	localCap := metadataCapacity(c.blockSize)
	dataCap := dataCapacity(c.blockSize)
	overflowLen := int64(len(data)) - localCap
	if overflowLen < 0 {
		overflowLen = 0
	}
	overflowBlocks := (overflowLen + dataCap - 1) / dataCap

	positions, err := c.alloc.allocate(int(overflowBlocks) + 1)
	if err != nil {
		return err
	}
	metaPos := positions[0]
	dataPositions := positions[1:]

	local := data
	var overflow []byte
	if int64(len(data)) > localCap {
		local = data[:localCap]
		overflow = data[localCap:]
	}

	childDataBlock := int64(noLink)
	if len(dataPositions) > 0 {
		if err := writeDataChain(c.file, c.blockSize, dataPositions, metaPos, overflow); err != nil {
			return err
		}
		childDataBlock = dataPositions[0]
	}

	now := time.Now().UTC()
	meta := &metadataBlock{
		parent:          parentPos,
		childDataBlock:  childDataBlock,
		fullDataLength:  int32(len(data)),
		localDataLength: int32(len(local)),
		isFile:          true,
		name:            name,
		created:         now,
		updated:         now,
		payload:         local,
	}
	if err := writeMetadata(c.file, c.blockSize, metaPos, meta); err != nil {
		return err
	}

	if err := c.appendChildOffset(parentPos, metaPos); err != nil {
		return err
	}

	if c.log != nil {
		c.log.WithFields(logrus.Fields{"path": parentPath, "name": name, "bytes": len(data)}).Debug("container: wrote file")
	}
	return nil
}

// DeleteFile removes the named file under parentPath, freeing its metadata and overflow blocks.
func (c *Container) DeleteFile(parentPath, name string) error {
	_, parentPos, err := c.findDirectory(parentPath)
	if err != nil {
		return err
	}
	pos, err := c.findFile(parentPath, name)
	if err != nil {
		return err
	}
	meta, err := readMetadata(c.file, c.blockSize, pos)
	if err != nil {
		return err
	}

	// Detach the entry from its parent before freeing its blocks: if the free half below fails
	// partway, the worst outcome is an orphaned, still-allocated block rather than a directory
	// that still references a block the allocator has already handed out to someone else.
	if err := c.removeChildOffset(parentPos, pos); err != nil {
		return err
	}

	var toFree []int64
	if meta.childDataBlock >= 0 {
		chain, err := chainPositions(c.file, c.blockSize, meta.childDataBlock)
		if err != nil {
			return err
		}
		for _, p := range chain {
			if err := zeroBlock(c.file, c.blockSize, p); err != nil {
				return err
			}
		}
		toFree = append(toFree, chain...)
	}
	if err := zeroBlock(c.file, c.blockSize, pos); err != nil {
		return err
	}
	toFree = append(toFree, pos)
	if err := c.alloc.free(toFree); err != nil {
		return err
	}

	if c.log != nil {
		c.log.WithFields(logrus.Fields{"path": parentPath, "name": name}).Debug("container: deleted file")
	}
	return nil
}
