package container

import "github.com/pkg/errors"

// rewriteChildList replaces a directory's full set of child offsets, splitting the packed
// array across the local payload and an overflow data-block chain exactly as file content is
// split (§4.5.5). The number of overflow blocks needed is derived from the actual remainder
// length rather than taken from a precomputed formula, since the two must always agree for the
// round trip to be loss-free: deriving it directly is simpler than keeping a separate formula
// in sync with metadataCapacity/dataCapacity.
//
// Any previous overflow chain that becomes surplus is freed only after its replacement is fully
// written (fixes the reference behavior's chain leak on directory rewrite), and growing the chain
// only ever allocates the shortfall beyond what the old chain already supplies. This means
// shrinking a child list (the common case on delete) never allocates at all, so it cannot fail
// with NoSpace even when the container is completely full — freeing space must never itself
// require space to succeed.
func (c *Container) rewriteChildList(parentPos int64, offsets []int64) error {
	parent, err := readMetadata(c.file, c.blockSize, parentPos)
	if err != nil {
		return err
	}
	if !parent.isDirectory {
		return errors.Wrap(ErrInvalidParam, "rewriteChildList called on a non-directory metadata block")
	}

	raw := packOffsets(offsets)
	localCap := metadataCapacity(c.blockSize)

	var local, overflow []byte
	if int64(len(raw)) <= localCap {
		local = raw
	} else {
		local = raw[:localCap]
		overflow = raw[localCap:]
	}

	var oldPositions []int64
	if parent.childDataBlock >= 0 {
		oldPositions, err = chainPositions(c.file, c.blockSize, parent.childDataBlock)
		if err != nil {
			return err
		}
	}

	capacity := dataCapacity(c.blockSize)
	need := int64(0)
	if len(overflow) > 0 {
		need = (int64(len(overflow)) + capacity - 1) / capacity
	}

	newChild := int64(noLink)
	var toFree []int64
	switch {
	case need == 0:
		toFree = oldPositions
	case int64(len(oldPositions)) >= need:
		reused := oldPositions[:need]
		if err := writeDataChain(c.file, c.blockSize, reused, parentPos, overflow); err != nil {
			return err
		}
		newChild = reused[0]
		toFree = oldPositions[need:]
	default:
		extra := need - int64(len(oldPositions))
		newPositions, err := c.alloc.allocate(int(extra))
		if err != nil {
			return err
		}
		all := make([]int64, 0, len(oldPositions)+len(newPositions))
		all = append(all, oldPositions...)
		all = append(all, newPositions...)
		if err := writeDataChain(c.file, c.blockSize, all, parentPos, overflow); err != nil {
			return err
		}
		newChild = all[0]
	}

	parent.childDataBlock = newChild
	parent.fullDataLength = 0
	parent.localDataLength = int32(len(local))
	parent.payload = local

	if err := writeMetadata(c.file, c.blockSize, parentPos, parent); err != nil {
		return err
	}

	if len(toFree) > 0 {
		if err := c.alloc.free(toFree); err != nil {
			return err
		}
	}
	return nil
}

// appendChildOffset adds newOffset to the directory at parentPos's child list.
func (c *Container) appendChildOffset(parentPos, newOffset int64) error {
	parent, err := readMetadata(c.file, c.blockSize, parentPos)
	if err != nil {
		return err
	}
	offsets, err := parent.childOffsets(c.file, c.blockSize)
	if err != nil {
		return err
	}
	offsets = append(offsets, newOffset)
	return c.rewriteChildList(parentPos, offsets)
}

// removeChildOffset removes removeOffset from the directory at parentPos's child list, if present.
func (c *Container) removeChildOffset(parentPos, removeOffset int64) error {
	parent, err := readMetadata(c.file, c.blockSize, parentPos)
	if err != nil {
		return err
	}
	offsets, err := parent.childOffsets(c.file, c.blockSize)
	if err != nil {
		return err
	}
	out := offsets[:0]
	for _, off := range offsets {
		if off != removeOffset {
			out = append(out, off)
		}
	}
	return c.rewriteChildList(parentPos, out)
}
