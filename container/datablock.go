package container

import (
	"bytes"

	"github.com/pkg/errors"
)

// dataBlock is the decoded form of a single overflow block: file-payload or directory
// child-list overflow. Payload is exactly `length` bytes; the caller is responsible for
// knowing blockSize when re-encoding.
type dataBlock struct {
	parent  int64
	child   int64
	length  int32
	payload []byte
}

// dataBlockFromBytes decodes a raw block of exactly blockSize bytes as a data block.
func dataBlockFromBytes(b []byte) (*dataBlock, error) {
	if len(b) < dataHeaderSize {
		return nil, errors.Wrapf(ErrMalformed, "data block of %d bytes shorter than header %d", len(b), dataHeaderSize)
	}
	if !bytes.Equal(b[0:4], signatureData[:]) {
		return nil, errors.Wrapf(ErrMalformed, "unexpected data block signature % x", b[0:4])
	}
	d := &dataBlock{
		parent: getInt64(b[dataParentOffset : dataParentOffset+8]),
		child:  getInt64(b[dataChildOffset : dataChildOffset+8]),
		length: int32(getUint32(b[dataLengthOffset : dataLengthOffset+4])),
	}
	payload := b[dataHeaderSize:]
	if int(d.length) > len(payload) {
		return nil, errors.Wrapf(ErrMalformed, "data block declares length %d beyond capacity %d", d.length, len(payload))
	}
	d.payload = make([]byte, d.length)
	copy(d.payload, payload[:d.length])
	return d, nil
}

// toBytes encodes the data block to exactly blockSize bytes.
func (d *dataBlock) toBytes(blockSize int64) []byte {
	b := make([]byte, blockSize)
	copy(b[0:4], signatureData[:])
	putInt64(b[dataParentOffset:dataParentOffset+8], d.parent)
	putInt64(b[dataChildOffset:dataChildOffset+8], d.child)
	putUint32(b[dataLengthOffset:dataLengthOffset+4], uint32(d.length))
	copy(b[dataHeaderSize:], d.payload)
	return b
}

// walkDataChain walks a forward-linked chain of data blocks purely by its child links, from
// `start` to -1, decoding every block along the way. Both readDataChainContent and
// chainPositions derive their result from this single walk so the two can never disagree about
// which blocks belong to the chain.
func walkDataChain(f File, blockSize, start int64) ([]*dataBlock, []int64, error) {
	var blocks []*dataBlock
	var positions []int64
	cur := start
	for cur >= 0 {
		raw, err := readAt(f, cur, int(blockSize))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reading data block at %d", cur)
		}
		db, err := dataBlockFromBytes(raw)
		if err != nil {
			return nil, nil, err
		}
		blocks = append(blocks, db)
		positions = append(positions, cur)
		cur = db.child
	}
	return blocks, positions, nil
}

// readDataChainContent walks a forward-linked chain of data blocks starting at `start`,
// concatenating payload[0:length] from each until it encounters -1 or a zero-length block.
// A zero-length block terminates the chain even if its child link is non-negative.
func readDataChainContent(f File, blockSize, start int64) ([]byte, error) {
	blocks, _, err := walkDataChain(f, blockSize, start)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, db := range blocks {
		if db.length == 0 {
			break
		}
		buf.Write(db.payload)
	}
	return buf.Bytes(), nil
}

// chainPositions walks a forward-linked chain of data blocks purely by its child links,
// returning every block's byte offset regardless of content length. Used for bookkeeping
// (freeing a chain, counting its length) where every allocated block must be accounted for.
func chainPositions(f File, blockSize, start int64) ([]int64, error) {
	_, positions, err := walkDataChain(f, blockSize, start)
	return positions, err
}

// writeDataChain writes payload across the pre-allocated positions, linking each block to its
// predecessor (or owner, for the first block) and successor, chunked at dataCapacity(blockSize)
// bytes per block.
func writeDataChain(f File, blockSize int64, positions []int64, owner int64, payload []byte) error {
	capacity := int(dataCapacity(blockSize))
	for k, pos := range positions {
		parent := owner
		if k > 0 {
			parent = positions[k-1]
		}
		child := noLink
		if k < len(positions)-1 {
			child = positions[k+1]
		}
		start := k * capacity
		end := start + capacity
		if end > len(payload) {
			end = len(payload)
		}
		var chunk []byte
		if start < len(payload) {
			chunk = payload[start:end]
		}
		db := &dataBlock{parent: parent, child: child, length: int32(len(chunk)), payload: chunk}
		if err := writeAt(f, pos, db.toBytes(blockSize)); err != nil {
			return errors.Wrapf(err, "writing data block at %d", pos)
		}
	}
	return nil
}

// zeroBlock overwrites a whole block with zero bytes, used when destroying metadata/data
// blocks before they are returned to the allocator.
func zeroBlock(f File, blockSize, position int64) error {
	return writeAt(f, position, make([]byte, blockSize))
}
