package container

// Block kind signatures. Every block begins with one of these 4-byte tags in bytes [0:4).
var (
	signatureHeader   = [4]byte{0x01, 0x01, 0x01, 0x01}
	signatureMetadata = [4]byte{0x0F, 0x0F, 0x0F, 0x0F}
	signatureData     = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}
)

// header block field offsets, relative to block 0
const (
	headerVersionOffset    = 8
	headerNameOffset       = 16
	headerNameSize         = 256
	headerBlockSizeOffset  = 288
	headerBlockCountOffset = 296
	headerCreatedOffset    = 304
	headerCreatedSize      = 32
	headerBitmapOffset     = 1024

	containerVersion = 1
)

// metadata block field offsets, relative to the start of the block
const (
	metadataParentOffset          = 4
	metadataChildDataBlockOffset  = 12
	metadataFullDataLengthOffset  = 20
	metadataLocalDataLengthOffset = 28
	metadataIsDirectoryOffset     = 32
	metadataIsFileOffset          = 36
	metadataNameOffset            = 40
	metadataNameSize              = 256
	metadataCreatedOffset         = 296
	metadataCreatedSize           = 32
	metadataUpdatedOffset         = 328
	metadataUpdatedSize           = 32

	metadataHeaderSize = 512
)

// data block field offsets, relative to the start of the block
const (
	dataParentOffset = 4
	dataChildOffset  = 12
	dataLengthOffset = 20

	dataHeaderSize = 64
)

// timestampLayout is the on-disk textual timestamp format, MM/dd/yyyy HH:mm:ss.ffffff.
const timestampLayout = "01/02/2006 15:04:05.000000"

// rootBlockIndex is the fixed block index of the root directory's metadata block (invariant 1).
const rootBlockIndex = 1

// noLink is the sentinel value for "no link" in parent/child offset fields.
const noLink int64 = -1

// minBlockSize and minBlockCount are the creation preconditions, chosen so the bitmap always
// fits starting at header offset 1024 within the fixed header block.
const (
	blockSizeFactor  = 4096
	blockCountFactor = 4096
	minBlockSize     = 4096
	minBlockCount    = 4096
	// initialReservationBlocks is how many blocks' worth of space createContainer truncates
	// the new file to up front, regardless of the requested block count.
	initialReservationBlocks = 256
)

func metadataCapacity(blockSize int64) int64 {
	return blockSize - metadataHeaderSize
}

func dataCapacity(blockSize int64) int64 {
	return blockSize - dataHeaderSize
}

func bitmapByteLen(blockCount int64) int64 {
	return (blockCount + 7) / 8
}
