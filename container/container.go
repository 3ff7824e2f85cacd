// Package container implements ContainerFS: a single-user, single-writer hierarchical file
// system stored entirely inside one host file, with a fixed on-disk header, free-block bitmap,
// and chained metadata/data blocks.
package container

import (
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Container owns the file handle, the decoded header fields, and the allocator for one
// ContainerFS container file. Only one Container should mutate a given file at a time;
// there is no internal locking.
type Container struct {
	file  File
	log   *logrus.Logger
	alloc *allocator

	version    int32
	name       string
	blockSize  int64
	blockCount int64
	created    time.Time
}

// rootPosition is the fixed byte offset of the root directory's metadata block.
func (c *Container) rootPosition() int64 {
	return rootBlockIndex * c.blockSize
}

func nopLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func resolveLogger(log *logrus.Logger) *logrus.Logger {
	if log == nil {
		return nopLogger()
	}
	return log
}

// CreateOptions configures CreateContainer.
type CreateOptions struct {
	Filename      string
	ContainerName string
	BlockSize     int64
	BlockCount    int64
	Logger        *logrus.Logger
}

// CreateContainer creates a new container file. filename must not already
// exist. blockSize and blockCount must each be >=4096 and a multiple of 4096, and blockSize
// must be at least blockCount/4 (so the bitmap fits starting at header offset 1024 within the
// header block).
func CreateContainer(opts CreateOptions) (*Container, error) {
	log := resolveLogger(opts.Logger)

	if opts.BlockSize < minBlockSize || opts.BlockSize%blockSizeFactor != 0 {
		return nil, errors.Wrapf(ErrInvalidParam, "block size %d must be >=%d and a multiple of %d", opts.BlockSize, minBlockSize, blockSizeFactor)
	}
	if opts.BlockCount < minBlockCount || opts.BlockCount%blockCountFactor != 0 {
		return nil, errors.Wrapf(ErrInvalidParam, "block count %d must be >=%d and a multiple of %d", opts.BlockCount, minBlockCount, blockCountFactor)
	}
	if opts.BlockSize < opts.BlockCount/4 {
		return nil, errors.Wrapf(ErrInvalidParam, "block size %d must be at least block count/4 (%d)", opts.BlockSize, opts.BlockCount/4)
	}
	if opts.BlockSize > math.MaxUint32 || opts.BlockCount > math.MaxUint32 {
		return nil, errors.Wrapf(ErrInvalidParam, "block size and block count must each fit in the header's 4-byte fields (max %d)", uint32(math.MaxUint32))
	}

	if _, err := os.Stat(opts.Filename); err == nil {
		return nil, errors.Wrapf(ErrAlreadyExists, "container file %q already exists", opts.Filename)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking for existing container file %q", opts.Filename)
	}

	f, err := os.Create(opts.Filename)
	if err != nil {
		return nil, errors.Wrapf(err, "creating container file %q", opts.Filename)
	}
	if err := f.Truncate(opts.BlockSize * initialReservationBlocks); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "reserving initial container file size")
	}

	now := time.Now().UTC()
	c := &Container{
		file:       f,
		log:        log,
		version:    containerVersion,
		name:       opts.ContainerName,
		blockSize:  opts.BlockSize,
		blockCount: opts.BlockCount,
		created:    now,
	}
	c.alloc = newAllocator(f, log, opts.BlockSize, opts.BlockCount)
	// every block starts FREE except 0 (header) and 1 (root directory), reserved at
	// creation (invariant 2).
	for i := int64(0); i < opts.BlockCount; i++ {
		c.alloc.bits.Set(uint(i))
	}
	c.alloc.bits.Clear(0)
	c.alloc.bits.Clear(uint(rootBlockIndex))

	hdr := &header{
		version:    c.version,
		name:       c.name,
		blockSize:  c.blockSize,
		blockCount: c.blockCount,
		created:    c.created,
	}
	hb, err := hdr.toBytes()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := writeAt(f, 0, hb); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "writing header block")
	}
	if err := c.alloc.persist(); err != nil {
		f.Close()
		return nil, err
	}

	root := &metadataBlock{
		parent:         0,
		childDataBlock: noLink,
		name:           ".",
		isDirectory:    true,
		created:        now,
		updated:        now,
	}
	if err := writeMetadata(f, c.blockSize, c.rootPosition(), root); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "writing root directory metadata")
	}

	log.WithFields(logrus.Fields{
		"filename":   opts.Filename,
		"blockSize":  opts.BlockSize,
		"blockCount": opts.BlockCount,
	}).Debug("container: created")

	return c, nil
}

// OpenOptions configures OpenContainer.
type OpenOptions struct {
	Filename string
	Logger   *logrus.Logger
}

// OpenContainer opens an existing container file.
func OpenContainer(opts OpenOptions) (*Container, error) {
	log := resolveLogger(opts.Logger)

	f, err := os.OpenFile(opts.Filename, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening container file %q", opts.Filename)
	}

	headerBytes, err := readAt(f, 0, headerBitmapOffset)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "reading header block")
	}
	hdr, err := headerFromBytes(headerBytes)
	if err != nil {
		f.Close()
		return nil, err
	}

	bitmapLen := bitmapByteLen(hdr.blockCount)
	bitmapBytes, err := readAt(f, headerBitmapOffset, int(bitmapLen))
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "reading free-block bitmap")
	}
	alloc, err := loadAllocator(f, log, hdr.blockSize, hdr.blockCount, bitmapBytes)
	if err != nil {
		f.Close()
		return nil, err
	}

	c := &Container{
		file:       f,
		log:        log,
		alloc:      alloc,
		version:    hdr.version,
		name:       hdr.name,
		blockSize:  hdr.blockSize,
		blockCount: hdr.blockCount,
		created:    hdr.created,
	}

	log.WithField("filename", opts.Filename).Trace("container: opened")
	return c, nil
}

// Close releases the underlying file handle.
func (c *Container) Close() error {
	return c.file.Close()
}

// Stats reports the container's current high-level state.
type Stats struct {
	Version    int32
	Name       string
	BlockSize  int64
	BlockCount int64
	FreeBlocks int64
	TotalBytes int64
	FreeBytes  int64
	Created    time.Time
}

// Stats returns the container's header fields and current allocator state.
func (c *Container) Stats() (Stats, error) {
	free := int64(c.alloc.countFree())
	return Stats{
		Version:    c.version,
		Name:       c.name,
		BlockSize:  c.blockSize,
		BlockCount: c.blockCount,
		FreeBlocks: free,
		TotalBytes: c.blockCount * c.blockSize,
		FreeBytes:  free * c.blockSize,
		Created:    c.created,
	}, nil
}
