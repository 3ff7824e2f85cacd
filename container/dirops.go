package container

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DirectoryEntry describes one file child of a directory listing.
type DirectoryEntry struct {
	Name string
	Size int64
}

// DirectoryListing is the result of ReadDirectory: its files, its subdirectory names, and its
// own metadata block's byte position.
type DirectoryListing struct {
	Files       []DirectoryEntry
	Directories []string
	Position    int64
}

// ReadDirectory resolves dirPath and enumerates its immediate children.
func (c *Container) ReadDirectory(dirPath string) (DirectoryListing, error) {
	meta, pos, err := c.findDirectory(dirPath)
	if err != nil {
		return DirectoryListing{}, err
	}
	offsets, err := meta.childOffsets(c.file, c.blockSize)
	if err != nil {
		return DirectoryListing{}, err
	}

	listing := DirectoryListing{Position: pos}
	for _, off := range offsets {
		child, err := readMetadata(c.file, c.blockSize, off)
		if err != nil {
			return DirectoryListing{}, err
		}
		if child.isDirectory {
			listing.Directories = append(listing.Directories, child.name)
		} else {
			listing.Files = append(listing.Files, DirectoryEntry{Name: child.name, Size: int64(child.fullDataLength)})
		}
	}
	return listing, nil
}

// WriteDirectory creates a new directory at dirPath. The final path segment is the new
// directory's name; its parent must already exist and must not already contain an entry of
// that name.
func (c *Container) WriteDirectory(dirPath string) error {
	segments := splitPath(dirPath)
	if len(segments) == 0 {
		return errors.Wrap(ErrInvalidParam, "cannot create the root directory")
	}
	name := segments[len(segments)-1]
	// Join without path.Join/Clean: a literal ".." segment must flow into findDirectory
	// unresolved so it fails lookup, rather than being collapsed away here.
	parentPath := strings.Join(segments[:len(segments)-1], "/")

	parent, parentPos, err := c.findDirectory(parentPath)
	if err != nil {
		return err
	}
	if _, exists, err := c.findEntry(parent, name); err != nil {
		return err
	} else if exists {
		return errors.Wrapf(ErrAlreadyExists, "an entry named %q already exists in %q", name, parentPath)
	}

	positions, err := c.alloc.allocate(1)
	if err != nil {
		return err
	}
	newPos := positions[0]

	now := time.Now().UTC()
	meta := &metadataBlock{
		parent:         parentPos,
		childDataBlock: noLink,
		isDirectory:    true,
		name:           name,
		created:        now,
		updated:        now,
	}
	if err := writeMetadata(c.file, c.blockSize, newPos, meta); err != nil {
		return err
	}

	if err := c.appendChildOffset(parentPos, newPos); err != nil {
		return err
	}

	if c.log != nil {
		c.log.WithField("path", dirPath).Debug("container: wrote directory")
	}
	return nil
}

// DeleteDirectory removes the empty directory at dirPath, failing with ErrNotEmpty if it has
// any children.
func (c *Container) DeleteDirectory(dirPath string) error {
	segments := splitPath(dirPath)
	if len(segments) == 0 {
		return errors.Wrap(ErrInvalidParam, "cannot delete the root directory")
	}

	meta, pos, err := c.findDirectory(dirPath)
	if err != nil {
		return err
	}
	offsets, err := meta.childOffsets(c.file, c.blockSize)
	if err != nil {
		return err
	}
	if len(offsets) > 0 {
		return errors.Wrapf(ErrNotEmpty, "directory %q is not empty", dirPath)
	}

	parentPath := strings.Join(segments[:len(segments)-1], "/")
	_, parentPos, err := c.findDirectory(parentPath)
	if err != nil {
		return err
	}
	// Detach the entry from its parent before freeing its blocks: if the free half below fails
	// partway, the worst outcome is an orphaned, still-allocated block rather than a parent
	// directory that still references a block the allocator has already handed out elsewhere.
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
		c.log.WithField("path", dirPath).Debug("container: deleted directory")
	}
	return nil
}
