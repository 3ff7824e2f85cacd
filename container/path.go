package container

import (
	"strings"

	"github.com/pkg/errors"
)

// splitPath parses a ContainerFS path into non-empty, non-"." segments. The empty string, "/",
// and "." all denote the root, which splits to zero segments. There is no ".." support.
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		out = append(out, part)
	}
	return out
}

// findDirectory resolves path to a directory's metadata and byte position, starting from the
// root. Fails with ErrNotFound if any segment cannot be matched, or matches a file rather than
// a directory; the resolver never descends into file nodes.
func (c *Container) findDirectory(path string) (*metadataBlock, int64, error) {
	position := c.rootPosition()
	meta, err := readMetadata(c.file, c.blockSize, position)
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading root directory")
	}

	for _, segment := range splitPath(path) {
		offsets, err := meta.childOffsets(c.file, c.blockSize)
		if err != nil {
			return nil, 0, err
		}
		found := false
		for _, off := range offsets {
			child, err := readMetadata(c.file, c.blockSize, off)
			if err != nil {
				return nil, 0, err
			}
			if child.name != segment {
				continue
			}
			if !child.isDirectory {
				return nil, 0, errors.Wrapf(ErrNotFound, "%q is a file, not a directory", segment)
			}
			meta, position = child, off
			found = true
			break
		}
		if !found {
			return nil, 0, errors.Wrapf(ErrNotFound, "no such directory segment %q in path %q", segment, path)
		}
	}
	return meta, position, nil
}

// findFile resolves parentPath to a directory, then returns the byte position of the first
// child that is a file whose name matches (case-insensitively, trimmed) the requested name.
func (c *Container) findFile(parentPath, name string) (int64, error) {
	parent, _, err := c.findDirectory(parentPath)
	if err != nil {
		return 0, err
	}
	offsets, err := parent.childOffsets(c.file, c.blockSize)
	if err != nil {
		return 0, err
	}
	for _, off := range offsets {
		child, err := readMetadata(c.file, c.blockSize, off)
		if err != nil {
			return 0, err
		}
		if child.isFile && strings.EqualFold(child.name, name) {
			return off, nil
		}
	}
	return 0, errors.Wrapf(ErrFileNotFound, "no file %q in directory %q", name, parentPath)
}

// findEntry returns the byte position of any child (file or directory) whose name matches
// exactly, used to detect directory-name collisions before creating a new entry.
func (c *Container) findEntry(parent *metadataBlock, name string) (int64, bool, error) {
	offsets, err := parent.childOffsets(c.file, c.blockSize)
	if err != nil {
		return 0, false, err
	}
	for _, off := range offsets {
		child, err := readMetadata(c.file, c.blockSize, off)
		if err != nil {
			return 0, false, err
		}
		if child.name == name {
			return off, true, nil
		}
	}
	return 0, false, nil
}

// findFileEntry returns whether parent already has a file child whose name matches name
// case-insensitively, the same comparison findFile uses to look files up. Write-time collision
// checks for files must use this, not findEntry's exact match, or two files differing only by
// case could coexist while only the first is ever reachable by name.
func (c *Container) findFileEntry(parent *metadataBlock, name string) (bool, error) {
	offsets, err := parent.childOffsets(c.file, c.blockSize)
	if err != nil {
		return false, err
	}
	for _, off := range offsets {
		child, err := readMetadata(c.file, c.blockSize, off)
		if err != nil {
			return false, err
		}
		if child.isFile && strings.EqualFold(child.name, name) {
			return true, nil
		}
	}
	return false, nil
}
