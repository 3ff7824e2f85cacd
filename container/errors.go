package container

import "errors"

// Sentinel errors for the core API, one sentinel per distinguishable failure mode the core can raise.
// Call sites wrap these with github.com/pkg/errors to attach positional context while keeping
// errors.Is matching intact.
var (
	// ErrInvalidParam is returned when a parameter (block size, block count, path, name) violates
	// a documented precondition.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrAlreadyExists is returned when a file or directory with the given name already exists
	// in the target parent directory.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when a path segment cannot be resolved to a directory.
	ErrNotFound = errors.New("not found")

	// ErrFileNotFound is returned when the parent directory resolved but no file of the
	// requested name was present.
	ErrFileNotFound = errors.New("file not found")

	// ErrNotEmpty is returned when deleteDirectory is invoked on a directory with children.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrNoSpace is returned when the allocator cannot satisfy a block request.
	ErrNoSpace = errors.New("no space left in container")

	// ErrOutOfRange is returned when a ranged read falls outside [0, fullDataLength].
	ErrOutOfRange = errors.New("out of range")

	// ErrMalformed is returned when an on-disk block has an unrecognized signature or a
	// child-offset array whose length is not a multiple of 8.
	ErrMalformed = errors.New("malformed block")

	// ErrShortRead is returned when the underlying file returned fewer bytes than requested.
	ErrShortRead = errors.New("short read")

	// ErrShortWrite is returned when the underlying file wrote fewer bytes than requested.
	ErrShortWrite = errors.New("short write")
)
