// Package storageerrors defines the error taxonomy shared by every layer of
// the storage and indexing core: disk manager, buffer pool, record heap and
// B+Tree index. Lower layers do not log their failures; they wrap one of
// these sentinels with context via github.com/pkg/errors and let the caller
// decide what to do with it. Their only log lines are debug traces and a
// bptree warning when an unpin fails.
package storageerrors

import "github.com/pkg/errors"

var (
	// ErrIOError covers disk read/write and file-open failures.
	ErrIOError = errors.New("io error")

	// ErrInvalidPage is raised when a caller reads a page ID beyond every
	// extent created so far, deallocates a page whose bitmap bit is already
	// clear, or names a page that is not resident in the buffer pool.
	// Programmer error — surfaced, never silently zero-filled. A read does
	// not check the bitmap bit, so a freed page inside an existing extent
	// reads back its last written bytes.
	ErrInvalidPage = errors.New("invalid page")

	// ErrDoubleUnpin is raised when Unpin would drive a frame's pin count
	// negative.
	ErrDoubleUnpin = errors.New("double unpin")

	// ErrInvariantViolation covers any other internal invariant breach
	// (bad slot offset, corrupt node shape) detected mid-operation.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrOutOfFrames is raised when every frame in the buffer pool is
	// pinned and a victim is needed. Back-pressure, not fatal — the caller
	// may retry after releasing pins.
	ErrOutOfFrames = errors.New("out of frames")

	// ErrDuplicateKey is returned by a unique index's Insert when the key
	// already exists. The tree is left unmodified.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned by lookups and deletes that find no matching
	// key or row. A range scan with no match returns an empty iterator
	// instead.
	ErrNotFound = errors.New("not found")

	// ErrSchemaViolation covers type/length mismatches, NULLs in non-null
	// columns, and primary-key duplicates detected above the storage layer
	// but surfaced through the same taxonomy.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrCorruption covers bad magic numbers, checksum mismatches and
	// impossible slot offsets. Fatal for the table or index involved.
	ErrCorruption = errors.New("corruption")
)

// Is reports whether err is, or wraps, target. Thin alias over errors.Is so
// callers outside this package don't need to import both errors packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
