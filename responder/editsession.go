package responder

import (
	"os"

	"github.com/ardnew/mtpresponder/mtp"
)

// EditSession owns the writable file descriptor bound to a handle for
// partial writes and truncation. Dropping the session closes the file
// regardless of exit path: commit, cancel, or loop shutdown (spec §9).
type EditSession struct {
	Handle mtp.ObjectHandle
	Path   string
	Size   int64
	Format uint16
	file   *os.File
}

// openEditSession opens path read-write for an exclusive edit session.
func openEditSession(handle mtp.ObjectHandle, path string, size int64, format uint16) (*EditSession, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &EditSession{Handle: handle, Path: path, Size: size, Format: format, file: f}, nil
}

// WriteAt writes data at the given offset, extending Size if the write
// reaches past the current end.
func (e *EditSession) WriteAt(data []byte, offset int64) (int, error) {
	n, err := e.file.WriteAt(data, offset)
	if err != nil {
		return n, err
	}
	if end := offset + int64(n); end > e.Size {
		e.Size = end
	}
	return n, nil
}

// Truncate resizes the file to size and updates Size.
func (e *EditSession) Truncate(size int64) error {
	if err := e.file.Truncate(size); err != nil {
		return err
	}
	e.Size = size
	return nil
}

// Close closes the underlying file descriptor.
func (e *EditSession) Close() error {
	return e.file.Close()
}
