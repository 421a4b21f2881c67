package exchange

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// DefaultCapacity is the NDEF capacity of an NTAG215 tag.
const DefaultCapacity = 504

const filePoll = 200 * time.Millisecond

// FileDevice treats a file as the tag in range: the tag is present while the
// file exists, read-only while the file has no owner write bit, and not NDEF
// compatible when the path is not a regular file.
type FileDevice struct {
	path     string
	capacity int
	poll     time.Duration
}

// NewFileDevice creates a reader for path. A non-positive capacity selects DefaultCapacity.
func NewFileDevice(path string, capacity int) *FileDevice {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FileDevice{path: path, capacity: capacity, poll: filePoll}
}

// Path returns the tag image path.
func (d *FileDevice) Path() string {
	return d.path
}

// Connect waits until the tag image exists.
func (d *FileDevice) Connect(ctx context.Context) (Tag, error) {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		_, err := os.Stat(d.path)
		switch {
		case err == nil:
			return &fileTag{path: d.path, capacity: d.capacity}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type fileTag struct {
	path     string
	capacity int
}

func (t *fileTag) QueryStatus(context.Context) (Status, int, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		return StatusNotSupported, 0, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	switch {
	case !info.Mode().IsRegular():
		return StatusNotSupported, 0, nil
	case info.Mode().Perm()&0o200 == 0:
		return StatusReadOnly, t.capacity, nil
	default:
		return StatusReadWrite, t.capacity, nil
	}
}

func (t *fileTag) Read(context.Context) ([]byte, error) {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	return raw, nil
}

func (t *fileTag) Write(_ context.Context, payload []byte) error {
	f, err := os.OpenFile(t.path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return f.Close()
}

func (t *fileTag) Close() error {
	return nil
}
