// Package exchange runs single-shot read and write exchanges with a
// proximity tag reader.
package exchange

import (
	"context"
	"errors"
)

// Hardware and session errors. Every failed exchange wraps one of these.
var (
	ErrUnavailable          = errors.New("exchange: reader unavailable")
	ErrBusy                 = errors.New("exchange: another exchange is in progress")
	ErrTimeout              = errors.New("exchange: session timed out")
	ErrSessionInvalidated   = errors.New("exchange: session invalidated")
	ErrConnection           = errors.New("exchange: connection failed")
	ErrReadOnly             = errors.New("exchange: tag is read-only")
	ErrNotSupported         = errors.New("exchange: tag is not NDEF compatible")
	ErrInsufficientCapacity = errors.New("exchange: tag capacity insufficient")
	ErrReadFailed           = errors.New("exchange: read failed")
	ErrWriteFailed          = errors.New("exchange: write failed")
)

var known = []error{
	ErrUnavailable, ErrBusy, ErrTimeout, ErrSessionInvalidated, ErrConnection,
	ErrReadOnly, ErrNotSupported, ErrInsufficientCapacity, ErrReadFailed, ErrWriteFailed,
}

// Status is the NDEF status reported by a connected tag.
type Status int

const (
	StatusNotSupported Status = iota
	StatusReadOnly
	StatusReadWrite
)

func (s Status) String() string {
	switch s {
	case StatusReadOnly:
		return "read-only"
	case StatusReadWrite:
		return "read-write"
	default:
		return "not-supported"
	}
}

// Tag is a connected tag. Close ends the connection and must always be called.
type Tag interface {
	// QueryStatus reports the tag status and its capacity in bytes.
	QueryStatus(ctx context.Context) (Status, int, error)
	// Read returns the raw message stored on the tag.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored message.
	Write(ctx context.Context, payload []byte) error
	Close() error
}

// Device is a reader that waits for a tag to be presented.
type Device interface {
	// Connect blocks until a tag is in range or ctx is done.
	Connect(ctx context.Context) (Tag, error)
}

func isKnown(err error) bool {
	for _, k := range known {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
