package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single exchange, matching a typical reader session.
const DefaultTimeout = 60 * time.Second

// ReadResult is the outcome of a read exchange.
type ReadResult struct {
	Payload []byte
	Err     error
}

// Session serialises exchanges with one device. At most one exchange may be
// outstanding; a second Begin call fails with ErrBusy instead of queueing.
type Session struct {
	device  Device
	timeout time.Duration
	log     *zap.Logger
	busy    atomic.Bool
}

// NewSession creates a session for device. A non-positive timeout selects DefaultTimeout.
func NewSession(device Device, timeout time.Duration, log *zap.Logger) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Session{device: device, timeout: timeout, log: log}
}

// Busy reports whether an exchange is outstanding.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// BeginRead starts a read exchange. The returned channel delivers exactly one
// result and is then closed. Cancelling ctx or hitting the session timeout
// completes the exchange with ErrSessionInvalidated or ErrTimeout.
func (s *Session) BeginRead(ctx context.Context) (<-chan ReadResult, error) {
	if s.device == nil {
		return nil, ErrUnavailable
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	out := make(chan ReadResult, 1)
	go func() {
		defer close(out)
		payload, err := s.read(ctx)
		s.busy.Store(false)
		out <- ReadResult{Payload: payload, Err: err}
	}()
	return out, nil
}

// BeginWrite starts a write exchange. The tag status and capacity are checked
// before anything is written. The returned channel delivers exactly one
// result (nil on success) and is then closed.
func (s *Session) BeginWrite(ctx context.Context, payload []byte) (<-chan error, error) {
	if s.device == nil {
		return nil, ErrUnavailable
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	out := make(chan error, 1)
	go func() {
		defer close(out)
		err := s.write(ctx, payload)
		s.busy.Store(false)
		out <- err
	}()
	return out, nil
}

func (s *Session) read(parent context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	tag, err := s.device.Connect(ctx)
	if err != nil {
		return nil, sessionError(ctx, err, ErrConnection)
	}
	defer s.invalidate(tag)

	payload, err := tag.Read(ctx)
	if err != nil {
		return nil, sessionError(ctx, err, ErrReadFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, sessionError(ctx, err, ErrReadFailed)
	}
	return payload, nil
}

func (s *Session) write(parent context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	tag, err := s.device.Connect(ctx)
	if err != nil {
		return sessionError(ctx, err, ErrConnection)
	}
	defer s.invalidate(tag)

	status, capacity, err := tag.QueryStatus(ctx)
	if err != nil {
		return sessionError(ctx, err, ErrConnection)
	}
	switch status {
	case StatusReadOnly:
		return ErrReadOnly
	case StatusNotSupported:
		return ErrNotSupported
	}
	if capacity < len(payload) {
		return fmt.Errorf("%w: capacity %d, message %d", ErrInsufficientCapacity, capacity, len(payload))
	}

	if err := tag.Write(ctx, payload); err != nil {
		return sessionError(ctx, err, ErrWriteFailed)
	}
	return nil
}

func (s *Session) invalidate(tag Tag) {
	if err := tag.Close(); err != nil {
		s.log.Warn("failed to close tag connection", zap.Error(err))
	}
}

// sessionError attributes err to the session timeout or cancellation when
// the context ended, and otherwise tags it with fallback unless the device
// already classified it.
func sessionError(ctx context.Context, err, fallback error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrSessionInvalidated, err)
	case isKnown(err):
		return err
	default:
		return fmt.Errorf("%w: %w", fallback, err)
	}
}
