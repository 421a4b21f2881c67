package exchange

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitRead(t *testing.T, ch <-chan ReadResult) ReadResult {
	t.Helper()
	select {
	case res, ok := <-ch:
		require.True(t, ok, "channel closed without a result")
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("read exchange did not complete")
		return ReadResult{}
	}
}

func waitWrite(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("write exchange did not complete")
		return nil
	}
}

func TestSession_Read(t *testing.T) {
	dev := NewMemoryDevice()
	dev.Place([]byte{0xd1, 0x01}, 64)
	s := NewSession(dev, time.Second, zap.NewNop())

	ch, err := s.BeginRead(context.Background())
	require.NoError(t, err)

	res := waitRead(t, ch)
	require.NoError(t, res.Err)
	assert.Equal(t, []byte{0xd1, 0x01}, res.Payload)
	assert.Equal(t, 1, dev.Closed())
	assert.False(t, s.Busy())
}

func TestSession_Busy(t *testing.T) {
	dev := NewMemoryDevice()
	s := NewSession(dev, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.BeginRead(ctx)
	require.NoError(t, err)
	assert.True(t, s.Busy())

	_, err = s.BeginRead(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.BeginWrite(context.Background(), []byte{1})
	assert.ErrorIs(t, err, ErrBusy)

	cancel()
	res := waitRead(t, ch)
	assert.ErrorIs(t, res.Err, ErrSessionInvalidated)
	assert.False(t, s.Busy())

	dev.Place([]byte{7}, 8)
	ch, err = s.BeginRead(context.Background())
	require.NoError(t, err)
	assert.NoError(t, waitRead(t, ch).Err)
}

func TestSession_Timeout(t *testing.T) {
	s := NewSession(NewMemoryDevice(), 20*time.Millisecond, zap.NewNop())

	ch, err := s.BeginRead(context.Background())
	require.NoError(t, err)
	res := waitRead(t, ch)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Nil(t, res.Payload)
}

func TestSession_Unavailable(t *testing.T) {
	s := NewSession(nil, time.Second, zap.NewNop())
	_, err := s.BeginRead(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.BeginWrite(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSession_Write(t *testing.T) {
	payload := []byte{1, 2, 3, 4}

	tests := []struct {
		name    string
		setup   func(d *MemoryDevice)
		wantErr error
		written bool
	}{
		{
			name:    "success",
			setup:   func(d *MemoryDevice) { d.Place(nil, 16) },
			written: true,
		},
		{
			name:    "exact capacity",
			setup:   func(d *MemoryDevice) { d.Place(nil, len(payload)) },
			written: true,
		},
		{
			name:    "insufficient capacity",
			setup:   func(d *MemoryDevice) { d.Place(nil, len(payload)-1) },
			wantErr: ErrInsufficientCapacity,
		},
		{
			name: "read only",
			setup: func(d *MemoryDevice) {
				d.Place(nil, 16)
				d.SetStatus(StatusReadOnly)
			},
			wantErr: ErrReadOnly,
		},
		{
			name: "not supported",
			setup: func(d *MemoryDevice) {
				d.Place(nil, 16)
				d.SetStatus(StatusNotSupported)
			},
			wantErr: ErrNotSupported,
		},
		{
			name: "connection failure",
			setup: func(d *MemoryDevice) {
				d.FailConnect(errors.New("rf field lost"))
			},
			wantErr: ErrConnection,
		},
		{
			name: "write failure",
			setup: func(d *MemoryDevice) {
				d.Place(nil, 16)
				d.FailWrite(errors.New("tag moved"))
			},
			wantErr: ErrWriteFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewMemoryDevice()
			tt.setup(dev)
			s := NewSession(dev, time.Second, zap.NewNop())

			ch, err := s.BeginWrite(context.Background(), payload)
			require.NoError(t, err)
			err = waitWrite(t, ch)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if tt.written {
				assert.Equal(t, payload, dev.Content())
			} else {
				assert.Empty(t, dev.Content())
			}
			assert.False(t, s.Busy())
		})
	}
}

func TestFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag.bin")
	dev := NewFileDevice(path, 8)
	s := NewSession(dev, time.Second, zap.NewNop())

	ch, err := s.BeginRead(context.Background())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte{9, 9}, 0o600))
	res := waitRead(t, ch)
	require.NoError(t, res.Err)
	assert.Equal(t, []byte{9, 9}, res.Payload)

	wch, err := s.BeginWrite(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, waitWrite(t, wch))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	wch, err = s.BeginWrite(context.Background(), make([]byte, 9))
	require.NoError(t, err)
	assert.ErrorIs(t, waitWrite(t, wch), ErrInsufficientCapacity)

	require.NoError(t, os.Chmod(path, 0o400))
	wch, err = s.BeginWrite(context.Background(), []byte{4})
	require.NoError(t, err)
	assert.ErrorIs(t, waitWrite(t, wch), ErrReadOnly)
}

func TestFileDevice_Directory(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(NewFileDevice(dir, 0), time.Second, zap.NewNop())

	wch, err := s.BeginWrite(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.ErrorIs(t, waitWrite(t, wch), ErrNotSupported)
}
