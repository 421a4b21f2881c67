package exchange

import (
	"context"
	"slices"
	"sync"
	"time"
)

const memoryPoll = 5 * time.Millisecond

// MemoryDevice is an in-process reader holding at most one tag. It backs
// tests and the simulated reader.
type MemoryDevice struct {
	mu         sync.Mutex
	present    bool
	content    []byte
	status     Status
	capacity   int
	connectErr error
	writeErr   error
	closed     int
}

// NewMemoryDevice creates a reader with no tag in range.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{}
}

// Place puts a read-write tag holding content with the given capacity in range.
func (d *MemoryDevice) Place(content []byte, capacity int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present = true
	d.content = slices.Clone(content)
	d.status = StatusReadWrite
	d.capacity = capacity
}

// SetStatus changes the status reported by the tag in range.
func (d *MemoryDevice) SetStatus(status Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
}

// FailConnect makes subsequent connections fail with err. Nil clears it.
func (d *MemoryDevice) FailConnect(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectErr = err
}

// FailWrite makes subsequent writes fail with err. Nil clears it.
func (d *MemoryDevice) FailWrite(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErr = err
}

// Remove takes the tag out of range.
func (d *MemoryDevice) Remove() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present = false
}

// Content returns what the tag currently stores.
func (d *MemoryDevice) Content() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.content)
}

// Closed returns how many connections have been closed.
func (d *MemoryDevice) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Connect waits until a tag is placed.
func (d *MemoryDevice) Connect(ctx context.Context) (Tag, error) {
	ticker := time.NewTicker(memoryPoll)
	defer ticker.Stop()
	for {
		d.mu.Lock()
		present, err := d.present, d.connectErr
		d.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if present {
			return &memoryTag{device: d}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

type memoryTag struct {
	device *MemoryDevice
}

func (t *memoryTag) QueryStatus(context.Context) (Status, int, error) {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	return t.device.status, t.device.capacity, nil
}

func (t *memoryTag) Read(context.Context) ([]byte, error) {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	return slices.Clone(t.device.content), nil
}

func (t *memoryTag) Write(_ context.Context, payload []byte) error {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	if t.device.writeErr != nil {
		return t.device.writeErr
	}
	t.device.content = slices.Clone(payload)
	return nil
}

func (t *memoryTag) Close() error {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	t.device.closed++
	return nil
}
