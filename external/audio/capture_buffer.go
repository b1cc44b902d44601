package audio

import (
	"errors"
	"sync"
)

var (
	ErrSourceClosed  = errors.New("audio source closed")
	ErrDeviceStopped = errors.New("capture device stopped")
)

// captureBuffer bridges a device callback to blocking frame reads. When a
// reader falls behind by more than limit bytes the oldest audio is dropped.
type captureBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	limit  int
	closed bool
	err    error
}

func newCaptureBuffer(limit int) *captureBuffer {
	b := &captureBuffer{limit: limit}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *captureBuffer) write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; b.limit > 0 && over > 0 {
		b.data = append(b.data[:0], b.data[(over+1)&^1:]...)
	}
	b.cond.Broadcast()
}

func (b *captureBuffer) read(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) < len(buf) && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		if b.err != nil {
			return 0, b.err
		}
		return 0, ErrSourceClosed
	}
	n := copy(buf, b.data)
	b.data = append(b.data[:0], b.data[n:]...)
	return n, nil
}

func (b *captureBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.data = nil
	b.cond.Broadcast()
}

// fail ends the buffer with err when the device stops on its own. It has
// no effect after close.
func (b *captureBuffer) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.err = err
	b.data = nil
	b.cond.Broadcast()
}
