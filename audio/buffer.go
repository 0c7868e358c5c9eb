package audio

import "sync"

// CaptureBuffer is the hand-off point between a device callback, which
// appends, and the controller, which clears and drains. It never holds more
// than its limit.
type CaptureBuffer struct {
	mu      sync.Mutex
	samples []float32
	limit   int
}

// NewCaptureBuffer returns an empty buffer holding at most limit samples.
func NewCaptureBuffer(limit int) *CaptureBuffer {
	if limit < 0 {
		limit = 0
	}
	return &CaptureBuffer{limit: limit}
}

// AppendBounded appends as many samples as fit under the limit and drops the
// rest. It reports how many samples were kept.
func (b *CaptureBuffer) AppendBounded(samples []float32) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.samples)
	if room <= 0 {
		return 0
	}
	if len(samples) > room {
		samples = samples[:room]
	}
	b.samples = append(b.samples, samples...)
	return len(samples)
}

// ClearAndReserve empties the buffer and makes sure it can hold limit samples
// without growing.
func (b *CaptureBuffer) ClearAndReserve() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cap(b.samples) < b.limit {
		b.samples = make([]float32, 0, b.limit)
		return
	}
	b.samples = b.samples[:0]
}

// SwapOut returns the accumulated samples and leaves the buffer empty. The
// returned slice is no longer referenced by the buffer.
func (b *CaptureBuffer) SwapOut() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.samples
	if out == nil {
		out = []float32{}
	}
	b.samples = nil
	return out
}

func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

func (b *CaptureBuffer) Limit() int {
	return b.limit
}
