package features

import "sync"

// Window is a bounded ring buffer of prices. The feed writes to it while
// controllers read copies, so it is safe for concurrent use.
type Window struct {
	mu   sync.RWMutex
	buf  []float64
	head int // next write position
	size int
}

// NewWindow creates a window that retains the last capacity prices.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends a price, evicting the oldest one when full.
func (w *Window) Push(price float64) error {
	if !validPrice(price) {
		return ErrInvalidPrice
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf[w.head] = price
	w.head = (w.head + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
	return nil
}

// Values returns a copy of the retained prices, oldest first.
func (w *Window) Values() []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]float64, w.size)
	start := (w.head - w.size + len(w.buf)) % len(w.buf)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(start+i)%len(w.buf)]
	}
	return out
}

// Last returns the most recent price.
func (w *Window) Last() (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.size == 0 {
		return 0, false
	}
	return w.buf[(w.head-1+len(w.buf))%len(w.buf)], true
}

// Len returns the number of retained prices.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}
