package progress

import (
	"sync"
	"time"
)

// DefaultInterval is the default spacing between published updates.
const DefaultInterval = 500 * time.Millisecond

// Throttle publishes at most one value per interval. The first value of a
// quiet period is held back rather than emitted immediately; whatever value
// is latest when the interval ends is the one published. Nothing is queued.
type Throttle[T any] struct {
	interval time.Duration
	emit     func(T)

	// emitMu orders emissions so a slow callback cannot be overtaken by a
	// newer value.
	emitMu sync.Mutex

	mu         sync.Mutex
	pending    T
	hasPending bool
	armed      bool
	gen        uint64
	stopped    bool
}

// NewThrottle returns a throttle that calls emit. An interval of zero or
// less disables throttling and emits synchronously.
func NewThrottle[T any](interval time.Duration, emit func(T)) *Throttle[T] {
	return &Throttle[T]{interval: interval, emit: emit}
}

// Submit offers a new value, replacing any value not yet published.
func (t *Throttle[T]) Submit(v T) {
	if t.interval <= 0 {
		t.emitMu.Lock()
		defer t.emitMu.Unlock()
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			t.emit(v)
		}
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.pending = v
	t.hasPending = true
	if !t.armed {
		t.armed = true
		gen := t.gen
		time.AfterFunc(t.interval, func() { t.fire(gen) })
	}
}

func (t *Throttle[T]) fire(gen uint64) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if gen != t.gen || t.stopped {
		t.mu.Unlock()
		return
	}
	v, ok := t.take()
	t.mu.Unlock()

	if ok {
		t.emit(v)
	}
}

// take must be called with mu held.
func (t *Throttle[T]) take() (T, bool) {
	v, ok := t.pending, t.hasPending
	var zero T
	t.pending = zero
	t.hasPending = false
	t.armed = false
	t.gen++
	return v, ok
}

// Flush publishes the pending value now, if there is one.
func (t *Throttle[T]) Flush() {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	v, ok := t.take()
	t.mu.Unlock()

	if ok {
		t.emit(v)
	}
}

// Stop discards the pending value. Later submissions are ignored.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.take()
	t.stopped = true
}
