package transfer

import (
	"context"
	"sync"
)

// Stream runs one transfer in the background and exposes its progress as a
// channel. Slow readers only ever see the most recent sample.
type Stream struct {
	events chan Progress
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	err    error
}

// Run starts fn with a cancellable context. fn reports progress through the
// function it is handed.
func Run(ctx context.Context, fn func(ctx context.Context, onProgress ProgressFunc) error) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan Progress, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		err := fn(ctx, s.publish)

		s.mu.Lock()
		s.err = err
		s.closed = true
		close(s.events)
		s.mu.Unlock()

		close(s.done)
	}()

	return s
}

func (s *Stream) publish(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- p:
	default:
		// Drop the stale sample; the buffer is then free for this one.
		select {
		case <-s.events:
		default:
		}
		s.events <- p
	}
}

// Events is closed once the transfer finishes.
func (s *Stream) Events() <-chan Progress {
	return s.events
}

// Done is closed once the transfer finishes.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the transfer finishes and returns its error.
func (s *Stream) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel aborts the transfer. It is safe to call more than once.
func (s *Stream) Cancel() {
	s.cancel()
}
