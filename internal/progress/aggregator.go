// Package progress folds per-file transfer samples into one batch-wide
// percentage and limits how often that percentage is published.
package progress

import (
	"math"
	"sync"
)

// justBelowFull is the highest value reported while any file is unfinished.
var justBelowFull = math.Nextafter(100, 0)

// Aggregator combines the progress of a fixed number of files into a single
// 0-100 figure. It is safe for concurrent use by the transfers it tracks.
//
// The figure never decreases and reaches 100 only once every file has
// completed. Each file completes exactly once, either when it reports a
// fraction of 1 or when Complete is called.
type Aggregator struct {
	mu        sync.Mutex
	total     int
	fractions map[string]float64
	completed map[string]struct{}
	overall   float64
	emit      func(float64)
}

// NewAggregator tracks total files and hands every new overall value to
// emit, which is called with the aggregator's lock held and must not call
// back into it. emit may be nil.
func NewAggregator(total int, emit func(float64)) *Aggregator {
	if total < 1 {
		total = 1
	}
	return &Aggregator{
		total:     total,
		fractions: make(map[string]float64),
		completed: make(map[string]struct{}),
		emit:      emit,
	}
}

// Report records that file is p of the way done. p is clamped to [0,1];
// a value of 1 completes the file. Reports for completed files are ignored.
func (a *Aggregator) Report(file string, p float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, done := a.completed[file]; done {
		return
	}
	switch {
	case math.IsNaN(p) || p < 0:
		p = 0
	case p >= 1:
		a.completeLocked(file)
		return
	}
	if p < a.fractions[file] {
		p = a.fractions[file]
	}
	a.fractions[file] = p
	a.publishLocked()
}

// Complete marks file as finished. Repeated calls count once.
func (a *Aggregator) Complete(file string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, done := a.completed[file]; done {
		return
	}
	a.completeLocked(file)
}

func (a *Aggregator) completeLocked(file string) {
	delete(a.fractions, file)
	a.completed[file] = struct{}{}
	a.publishLocked()
}

func (a *Aggregator) publishLocked() {
	sum := float64(len(a.completed))
	for _, p := range a.fractions {
		sum += p
	}
	value := sum / float64(a.total) * 100

	if len(a.completed) < a.total {
		value = math.Min(value, justBelowFull)
	} else {
		value = 100
	}
	if value < a.overall {
		value = a.overall
	}
	a.overall = value

	if a.emit != nil {
		a.emit(value)
	}
}

// Overall returns the current batch percentage.
func (a *Aggregator) Overall() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overall
}

// CompletedCount returns how many files have finished.
func (a *Aggregator) CompletedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.completed)
}

// Done reports whether every file has finished.
func (a *Aggregator) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.completed) >= a.total
}
