package progress

import (
	"math"
	"time"

	"github.com/mrlokans/librarysync/internal/transfer"
)

var almostOne = math.Nextafter(1, 0)

// Batch tracks a group of transfers and publishes their combined percentage
// through a Throttle. The final 100 is always published.
type Batch struct {
	agg      *Aggregator
	throttle *Throttle[float64]
}

func NewBatch(total int, interval time.Duration, onUpdate func(float64)) *Batch {
	b := &Batch{throttle: NewThrottle(interval, onUpdate)}
	b.agg = NewAggregator(total, b.throttle.Submit)
	return b
}

func (b *Batch) Report(file string, p float64) {
	b.agg.Report(file, p)
	b.flushIfDone()
}

func (b *Batch) Complete(file string) {
	b.agg.Complete(file)
	b.flushIfDone()
}

// Track returns a transfer callback feeding file's samples into the batch.
// The last byte moved is not the same as a finished transfer, so the file
// is held short of 1 until Complete is called.
func (b *Batch) Track(file string) transfer.ProgressFunc {
	return func(p transfer.Progress) {
		if p.Total > 0 {
			b.Report(file, math.Min(p.Fraction(), almostOne))
		}
	}
}

// Overall returns the batch percentage, ignoring throttling.
func (b *Batch) Overall() float64 {
	return b.agg.Overall()
}

func (b *Batch) Done() bool {
	return b.agg.Done()
}

// Stop drops any update not yet published.
func (b *Batch) Stop() {
	b.throttle.Stop()
}

func (b *Batch) flushIfDone() {
	if b.agg.Done() {
		b.throttle.Flush()
	}
}
