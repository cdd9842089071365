package transfer

import (
	"io"
	"time"
)

// Progress is one sample of an ongoing transfer.
type Progress struct {
	Transferred int64   `json:"transferred"`
	Total       int64   `json:"total"` // -1 when the size is unknown
	Rate        float64 `json:"rate"`  // Instantaneous throughput in bytes per second
}

// Fraction returns the completed share in [0,1]. An unknown total yields 0
// until the final sample.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Transferred) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// ProgressFunc receives progress samples. It may be nil.
type ProgressFunc func(Progress)

// progressReader reports a sample on every Read, so the sampling rate follows
// the chunk boundaries of whoever drains it.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
	lastAt     time.Time
	now        func() time.Time
}

func newProgressReader(r io.Reader, total int64, onProgress ProgressFunc) *progressReader {
	return &progressReader{
		r:          r,
		total:      total,
		onProgress: onProgress,
		now:        time.Now,
		lastAt:     time.Now(),
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.report(n)
	}
	return n, err
}

func (p *progressReader) report(chunk int) {
	if p.onProgress == nil {
		return
	}
	now := p.now()
	var rate float64
	if elapsed := now.Sub(p.lastAt).Seconds(); elapsed > 0 {
		rate = float64(chunk) / elapsed
	}
	p.lastAt = now
	p.onProgress(Progress{Transferred: p.read, Total: p.total, Rate: rate})
}

// finish emits the terminal sample. When the total was unknown it becomes
// the number of bytes actually moved.
func (p *progressReader) finish() {
	if p.onProgress == nil {
		return
	}
	total := p.total
	if total <= 0 || p.read > total {
		total = p.read
	}
	p.onProgress(Progress{Transferred: total, Total: total})
}
