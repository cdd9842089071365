package progress

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarysync/internal/transfer"
)

type collector struct {
	mu     sync.Mutex
	values []float64
}

func (c *collector) add(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

func (c *collector) all() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.values...)
}

type step struct {
	file string
	p    float64
}

// interleave produces a random order of per-file steps 0 -> 1 for n files,
// preserving each file's own order.
func interleave(r *rand.Rand, n, stepsPerFile int) []step {
	queues := make([][]step, n)
	for i := range queues {
		file := fmt.Sprintf("file-%d", i)
		for s := 0; s <= stepsPerFile; s++ {
			queues[i] = append(queues[i], step{file: file, p: float64(s) / float64(stepsPerFile)})
		}
	}

	var out []step
	for {
		var live []int
		for i, q := range queues {
			if len(q) > 0 {
				live = append(live, i)
			}
		}
		if len(live) == 0 {
			return out
		}
		i := live[r.Intn(len(live))]
		out = append(out, queues[i][0])
		queues[i] = queues[i][1:]
	}
}

func TestAggregator_MonotonicAcrossInterleavings(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		c := &collector{}
		agg := NewAggregator(3, c.add)
		steps := interleave(r, 3, 1+r.Intn(6))

		finished := map[string]bool{}
		for _, s := range steps {
			agg.Report(s.file, s.p)
			if s.p == 1 {
				finished[s.file] = true
			}
			if len(finished) < 3 {
				assert.Less(t, agg.Overall(), 100.0, "round %d reached 100 early", round)
			}
		}

		values := c.all()
		require.NotEmpty(t, values)
		for i := 1; i < len(values); i++ {
			require.GreaterOrEqual(t, values[i], values[i-1], "round %d decreased at %d", round, i)
		}
		assert.Equal(t, 100.0, values[len(values)-1])
		assert.Equal(t, 3, agg.CompletedCount())
	}
}

func TestAggregator_CompletionCountsOnce(t *testing.T) {
	agg := NewAggregator(2, nil)

	agg.Report("a", 1)
	agg.Complete("a")
	agg.Report("a", 0.2)
	assert.Equal(t, 1, agg.CompletedCount())
	assert.Equal(t, 50.0, agg.Overall())
	assert.False(t, agg.Done())

	agg.Complete("b")
	agg.Complete("b")
	assert.Equal(t, 2, agg.CompletedCount())
	assert.Equal(t, 100.0, agg.Overall())
	assert.True(t, agg.Done())
}

func TestAggregator_FormulaAndClamping(t *testing.T) {
	agg := NewAggregator(4, nil)

	agg.Complete("a")
	agg.Report("b", 0.5)
	assert.InDelta(t, 37.5, agg.Overall(), 1e-9)

	// A file going backwards does not pull the total down.
	agg.Report("b", 0.1)
	assert.InDelta(t, 37.5, agg.Overall(), 1e-9)

	agg.Report("c", -3)
	assert.InDelta(t, 37.5, agg.Overall(), 1e-9)
}

func TestAggregator_ConcurrentCompletions(t *testing.T) {
	const files = 50
	c := &collector{}
	agg := NewAggregator(files, c.add)

	var wg sync.WaitGroup
	for i := 0; i < files; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			file := fmt.Sprintf("f%d", i)
			agg.Report(file, 0.5)
			agg.Report(file, 1)
			agg.Complete(file)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, files, agg.CompletedCount())
	values := c.all()
	for i := 1; i < len(values); i++ {
		require.GreaterOrEqual(t, values[i], values[i-1])
	}
	assert.Equal(t, 100.0, values[len(values)-1])
}

func TestThrottle_LatestWins(t *testing.T) {
	c := &collector{}
	th := NewThrottle(30*time.Millisecond, c.add)

	for i := 1; i <= 100; i++ {
		th.Submit(float64(i))
	}
	assert.Empty(t, c.all(), "the first sample is held back")

	require.Eventually(t, func() bool { return len(c.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []float64{100}, c.all())
}

func TestThrottle_RateLimited(t *testing.T) {
	c := &collector{}
	interval := 20 * time.Millisecond
	th := NewThrottle(interval, c.add)

	deadline := time.Now().Add(10 * interval)
	for i := 0; time.Now().Before(deadline); i++ {
		th.Submit(float64(i))
		time.Sleep(time.Millisecond)
	}
	th.Flush()

	// At most one emission per elapsed interval, plus the flush.
	assert.LessOrEqual(t, len(c.all()), 12)
	assert.GreaterOrEqual(t, len(c.all()), 2)
}

func TestThrottle_FlushAndStop(t *testing.T) {
	c := &collector{}
	th := NewThrottle(time.Hour, c.add)

	th.Submit(1)
	th.Submit(2)
	th.Flush()
	assert.Equal(t, []float64{2}, c.all())

	th.Flush()
	assert.Equal(t, []float64{2}, c.all(), "nothing pending")

	th.Submit(3)
	th.Stop()
	th.Flush()
	th.Submit(4)
	assert.Equal(t, []float64{2}, c.all())
}

func TestThrottle_ZeroIntervalIsSynchronous(t *testing.T) {
	c := &collector{}
	th := NewThrottle(0, c.add)
	th.Submit(1)
	th.Submit(2)
	assert.Equal(t, []float64{1, 2}, c.all())
}

func TestBatch(t *testing.T) {
	c := &collector{}
	batch := NewBatch(2, time.Hour, c.add)

	track := batch.Track("a")
	track(transfer.Progress{Transferred: 50, Total: 100})
	track(transfer.Progress{Transferred: 100, Total: 100})
	assert.Less(t, batch.Overall(), 50.0, "last byte is not completion")

	batch.Complete("a")
	batch.Report("b", 0.5)
	assert.Empty(t, c.all(), "throttled until the batch finishes")

	batch.Complete("b")
	assert.True(t, batch.Done())
	assert.Equal(t, []float64{100}, c.all(), "completion is flushed immediately")
}
