package limiter

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeverExceedsMax(t *testing.T) {
	t.Parallel()

	l := New(2)
	var active, peak int32

	for range 5 {
		l.Schedule(func() {
			cur := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		})
	}
	l.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.LessOrEqual(t, l.HighWaterMark(), 2)
	assert.GreaterOrEqual(t, l.HighWaterMark(), 1)
}

func TestAllTasksRun(t *testing.T) {
	t.Parallel()

	l := New(3)
	var count int32
	for range 20 {
		l.Schedule(func() {
			atomic.AddInt32(&count, 1)
		})
	}
	l.Wait()

	assert.EqualValues(t, 20, atomic.LoadInt32(&count))
}

func TestQueuedTasksStartFIFO(t *testing.T) {
	t.Parallel()

	l := New(1)
	var mu sync.Mutex
	var order []int

	for i := range 5 {
		l.Schedule(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	l.Wait()

	require.Len(t, order, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestZeroMaxIsRaisedToOne(t *testing.T) {
	t.Parallel()

	l := New(0)
	done := false
	l.Schedule(func() { done = true })
	l.Wait()

	assert.True(t, done)
	assert.Equal(t, 1, l.HighWaterMark())
}

func TestMapPreservesInputOrder(t *testing.T) {
	t.Parallel()

	l := New(4)
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	got := Map(l, items, func(v int) int {
		time.Sleep(time.Duration(8-v) * time.Millisecond)
		return v * 10
	})

	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80}, got)
}
