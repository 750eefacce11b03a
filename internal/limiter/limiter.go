// Package limiter provides a bounded-parallelism task runner. It caps the
// number of concurrently running tasks while keeping queued tasks in FIFO
// order; completion order is not guaranteed.
package limiter

import (
	"sync"
)

// Limiter runs scheduled tasks with at most max running concurrently.
type Limiter struct {
	mu        sync.Mutex
	max       int
	active    int
	highWater int
	queue     []func()
	wg        sync.WaitGroup
}

// New creates a limiter with the given concurrency cap. A cap below one is
// raised to one.
func New(maxConcurrent int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{max: maxConcurrent}
}

// Schedule enqueues a task. The task starts immediately when a slot is free,
// otherwise it waits behind earlier tasks.
func (l *Limiter) Schedule(task func()) {
	l.wg.Add(1)
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.dispatchLocked()
	l.mu.Unlock()
}

// dispatchLocked starts queued tasks while slots are available.
// Caller holds l.mu.
func (l *Limiter) dispatchLocked() {
	for l.active < l.max && len(l.queue) > 0 {
		task := l.queue[0]
		l.queue = l.queue[1:]
		l.active++
		if l.active > l.highWater {
			l.highWater = l.active
		}
		go l.run(task)
	}
}

func (l *Limiter) run(task func()) {
	defer func() {
		l.mu.Lock()
		l.active--
		l.dispatchLocked()
		l.mu.Unlock()
		l.wg.Done()
	}()
	task()
}

// Wait blocks until every scheduled task has completed.
func (l *Limiter) Wait() {
	l.wg.Wait()
}

// HighWaterMark returns the maximum number of tasks that ever ran at once.
func (l *Limiter) HighWaterMark() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.highWater
}

// Map runs fn over every item through the limiter and returns the results in
// input order. It blocks until all tasks have completed.
func Map[T, R any](l *Limiter, items []T, fn func(T) R) []R {
	results := make([]R, len(items))
	for i, item := range items {
		l.Schedule(func() {
			results[i] = fn(item)
		})
	}
	l.Wait()
	return results
}
