// Package limiter bounds concurrent provider calls with a FIFO admission gate.
package limiter

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCapacity is the number of provider calls allowed in flight at once.
const DefaultCapacity = 3

// Limiter admits at most Capacity concurrent tasks. Tasks that find the gate
// full wait in submission order; a freed slot is handed directly to the head
// of the queue so later arrivals can never overtake it.
type Limiter struct {
	capacity int

	mu      sync.Mutex
	active  int
	waiters list.List // of chan struct{}
}

func New(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{capacity: capacity}
}

func (l *Limiter) Capacity() int { return l.capacity }

// Running reports the number of admitted tasks.
func (l *Limiter) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Queued reports the number of tasks waiting for a slot.
func (l *Limiter) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.Len()
}

// Run blocks until the task is admitted, runs it and releases the slot.
// If ctx is done before admission the task is not run.
func (l *Limiter) Run(ctx context.Context, task func(context.Context) error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return task(ctx)
}

// Do is Run for tasks that produce a value.
func Do[T any](ctx context.Context, l *Limiter, task func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Run(ctx, func(ctx context.Context) error {
		v, err := task(ctx)
		out = v
		return err
	})
	return out, err
}

func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.active < l.capacity && l.waiters.Len() == 0 {
		l.active++
		l.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	elem := l.waiters.PushBack(ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-ready:
			// Admitted while cancelling: pass the slot on.
			l.mu.Unlock()
			l.release()
		default:
			l.waiters.Remove(elem)
			l.mu.Unlock()
		}
		return ctx.Err()
	}
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if front := l.waiters.Front(); front != nil {
		l.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	l.active--
}
