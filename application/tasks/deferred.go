package tasks

import (
	"context"
	"sync"
)

// Deferred collects tasks raised during a request so they reach the
// pool only after the response has been written.
type Deferred struct {
	mu    sync.Mutex
	items []Task
}

// Add appends a task to the queue.
func (d *Deferred) Add(task Task) {
	d.mu.Lock()
	d.items = append(d.items, task)
	d.mu.Unlock()
}

// Len reports how many tasks are queued.
func (d *Deferred) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Flush submits the queued tasks to the pool in order and empties the
// queue.
func (d *Deferred) Flush(pool *Pool) {
	d.mu.Lock()
	items := d.items
	d.items = nil
	d.mu.Unlock()
	for _, task := range items {
		pool.Submit(task)
	}
}

type deferredKey struct{}

// WithDeferred returns a context carrying a fresh deferred queue.
func WithDeferred(ctx context.Context) (context.Context, *Deferred) {
	d := &Deferred{}
	return context.WithValue(ctx, deferredKey{}, d), d
}

// DeferredFrom returns the queue carried by ctx, or nil when the
// caller did not install one.
func DeferredFrom(ctx context.Context) *Deferred {
	d, _ := ctx.Value(deferredKey{}).(*Deferred)
	return d
}
