package app

import (
	"context"
	"sync/atomic"
)

// WorkerPool bounds how many fetches run at once
type WorkerPool struct {
	slots chan struct{}
	inUse atomic.Int32
}

// NewWorkerPool creates a pool with the given number of slots
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or ctx is done.
// The returned function releases the slot.
func (p *WorkerPool) Acquire(ctx context.Context) (func(), error) {
	select {
	case p.slots <- struct{}{}:
		p.inUse.Add(1)
		var released atomic.Bool
		return func() {
			if released.CompareAndSwap(false, true) {
				p.inUse.Add(-1)
				<-p.slots
			}
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InUse returns the number of occupied slots
func (p *WorkerPool) InUse() int {
	return int(p.inUse.Load())
}

// Capacity returns the number of slots
func (p *WorkerPool) Capacity() int {
	return cap(p.slots)
}
