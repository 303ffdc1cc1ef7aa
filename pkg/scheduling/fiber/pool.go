package fiber

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vnykmshr/jobgraph/pkg/scheduling/event"
)

// Option configures a Pool.
type Option func(*Pool)

// WithOwner records the Resumer responsible for this pool's fibers. Any
// Resumer handed one of them can forward it there.
func WithOwner(owner event.Resumer) Option {
	return func(p *Pool) { p.owner = owner }
}

// Pool is a fixed-capacity set of fibers. Every fiber goroutine is started
// by NewPool and stopped by Destroy.
type Pool struct {
	base   context.Context
	owner  event.Resumer
	fibers []*Fiber
	free   chan *Fiber
	inUse  atomic.Int32

	kill        chan struct{}
	destroyOnce sync.Once
	wg          sync.WaitGroup
}

// NewPool prebuilds size fibers. Tasks run with contexts derived from base.
func NewPool(base context.Context, size int, opts ...Option) *Pool {
	if size <= 0 {
		panic("fiber pool size must be positive")
	}
	if base == nil {
		base = context.Background()
	}

	p := &Pool{
		base:   base,
		fibers: make([]*Fiber, size),
		free:   make(chan *Fiber, size),
		kill:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := 0; i < size; i++ {
		f := &Fiber{
			id:     i,
			pool:   p,
			resume: make(chan struct{}),
			yield:  make(chan Yield),
		}
		p.fibers[i] = f
		p.free <- f
		p.wg.Add(1)
		go f.loop()
	}
	return p
}

// TryAcquire takes a free fiber without blocking.
func (p *Pool) TryAcquire() (*Fiber, bool) {
	select {
	case f := <-p.free:
		p.inUse.Add(1)
		return f, true
	default:
		return nil, false
	}
}

// Acquire takes a free fiber, blocking until one is released or any of
// the cancel channels (at most two) becomes ready.
func (p *Pool) Acquire(cancel ...<-chan struct{}) (*Fiber, bool) {
	var c0, c1 <-chan struct{}
	switch len(cancel) {
	case 0:
	case 1:
		c0 = cancel[0]
	case 2:
		c0, c1 = cancel[0], cancel[1]
	default:
		panic("fiber: Acquire supports at most two cancel channels")
	}

	select {
	case f := <-p.free:
		p.inUse.Add(1)
		return f, true
	case <-c0:
		return nil, false
	case <-c1:
		return nil, false
	}
}

// Release returns a fiber whose task finished to the free list.
func (p *Pool) Release(f *Fiber) {
	f.state.Store(int32(Free))
	p.inUse.Add(-1)
	p.free <- f
}

// Owner returns the Resumer set with WithOwner, or nil.
func (p *Pool) Owner() event.Resumer {
	return p.owner
}

// Size returns the fixed capacity.
func (p *Pool) Size() int {
	return len(p.fibers)
}

// InUse returns the number of fibers running or suspended.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// Fiber returns the fiber with the given id.
func (p *Pool) Fiber(id int) *Fiber {
	return p.fibers[id]
}

// Destroy stops every fiber goroutine and waits for them to exit. Suspended
// tasks are unwound. It must not be called while a master is inside
// SwitchTo.
func (p *Pool) Destroy() {
	p.destroyOnce.Do(func() {
		close(p.kill)
		p.wg.Wait()
	})
}
