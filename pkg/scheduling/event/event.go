package event

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/v2/sets/linkedhashset"

	jgerrors "github.com/vnykmshr/jobgraph/pkg/common/errors"
)

// Waiter is an execution context that can park on an Event.
type Waiter interface {
	ID() int
}

// Resumer receives waiters once the Event they parked on is signalled.
type Resumer interface {
	Resume(w Waiter)
}

// Option configures an Event at creation.
type Option func(*Event)

// WithDebug enables the double-wait check in PushWaiting and the empty
// waiter list check on destruction.
func WithDebug() Option {
	return func(e *Event) { e.debug = true }
}

// WithOnDestroy registers fn to run when the last reference is released.
func WithOnDestroy(fn func()) Option {
	return func(e *Event) { e.onDestroy = fn }
}

// Event is a one-shot signal with a waiter list.
type Event struct {
	refs atomic.Int32

	mu        sync.Mutex
	signalled bool
	waiters   *linkedhashset.Set[Waiter]
	done      chan struct{}

	resumer   Resumer
	debug     bool
	onDestroy func()
}

// New creates an unsignalled Event and returns the first reference to it.
// resumer may be nil when no execution context will ever wait on the event.
func New(resumer Resumer, opts ...Option) Ref {
	e := &Event{
		waiters: linkedhashset.New[Waiter](),
		done:    make(chan struct{}),
		resumer: resumer,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.refs.Store(1)
	return Ref{ev: e}
}

// PushWaiting registers w as a waiter. It returns parked=false when the
// event is already signalled, in which case the caller must continue
// immediately instead of suspending.
func (e *Event) PushWaiting(w Waiter) (parked bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.signalled {
		return false, nil
	}
	if e.debug && e.waiters.Contains(w) {
		return false, fmt.Errorf("context %d: %w", w.ID(), jgerrors.ErrDoubleWait)
	}
	e.waiters.Add(w)
	return true, nil
}

// Signal marks the event signalled and hands every waiter to the Resumer.
// It reports whether this call performed the transition; later calls are
// no-ops.
func (e *Event) Signal() bool {
	e.mu.Lock()
	if e.signalled {
		e.mu.Unlock()
		return false
	}
	e.signalled = true
	waiters := e.waiters.Values()
	e.waiters.Clear()
	close(e.done)
	e.mu.Unlock()

	if len(waiters) > 0 && e.resumer == nil {
		panic("event: waiters present but no resumer configured")
	}
	for _, w := range waiters {
		e.resumer.Resume(w)
	}
	return true
}

// IsSignalled reports whether Signal has been called.
func (e *Event) IsSignalled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signalled
}

// Done returns a channel closed when the event is signalled.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Waiting returns the number of parked waiters.
func (e *Event) Waiting() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waiters.Size()
}

// Incref adds a reference.
func (e *Event) Incref() {
	e.refs.Add(1)
}

// Decref drops a reference and destroys the event when none remain.
func (e *Event) Decref() {
	n := e.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("event: reference count dropped below zero")
	}
	if e.debug && e.Waiting() != 0 {
		panic("event: destroyed with parked waiters")
	}
	if e.onDestroy != nil {
		e.onDestroy()
	}
}

// RefCount returns the number of live references.
func (e *Event) RefCount() int32 {
	return e.refs.Load()
}
