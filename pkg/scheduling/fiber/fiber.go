package fiber

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/vnykmshr/jobgraph/pkg/scheduling/event"
)

// State is the lifecycle state of a Fiber.
type State int32

const (
	// Free fibers sit in the pool waiting to be assigned a task.
	Free State = iota
	// Running fibers have a task and are executing or about to be.
	Running
	// Suspended fibers are parked inside Wait.
	Suspended
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Reason says why a fiber handed control back to its master.
type Reason int

const (
	// YieldFinished means the assigned task returned.
	YieldFinished Reason = iota
	// YieldSuspended means the task is waiting on Yield.Event.
	YieldSuspended
)

// Yield is what SwitchTo returns.
type Yield struct {
	Reason Reason
	Event  *event.Event
}

// Task is the body a fiber executes. ctx identifies the fiber to Wait.
type Task func(ctx context.Context)

type fiberKey struct{}

// Fiber is a pooled execution context.
type Fiber struct {
	id    int
	pool  *Pool
	state atomic.Int32
	task  Task

	resume chan struct{}
	yield  chan Yield
}

// ID returns the fiber's index in its pool.
func (f *Fiber) ID() int {
	return f.id
}

// Pool returns the pool the fiber belongs to.
func (f *Fiber) Pool() *Pool {
	return f.pool
}

// Owner returns the Resumer responsible for the fiber's pool, or nil.
func (f *Fiber) Owner() event.Resumer {
	return f.pool.owner
}

// State returns the current lifecycle state.
func (f *Fiber) State() State {
	return State(f.state.Load())
}

// Assign binds a task to a free fiber and marks it Running.
func (f *Fiber) Assign(task Task) {
	if !f.state.CompareAndSwap(int32(Free), int32(Running)) {
		panic(fmt.Sprintf("fiber %d: assign while %s", f.id, f.State()))
	}
	f.task = task
}

// SwitchTo transfers control into the fiber and blocks until it yields.
func (f *Fiber) SwitchTo() Yield {
	f.resume <- struct{}{}
	return <-f.yield
}

// loop is the fiber's body: wait for a task, run it, yield Finished.
func (f *Fiber) loop() {
	defer f.pool.wg.Done()

	for {
		select {
		case <-f.resume:
		case <-f.pool.kill:
			return
		}

		task := f.task
		task(context.WithValue(f.pool.base, fiberKey{}, f))
		f.task = nil
		f.yield <- Yield{Reason: YieldFinished}
	}
}

// suspend yields to the master and parks until switched into again.
func (f *Fiber) suspend(ev *event.Event) {
	f.state.Store(int32(Suspended))
	f.yield <- Yield{Reason: YieldSuspended, Event: ev}

	select {
	case <-f.resume:
		f.state.Store(int32(Running))
	case <-f.pool.kill:
		runtime.Goexit()
	}
}

// FromContext returns the fiber executing under ctx.
func FromContext(ctx context.Context) (*Fiber, bool) {
	f, ok := ctx.Value(fiberKey{}).(*Fiber)
	return f, ok
}

// Wait suspends the calling fiber until ev is signalled. It returns
// immediately, without yielding, if ev already is. It reports false when
// ctx does not belong to a fiber.
//
// Wait must be called on the goroutine running the fiber's task. Handing
// the task's ctx to another goroutine and waiting there is not supported;
// it panics if the fiber is not Running at the time of the call.
func Wait(ctx context.Context, ev *event.Event) bool {
	f, ok := FromContext(ctx)
	if !ok {
		return false
	}
	if st := f.State(); st != Running {
		panic(fmt.Sprintf("fiber %d: Wait called while %s, off the task goroutine", f.id, st))
	}
	if ev == nil {
		// null handles never signal
		f.suspend(nil)
		return true
	}
	if ev.IsSignalled() {
		return true
	}
	f.suspend(ev)
	return true
}
