package dispatcher

import (
	"fmt"
	"log/slog"

	jgerrors "github.com/vnykmshr/jobgraph/pkg/common/errors"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/fiber"
)

// thread is one master loop. It owns at most one fiber at a time and only
// while switched into it.
type thread struct {
	id     int
	d      *Dispatcher
	logger *slog.Logger
}

// run is the main loop for a thread.
func (t *thread) run() error {
	d := t.d
	for {
		if f, ok := d.resumed.Pop(); ok {
			d.stats.resumes.Add(1)
			d.inst.resumedFiber(d.resumed.Len())
			t.logger.Debug("Resuming fiber.", "fiber", f.ID(), "job", d.bound[f.ID()].name)
			t.drive(f)
			continue
		}

		if j, ok := d.ready.Pop(); ok {
			d.inst.readyDepth(d.ready.Len())
			f, ok := t.acquireFiber(j)
			if !ok {
				t.logger.Warn("Dropping ready job at shutdown.", "job", j.name, "group", j.group.seq)
				return nil
			}
			t.start(f, j)
			continue
		}

		select {
		case <-d.stopCh:
			return nil
		default:
		}
		if !d.wake.Wait(d.stopCh) {
			return nil
		}
	}
}

// acquireFiber returns a free fiber for j. It reports false only when
// shutdown begins while blocked.
func (t *thread) acquireFiber(j *Job) (*fiber.Fiber, bool) {
	d := t.d
	if f, ok := d.pool.TryAcquire(); ok {
		return f, true
	}

	if d.cfg.ExhaustionPolicy == FailFast {
		d.fatal(fmt.Errorf("job %q in group %d: %w (contexts=%d)",
			j.name, j.group.seq, jgerrors.ErrResourceExhausted, d.pool.Size()))
	}

	t.logger.Debug("Fiber pool exhausted, waiting.", "job", j.name, "in_use", d.pool.InUse())
	for {
		// A parked thread must keep driving resumed fibers or a pool whose
		// fibers are all suspended never drains.
		if f, ok := d.resumed.Pop(); ok {
			d.stats.resumes.Add(1)
			d.inst.resumedFiber(d.resumed.Len())
			t.drive(f)
			continue
		}
		if f, ok := d.pool.TryAcquire(); ok {
			return f, true
		}
		f, ok := d.pool.Acquire(d.stopCh, d.interrupt)
		if ok {
			return f, true
		}
		select {
		case <-d.stopCh:
			return nil, false
		default:
		}
	}
}

// start binds j to f and switches into it.
func (t *thread) start(f *fiber.Fiber, j *Job) {
	d := t.d
	d.bound[f.ID()] = j
	f.Assign(d.task(j))
	d.stats.jobsDispatched.Add(1)
	d.inst.jobDispatched(d.pool.InUse())
	t.drive(f)
}

// drive switches into f until it finishes or parks on an event.
func (t *thread) drive(f *fiber.Fiber) {
	d := t.d
	j := d.bound[f.ID()]
	for {
		y := f.SwitchTo()

		switch y.Reason {
		case fiber.YieldFinished:
			d.bound[f.ID()] = nil
			d.pool.Release(f)
			d.inst.fiberReleased(d.pool.InUse())
			d.onJobComplete(j)
			return

		case fiber.YieldSuspended:
			if y.Event == nil {
				d.stats.suspensions.Add(1)
				d.inst.suspended()
				t.logger.Debug("Job parked on null event.", "fiber", f.ID(), "job", j.name)
				return
			}
			parked, err := y.Event.PushWaiting(f)
			if err != nil {
				d.fatal(fmt.Errorf("fiber %d: %w", f.ID(), err))
				return
			}
			if !parked {
				// signalled between the check in Wait and registration
				continue
			}
			d.stats.suspensions.Add(1)
			d.inst.suspended()
			t.logger.Debug("Job suspended.", "fiber", f.ID(), "job", j.name, "group", j.group.seq)
			return
		}
	}
}
