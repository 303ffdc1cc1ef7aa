package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	jgerrors "github.com/vnykmshr/jobgraph/pkg/common/errors"
	"github.com/vnykmshr/jobgraph/pkg/metrics"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/event"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/fiber"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/graph"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/queue"
)

// tracerName is the instrumentation scope name for job spans.
const tracerName = "github.com/vnykmshr/jobgraph"

const (
	stateIdle int32 = iota
	stateRunning
	stateClosed
)

// Dispatcher owns the thread pool, the fiber pool and the queues that feed
// them. It implements graph.Submitter and event.Resumer.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
	reg    *metrics.Registry
	inst   instruments

	state atomic.Int32
	mu    sync.Mutex

	pool    *fiber.Pool
	bound   []*Job
	ready   *queue.Queue[*Job]
	resumed *queue.Queue[*fiber.Fiber]
	wake    *queue.Signal
	// interrupt wakes threads blocked on fiber acquisition when a
	// suspended fiber becomes runnable.
	interrupt chan struct{}

	threads      errgroup.Group
	stopCh       chan struct{}
	shutdownOnce sync.Once
	shutdownDone chan struct{}

	groupSeq atomic.Uint64
	stats    counters
}

type counters struct {
	graphsSubmitted atomic.Int64
	jobsDispatched  atomic.Int64
	jobsCompleted   atomic.Int64
	jobsFailed      atomic.Int64
	suspensions     atomic.Int64
	resumes         atomic.Int64
	groupsCompleted atomic.Int64
	fencesSignalled atomic.Int64
}

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	GraphsSubmitted int64
	JobsDispatched  int64
	JobsCompleted   int64
	JobsFailed      int64
	Suspensions     int64
	Resumes         int64
	GroupsCompleted int64
	FencesSignalled int64
	FibersInUse     int
	ReadyJobs       int
	ResumedFibers   int
}

// New creates a dispatcher. No goroutines start until Init or the first
// Submit.
func New(cfg Config) (*Dispatcher, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	reg := cfg.Metrics.Build()
	d := &Dispatcher{
		cfg:          cfg,
		reg:          reg,
		logger:       cfg.Logger.With("component", "dispatcher", "dispatcher", cfg.Name),
		tracer:       tracer,
		inst:         newInstruments(reg, cfg.Name),
		bound:        make([]*Job, cfg.Contexts),
		ready:        queue.New[*Job](),
		resumed:      queue.New[*fiber.Fiber](),
		wake:         queue.NewSignal(cfg.Threads),
		interrupt:    make(chan struct{}, cfg.Threads),
		stopCh:       make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}
	return d, nil
}

// MustNew is New that panics on an invalid configuration.
func MustNew(cfg Config) *Dispatcher {
	d, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

// Init starts the threads and prebuilds the fiber pool. It is idempotent
// and returns ErrClosed after Shutdown.
func (d *Dispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state.Load() {
	case stateRunning:
		return nil
	case stateClosed:
		return fmt.Errorf("cannot init dispatcher %q: %w", d.cfg.Name, jgerrors.ErrClosed)
	}

	d.pool = fiber.NewPool(context.Background(), d.cfg.Contexts, fiber.WithOwner(d))
	d.inst.poolSize(d.cfg.Contexts)

	for i := 0; i < d.cfg.Threads; i++ {
		t := &thread{id: i, d: d, logger: d.logger.With("thread", i)}
		d.threads.Go(t.run)
	}
	d.state.Store(stateRunning)

	d.logger.Info("Dispatcher started.",
		"threads", d.cfg.Threads,
		"contexts", d.cfg.Contexts,
		"policy", d.cfg.ExhaustionPolicy.String())
	return nil
}

// Running reports whether threads are active.
func (d *Dispatcher) Running() bool {
	return d.state.Load() == stateRunning
}

// Shutdown stops the threads once they run out of work, joins them and
// destroys the fiber pool. Jobs still suspended are unwound. The returned
// channel closes when shutdown is complete. It must not be awaited from
// inside a job.
func (d *Dispatcher) Shutdown() <-chan struct{} {
	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		wasRunning := d.state.Load() == stateRunning
		d.state.Store(stateClosed)
		d.mu.Unlock()

		if !wasRunning {
			close(d.shutdownDone)
			return
		}

		close(d.stopCh)
		go func() {
			defer close(d.shutdownDone)
			if err := d.threads.Wait(); err != nil {
				d.logger.Error("Thread exited with error.", "error", err)
			}
			d.pool.Destroy()
			d.logger.Info("Dispatcher stopped.",
				"jobs_completed", d.stats.jobsCompleted.Load(),
				"stranded_ready", d.ready.Len(),
				"stranded_resumed", d.resumed.Len())
		}()
	})
	return d.shutdownDone
}

// NewBuilder returns a graph builder whose fences resume fibers on d.
func (d *Dispatcher) NewBuilder(opts ...graph.Option) *graph.Builder {
	if d.cfg.Debug {
		opts = append([]graph.Option{graph.WithEventOptions(event.WithDebug())}, opts...)
	}
	return graph.New(d, opts...)
}

// CreateEvent returns a manual event for synchronizing jobs.
func (d *Dispatcher) CreateEvent() event.Ref {
	if d.cfg.Debug {
		return event.New(d, event.WithDebug())
	}
	return event.New(d)
}

// Submit consumes b and starts executing its graph. It fails with
// ErrInvalidGraph when nothing was pushed.
func (d *Dispatcher) Submit(b *graph.Builder) error {
	return b.Kick(d)
}

// SubmitGraph implements graph.Submitter. It starts the dispatcher if Init
// has not been called yet.
func (d *Dispatcher) SubmitGraph(sub graph.Submission) error {
	c, err := buildChain(sub, func() uint64 { return d.groupSeq.Add(1) })
	if err != nil {
		releaseFences(sub.Fences)
		return err
	}

	if d.state.Load() != stateRunning {
		if err := d.Init(); err != nil {
			releaseChain(c)
			return jgerrors.NewOperationError("dispatcher", "Submit", err).
				WithContext(fmt.Sprintf("%d groups, %d jobs", c.groups, c.jobs))
		}
	}

	d.stats.graphsSubmitted.Add(1)
	d.inst.graphSubmitted()
	d.logger.Debug("Graph submitted.", "groups", c.groups, "jobs", c.jobs, "first_group", c.head.seq)

	for i := range c.leading {
		d.signalFence(c.leading[i])
		c.leading[i].Release()
	}
	d.enqueueGroup(c.head)
	return nil
}

// Resume implements event.Resumer: a signalled waiter is queued for any
// thread to switch back into. A fiber owned by another dispatcher is
// handed to that dispatcher instead.
func (d *Dispatcher) Resume(w event.Waiter) {
	f, ok := w.(*fiber.Fiber)
	if !ok {
		panic(fmt.Sprintf("dispatcher: cannot resume waiter of type %T", w))
	}
	if owner := f.Owner(); owner != event.Resumer(d) {
		if owner == nil {
			d.fatal(fmt.Errorf("resume fiber %d: %w", f.ID(), jgerrors.ErrForeignContext))
			return
		}
		owner.Resume(f)
		return
	}
	d.resumed.Push(f)
	d.inst.resumedDepth(d.resumed.Len())
	select {
	case d.interrupt <- struct{}{}:
	default:
	}
	d.wake.Release(1)
}

// Stats returns a snapshot of the dispatcher's counters.
func (d *Dispatcher) Stats() Stats {
	s := Stats{
		GraphsSubmitted: d.stats.graphsSubmitted.Load(),
		JobsDispatched:  d.stats.jobsDispatched.Load(),
		JobsCompleted:   d.stats.jobsCompleted.Load(),
		JobsFailed:      d.stats.jobsFailed.Load(),
		Suspensions:     d.stats.suspensions.Load(),
		Resumes:         d.stats.resumes.Load(),
		GroupsCompleted: d.stats.groupsCompleted.Load(),
		FencesSignalled: d.stats.fencesSignalled.Load(),
		ReadyJobs:       d.ready.Len(),
		ResumedFibers:   d.resumed.Len(),
	}
	d.mu.Lock()
	if d.pool != nil {
		s.FibersInUse = d.pool.InUse()
	}
	d.mu.Unlock()
	return s
}

// Metrics returns the metric registry, or nil when metrics are disabled.
func (d *Dispatcher) Metrics() *metrics.Registry {
	return d.reg
}

// Config returns the effective configuration after defaults.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// enqueueGroup makes every job of g ready and wakes threads.
func (d *Dispatcher) enqueueGroup(g *Group) {
	d.ready.PushAll(g.jobs...)
	d.inst.readyDepth(d.ready.Len())
	d.logger.Debug("Group enqueued.", "group", g.seq, "jobs", len(g.jobs))
	d.wake.Release(len(g.jobs))
}

// onJobComplete is the group fan-in barrier. Only the caller whose
// decrement reaches zero signals the group's fences, enqueues its
// successor and frees it. Fences are signalled before the successor is
// enqueued.
func (d *Dispatcher) onJobComplete(j *Job) {
	g := j.group
	if g.remaining.Add(-1) != 0 {
		return
	}

	d.stats.groupsCompleted.Add(1)
	d.inst.groupCompleted()
	if d.cfg.OnGroupComplete != nil {
		d.cfg.OnGroupComplete(g.seq)
	}
	for i := range g.fences {
		d.signalFence(g.fences[i])
		g.fences[i].Release()
	}

	next := g.next
	g.jobs, g.fences, g.next = nil, nil, nil
	if next != nil {
		d.enqueueGroup(next)
	}
}

func (d *Dispatcher) signalFence(ref event.Ref) {
	if ref.Signal() {
		d.stats.fencesSignalled.Add(1)
		d.inst.fenceSignalled()
	}
}

// fatal reports an unrecoverable scheduling error.
func (d *Dispatcher) fatal(err error) {
	d.logger.Error("Fatal scheduling error.", "error", err)
	d.cfg.FatalHandler(err)
}

func releaseFences(fences []graph.Fence) {
	for i := range fences {
		fences[i].Ref.Release()
	}
}

func releaseChain(c chain) {
	for i := range c.leading {
		c.leading[i].Release()
	}
	for g := c.head; g != nil; g = g.next {
		for i := range g.fences {
			g.fences[i].Release()
		}
	}
}

// WaitForEvent suspends the running job until ref is signalled. It returns
// immediately if ref already is. Waiting on the null handle parks the job
// until Shutdown. Outside a job it returns ErrNotInJob.
//
// It must be called from the job's own goroutine. Passing the job's ctx to
// a helper goroutine and waiting there panics.
func WaitForEvent(ctx context.Context, ref event.Ref) error {
	if !fiber.Wait(ctx, ref.Event()) {
		return jgerrors.ErrNotInJob
	}
	return nil
}
