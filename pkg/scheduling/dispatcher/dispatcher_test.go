package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vnykmshr/jobgraph/internal/testutil"
	jgctx "github.com/vnykmshr/jobgraph/pkg/common/context"
	jgerrors "github.com/vnykmshr/jobgraph/pkg/common/errors"
	"github.com/vnykmshr/jobgraph/pkg/metrics"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/event"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/fiber"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/graph"
)

const waitTimeout = 5 * time.Second

func newTestDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		testutil.WaitClosed(t, d.Shutdown(), waitTimeout)
	})
	return d
}

func mark(rec *testutil.Recorder, name string) graph.Func {
	return func(context.Context) error {
		rec.Mark(name + ":start")
		rec.Mark(name + ":end")
		return nil
	}
}

// submitAndWait appends a trailing fence, submits b and blocks until the
// last group drains.
func submitAndWait(t *testing.T, d *Dispatcher, b *graph.Builder) {
	t.Helper()
	done := b.PushFence()
	defer done.Release()
	require.NoError(t, d.Submit(b))
	testutil.WaitClosed(t, done.Done(), waitTimeout)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative threads", Config{Threads: -1}},
		{"negative contexts", Config{Contexts: -4}},
		{"unknown policy", Config{ExhaustionPolicy: ExhaustionPolicy(7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.True(t, jgerrors.IsValidationError(err))
			assert.ErrorIs(t, err, jgerrors.ErrInvalidConfiguration)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	d := newTestDispatcher(t, Config{})
	cfg := d.Config()

	assert.Equal(t, DefaultName, cfg.Name)
	assert.Equal(t, DefaultContexts, cfg.Contexts)
	assert.Positive(t, cfg.Threads)
	assert.Equal(t, FailFast, cfg.ExhaustionPolicy)
	assert.Nil(t, d.Metrics())
	assert.False(t, d.Running())
}

func TestInit_Idempotent(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 2, Contexts: 2})

	require.NoError(t, d.Init())
	require.NoError(t, d.Init())
	assert.True(t, d.Running())
}

func TestSubmit_GroupOrdering(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 4, Contexts: 8})
	rec := testutil.NewRecorder()

	var fenceSeenInGroup1 atomic.Bool
	b := d.NewBuilder()
	var f1 event.Ref
	watch := func(name string) graph.Func {
		return func(context.Context) error {
			rec.Mark(name + ":start")
			if f1.IsSignalled() {
				fenceSeenInGroup1.Store(true)
			}
			rec.Mark(name + ":end")
			return nil
		}
	}
	b.PushSequential("a", watch("a")).PushParallel("b", watch("b"))
	f1 = b.PushFence()
	defer f1.Release()

	var fenceAtC atomic.Bool
	b.PushSequential("c", func(ctx context.Context) error {
		rec.Mark("c:start")
		fenceAtC.Store(f1.IsSignalled())
		rec.Mark("c:end")
		return nil
	})
	b.PushSequential("d", mark(rec, "d")).PushParallel("e", mark(rec, "e"))

	submitAndWait(t, d, b)

	for _, first := range []string{"a:end", "b:end"} {
		assert.Less(t, rec.Index(first), rec.Index("c:start"), first)
	}
	for _, last := range []string{"d:start", "e:start"} {
		assert.Less(t, rec.Index("c:end"), rec.Index(last), last)
	}
	assert.False(t, fenceSeenInGroup1.Load(), "fence signalled while its group was running")
	assert.True(t, fenceAtC.Load(), "fence not signalled before the next group started")
	assert.True(t, f1.IsSignalled())
	assert.Equal(t, int32(1), f1.RefCount())

	stats := d.Stats()
	assert.Equal(t, int64(5), stats.JobsCompleted)
	assert.Equal(t, int64(3), stats.GroupsCompleted)
	// the trailing fence is counted after its waiters are released
	testutil.Eventually(t, func() bool { return d.Stats().FencesSignalled == 2 }, waitTimeout, time.Millisecond)
}

func TestSubmit_EmptyBuilder(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 2, Contexts: 2})

	err := d.Submit(d.NewBuilder())
	require.ErrorIs(t, err, jgerrors.ErrInvalidGraph)
	assert.False(t, d.Running(), "empty submit must not start threads")
	assert.Equal(t, Stats{}, d.Stats())
}

func TestSubmit_EmptyBuilderWithFence(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 1})

	b := d.NewBuilder()
	f := b.PushFence()
	defer f.Release()

	ev := f.Event()
	require.ErrorIs(t, d.Submit(b), jgerrors.ErrInvalidGraph)
	assert.False(t, d.Running())
	assert.False(t, f.IsSignalled())
	assert.Equal(t, int32(1), f.RefCount())

	f.Release()
	assert.Equal(t, int32(0), ev.RefCount())
}

func TestResume_ForwardsToOwningDispatcher(t *testing.T) {
	a := newTestDispatcher(t, Config{Name: "a", Threads: 1, Contexts: 2})
	b := newTestDispatcher(t, Config{Name: "b", Threads: 1, Contexts: 2})

	manual := a.CreateEvent()
	defer manual.Release()

	upstream := a.NewBuilder()
	upstream.PushSequential("produce", func(context.Context) error { return nil })
	produced := upstream.PushFence()
	defer produced.Release()

	var woke atomic.Int32
	wait := func(ref event.Ref) graph.Func {
		return func(ctx context.Context) error {
			if err := WaitForEvent(ctx, ref); err != nil {
				return err
			}
			woke.Add(1)
			return nil
		}
	}

	gb := b.NewBuilder()
	gb.PushParallel("on-manual", wait(manual))
	gb.PushParallel("on-fence", wait(produced))
	done := gb.PushFence()
	defer done.Release()
	require.NoError(t, b.Submit(gb))

	testutil.Eventually(t, func() bool {
		return manual.Event().Waiting() == 1 && produced.Event().Waiting() == 1
	}, waitTimeout, time.Millisecond)

	// both events resume through a, which does not own b's fibers
	manual.Signal()
	require.NoError(t, a.Submit(upstream))

	testutil.WaitClosed(t, done.Done(), waitTimeout)
	assert.Equal(t, int32(2), woke.Load())
	assert.Equal(t, int64(2), b.Stats().Resumes)
	assert.Zero(t, a.Stats().Resumes)
	assert.Zero(t, a.Stats().ResumedFibers)
}

func TestResume_UnownedFiberIsFatal(t *testing.T) {
	var got error
	d := newTestDispatcher(t, Config{
		Threads:      1,
		Contexts:     1,
		FatalHandler: func(err error) { got = err },
	})

	pool := fiber.NewPool(context.Background(), 1)
	defer pool.Destroy()

	d.Resume(pool.Fiber(0))
	require.ErrorIs(t, got, jgerrors.ErrForeignContext)
	assert.True(t, jgerrors.IsFatal(got))
	assert.Zero(t, d.Stats().ResumedFibers)
}

func TestSubmit_Consumed(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 1})
	rec := testutil.NewRecorder()

	b := d.NewBuilder()
	b.PushSequential("once", mark(rec, "once"))
	submitAndWait(t, d, b)

	require.ErrorIs(t, d.Submit(b), jgerrors.ErrGraphConsumed)
	assert.Equal(t, 2, rec.Len())
}

func TestWaitForEvent_NeverSignalledDoesNotBlockOthers(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 2})

	never := d.CreateEvent()
	defer never.Release()

	parked := make(chan struct{})
	var unwound atomic.Bool
	b := d.NewBuilder()
	b.PushSequential("stuck", func(ctx context.Context) error {
		defer unwound.Store(true)
		close(parked)
		return WaitForEvent(ctx, never)
	})
	require.NoError(t, d.Submit(b))
	testutil.WaitClosed(t, parked, waitTimeout)

	rec := testutil.NewRecorder()
	other := d.NewBuilder()
	other.PushSequential("x", mark(rec, "x")).PushParallel("y", mark(rec, "y"))
	other.PushSequential("z", mark(rec, "z"))
	submitAndWait(t, d, other)

	assert.Equal(t, 6, rec.Len())
	assert.False(t, never.IsSignalled())
	assert.Equal(t, int64(1), d.Stats().Suspensions)
	assert.Equal(t, 1, d.Stats().FibersInUse)

	testutil.WaitClosed(t, d.Shutdown(), waitTimeout)
	assert.True(t, unwound.Load(), "suspended job was not unwound at shutdown")
}

func TestWaitForEvent_NullRefParks(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 2})

	parked := make(chan struct{})
	b := d.NewBuilder()
	b.PushSequential("null", func(ctx context.Context) error {
		close(parked)
		return WaitForEvent(ctx, event.Ref{})
	})
	require.NoError(t, d.Submit(b))
	testutil.WaitClosed(t, parked, waitTimeout)

	testutil.Eventually(t, func() bool { return d.Stats().Suspensions == 1 }, waitTimeout, time.Millisecond)
	assert.Equal(t, int64(0), d.Stats().JobsCompleted)
}

func TestCreateEvent_RefCounting(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 1})

	a := d.CreateEvent()
	b := a.Clone()
	assert.Equal(t, int32(2), a.RefCount())

	b.Release()
	assert.True(t, b.IsNil())
	assert.Equal(t, int32(1), a.RefCount())

	c := a.Clone()
	assert.True(t, c.Signal())
	assert.True(t, a.IsSignalled())
	assert.True(t, c.IsSignalled())
	assert.False(t, a.Signal(), "second signal must be a no-op")

	c.Release()
	a.Release()
	assert.Equal(t, int32(0), a.RefCount())
}

func TestSubmit_LongSequentialChain(t *testing.T) {
	const n = 1000
	d := newTestDispatcher(t, Config{Threads: 4, Contexts: 4})

	var mu sync.Mutex
	order := make([]int, 0, n)
	b := d.NewBuilder()
	want := make([]int, n)
	for i := 0; i < n; i++ {
		want[i] = i + 1
		i := i + 1
		b.PushSequential(fmt.Sprintf("job-%d", i), func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	submitAndWait(t, d, b)

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("completion order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(n), d.Stats().GroupsCompleted)
}

func TestFences_SignalledInSubmissionOrder(t *testing.T) {
	for _, size := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("pool=%d", size), func(t *testing.T) {
			const groups = 50
			var mu sync.Mutex
			var seqs []uint64
			d := newTestDispatcher(t, Config{
				Threads:  size,
				Contexts: size,
				OnGroupComplete: func(seq uint64) {
					mu.Lock()
					seqs = append(seqs, seq)
					mu.Unlock()
				},
			})

			fences := make([]event.Ref, groups)
			var violations atomic.Int32
			b := d.NewBuilder()
			for g := 0; g < groups; g++ {
				g := g
				check := func(context.Context) error {
					for i := 0; i < g; i++ {
						if !fences[i].IsSignalled() {
							violations.Add(1)
						}
					}
					if fences[g].IsSignalled() {
						violations.Add(1)
					}
					return nil
				}
				b.PushSequential("check", check).PushParallel("check", check)
				fences[g] = b.PushFence()
			}
			defer func() {
				for i := range fences {
					fences[i].Release()
				}
			}()

			require.NoError(t, d.Submit(b))
			testutil.WaitClosed(t, fences[groups-1].Done(), waitTimeout)

			assert.Zero(t, violations.Load())
			mu.Lock()
			defer mu.Unlock()
			require.Len(t, seqs, groups)
			for i := 1; i < len(seqs); i++ {
				assert.Less(t, seqs[i-1], seqs[i])
			}
		})
	}
}

func TestFences_LeadingSignalledAtSubmit(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 1})

	b := d.NewBuilder()
	lead := b.PushFence()
	defer lead.Release()
	b.PushSequential("only", func(context.Context) error { return nil })

	submitAndWait(t, d, b)
	assert.True(t, lead.IsSignalled())
	assert.Equal(t, int32(1), lead.RefCount())
}

func TestFences_OrphanSkip(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 1})

	b := d.NewBuilder(graph.WithOrphanFenceSkip())
	b.PushSequential("a", func(context.Context) error { return nil })
	orphan := b.PushFence()
	orphan.Release()
	b.PushSequential("b", func(context.Context) error { return nil })

	submitAndWait(t, d, b)
	testutil.Eventually(t, func() bool { return d.Stats().FencesSignalled == 1 }, waitTimeout, time.Millisecond)
	assert.Equal(t, int64(2), d.Stats().GroupsCompleted)
}

func TestWaitForEvent_SignalledDoesNotSuspend(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 2, Contexts: 2})

	ready := d.CreateEvent()
	defer ready.Release()
	ready.Signal()

	var waitErr error
	b := d.NewBuilder()
	b.PushSequential("wait", func(ctx context.Context) error {
		waitErr = WaitForEvent(ctx, ready)
		return nil
	})
	submitAndWait(t, d, b)

	require.NoError(t, waitErr)
	assert.Zero(t, d.Stats().Suspensions)
	assert.Zero(t, d.Stats().Resumes)
}

func TestWaitForEvent_SuspendAndResume(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 2})
	rec := testutil.NewRecorder()

	ev := d.CreateEvent()
	defer ev.Release()

	var preserved string
	b := d.NewBuilder()
	b.PushSequential("consumer", func(ctx context.Context) error {
		local := "before-wait"
		rec.Mark("consumer:wait")
		if err := WaitForEvent(ctx, ev); err != nil {
			return err
		}
		preserved = local
		rec.Mark("consumer:resumed")
		return nil
	})
	b.PushParallel("producer", func(ctx context.Context) error {
		rec.Mark("producer:signal")
		ev.Signal()
		return nil
	})
	submitAndWait(t, d, b)

	want := []string{"consumer:wait", "producer:signal", "consumer:resumed"}
	if diff := cmp.Diff(want, rec.Marks()); diff != "" {
		t.Errorf("marks mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "before-wait", preserved)

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Suspensions)
	assert.Equal(t, int64(1), stats.Resumes)
	assert.Equal(t, 0, stats.FibersInUse)
}

func TestWaitForEvent_ManyWaiters(t *testing.T) {
	const waiters = 16
	d := newTestDispatcher(t, Config{Threads: 4, Contexts: waiters + 1})

	gate := d.CreateEvent()
	defer gate.Release()

	var resumed atomic.Int32
	b := d.NewBuilder()
	for i := 0; i < waiters; i++ {
		b.PushParallel("waiter", func(ctx context.Context) error {
			if err := WaitForEvent(ctx, gate); err != nil {
				return err
			}
			resumed.Add(1)
			return nil
		})
	}
	b.PushParallel("opener", func(ctx context.Context) error {
		gate.Signal()
		return nil
	})

	submitAndWait(t, d, b)
	assert.Equal(t, int32(waiters), resumed.Load())
}

func TestWaitForEvent_OutsideJob(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 1})
	ev := d.CreateEvent()
	defer ev.Release()

	err := WaitForEvent(context.Background(), ev)
	require.ErrorIs(t, err, jgerrors.ErrNotInJob)
}

func TestExhaustion_Block(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 3, Contexts: 1, ExhaustionPolicy: Block})

	var ran atomic.Int32
	b := d.NewBuilder()
	for i := 0; i < 6; i++ {
		b.PushParallel("p", func(context.Context) error {
			ran.Add(1)
			time.Sleep(time.Millisecond)
			return nil
		})
	}
	submitAndWait(t, d, b)
	assert.Equal(t, int32(6), ran.Load())
}

func TestExhaustion_BlockedThreadDrivesResumedFiber(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 1, Contexts: 1, ExhaustionPolicy: Block})
	rec := testutil.NewRecorder()

	ev := d.CreateEvent()
	defer ev.Release()

	parked := make(chan struct{})
	b := d.NewBuilder()
	b.PushSequential("waiter", func(ctx context.Context) error {
		close(parked)
		if err := WaitForEvent(ctx, ev); err != nil {
			return err
		}
		rec.Mark("waiter")
		return nil
	})
	b.PushParallel("other", func(context.Context) error {
		rec.Mark("other")
		return nil
	})

	done := b.PushFence()
	defer done.Release()
	require.NoError(t, d.Submit(b))

	testutil.WaitClosed(t, parked, waitTimeout)
	testutil.Eventually(t, func() bool { return d.Stats().Suspensions == 1 }, waitTimeout, time.Millisecond)
	ev.Signal()
	testutil.WaitClosed(t, done.Done(), waitTimeout)

	if diff := cmp.Diff([]string{"waiter", "other"}, rec.Marks()); diff != "" {
		t.Errorf("marks mismatch (-want +got):\n%s", diff)
	}
}

func TestExhaustion_FailFastReportsAndFallsBack(t *testing.T) {
	var mu sync.Mutex
	var fatal []error
	d := newTestDispatcher(t, Config{
		Threads:  1,
		Contexts: 1,
		FatalHandler: func(err error) {
			mu.Lock()
			fatal = append(fatal, err)
			mu.Unlock()
		},
	})

	ev := d.CreateEvent()
	defer ev.Release()

	b := d.NewBuilder()
	b.PushSequential("waiter", func(ctx context.Context) error {
		return WaitForEvent(ctx, ev)
	})
	b.PushParallel("starved", func(context.Context) error { return nil })
	done := b.PushFence()
	defer done.Release()
	require.NoError(t, d.Submit(b))

	testutil.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fatal) == 1
	}, waitTimeout, time.Millisecond)
	ev.Signal()
	testutil.WaitClosed(t, done.Done(), waitTimeout)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fatal, 1)
	assert.ErrorIs(t, fatal[0], jgerrors.ErrResourceExhausted)
	assert.True(t, jgerrors.IsFatal(fatal[0]))
	assert.Contains(t, fatal[0].Error(), "starved")
}

func TestJobErrorsAndPanicsDrainGroup(t *testing.T) {
	var mu sync.Mutex
	var jobErrs []string
	var panics []any
	d := newTestDispatcher(t, Config{
		Threads:  2,
		Contexts: 4,
		OnJobError: func(name string, err error) {
			mu.Lock()
			jobErrs = append(jobErrs, name)
			mu.Unlock()
		},
		PanicHandler: func(name string, r any) {
			mu.Lock()
			panics = append(panics, r)
			mu.Unlock()
		},
	})

	var after atomic.Bool
	b := d.NewBuilder()
	b.PushSequential("fails", func(context.Context) error { return errors.New("boom") })
	b.PushParallel("panics", func(context.Context) error { panic("kaboom") })
	b.PushParallel("ok", func(context.Context) error { return nil })
	b.PushSequential("after", func(context.Context) error {
		after.Store(true)
		return nil
	})
	submitAndWait(t, d, b)

	assert.True(t, after.Load(), "failed jobs must not stall the chain")
	stats := d.Stats()
	assert.Equal(t, int64(2), stats.JobsFailed)
	assert.Equal(t, int64(2), stats.JobsCompleted)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"fails", "panics"}, jobErrs)
	assert.Equal(t, []any{"kaboom"}, panics)
}

func TestJobContext(t *testing.T) {
	logs := &testutil.LogBuffer{}
	d := newTestDispatcher(t, Config{
		Threads:  1,
		Contexts: 2,
		Logger:   slog.New(slog.NewTextHandler(logs, nil)),
	})

	var name string
	var same bool
	b := d.NewBuilder()
	b.PushSequential("ctx-job", func(ctx context.Context) error {
		name = jgctx.JobName(ctx)
		got, ok := FromContext(ctx)
		same = ok && got == d
		jgctx.Logger(ctx).Info("hello from job")
		return nil
	})
	submitAndWait(t, d, b)

	assert.Equal(t, "ctx-job", name)
	assert.True(t, same)
	assert.Contains(t, logs.String(), "hello from job")
	assert.Contains(t, logs.String(), "job=ctx-job")
}

func TestSubmit_FromInsideJob(t *testing.T) {
	d := newTestDispatcher(t, Config{Threads: 2, Contexts: 4})

	inner := d.CreateEvent()
	defer inner.Release()

	var submitErr error
	b := d.NewBuilder()
	b.PushSequential("outer", func(ctx context.Context) error {
		self, _ := FromContext(ctx)
		nb := self.NewBuilder()
		nb.PushSequential("inner", func(context.Context) error {
			inner.Signal()
			return nil
		})
		submitErr = self.Submit(nb)
		return WaitForEvent(ctx, inner)
	})
	submitAndWait(t, d, b)

	require.NoError(t, submitErr)
	assert.True(t, inner.IsSignalled())
	assert.Equal(t, int64(2), d.Stats().GraphsSubmitted)
}

func TestShutdown(t *testing.T) {
	t.Run("without init", func(t *testing.T) {
		d, err := New(Config{Threads: 1, Contexts: 1})
		require.NoError(t, err)
		testutil.WaitClosed(t, d.Shutdown(), waitTimeout)
		testutil.WaitClosed(t, d.Shutdown(), waitTimeout)
		require.ErrorIs(t, d.Init(), jgerrors.ErrClosed)
	})

	t.Run("submit after shutdown releases fences", func(t *testing.T) {
		d, err := New(Config{Threads: 1, Contexts: 1, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
		require.NoError(t, err)
		require.NoError(t, d.Init())
		testutil.WaitClosed(t, d.Shutdown(), waitTimeout)

		b := d.NewBuilder()
		b.PushSequential("late", func(context.Context) error { return nil })
		f := b.PushFence()
		defer f.Release()

		err = d.Submit(b)
		require.ErrorIs(t, err, jgerrors.ErrClosed)
		var opErr *jgerrors.OperationError
		require.True(t, errors.As(err, &opErr))
		assert.Equal(t, "dispatcher", opErr.Module)
		assert.Equal(t, "Submit", opErr.Operation)
		assert.Equal(t, "1 groups, 1 jobs", opErr.Context)
		assert.Equal(t, int32(1), f.RefCount())
		assert.False(t, f.IsSignalled())
	})
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	d := newTestDispatcher(t, Config{Threads: 2, Contexts: 2, Tracer: tp.Tracer("test")})

	b := d.NewBuilder()
	b.PushSequential("good", func(context.Context) error { return nil })
	b.PushSequential("bad", func(context.Context) error { return errors.New("nope") })
	submitAndWait(t, d, b)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	byJob := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		assert.Equal(t, "jobgraph.job.execute", s.Name())
		for _, kv := range s.Attributes() {
			if kv.Key == "jobgraph.job" {
				byJob[kv.Value.AsString()] = s
			}
		}
	}
	require.Contains(t, byJob, "good")
	require.Contains(t, byJob, "bad")
	assert.Equal(t, codes.Ok, byJob["good"].Status().Code)
	assert.Equal(t, codes.Error, byJob["bad"].Status().Code)
	assert.Equal(t, "nope", byJob["bad"].Status().Description)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := newTestDispatcher(t, Config{
		Name:     "metrics-test",
		Threads:  2,
		Contexts: 3,
		Metrics:  metrics.Config{Enabled: true, Registry: reg},
	})
	m := d.Metrics()
	require.NotNil(t, m)

	b := d.NewBuilder()
	b.PushSequential("a", func(context.Context) error { return nil }).
		PushParallel("b", func(context.Context) error { return errors.New("x") })
	b.PushSequential("c", func(context.Context) error { return nil })
	submitAndWait(t, d, b)

	label := "metrics-test"
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.GraphsSubmitted.WithLabelValues(label)))
	assert.Equal(t, 3.0, promtestutil.ToFloat64(m.JobsDispatched.WithLabelValues(label)))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.JobsCompleted.WithLabelValues(label)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.JobsFailed.WithLabelValues(label)))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.GroupsCompleted.WithLabelValues(label)))
	assert.Equal(t, 3.0, promtestutil.ToFloat64(m.FiberPoolSize.WithLabelValues(label)))
	assert.Equal(t, 1, promtestutil.CollectAndCount(m.JobDuration))
}
