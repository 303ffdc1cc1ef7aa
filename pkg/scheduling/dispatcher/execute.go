package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	jgctx "github.com/vnykmshr/jobgraph/pkg/common/context"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/fiber"
)

type dispatcherKey struct{}

// FromContext returns the dispatcher running the job that owns ctx.
func FromContext(ctx context.Context) (*Dispatcher, bool) {
	d, ok := ctx.Value(dispatcherKey{}).(*Dispatcher)
	return d, ok
}

// task wraps a job body for execution on a fiber.
func (d *Dispatcher) task(j *Job) fiber.Task {
	return func(ctx context.Context) {
		d.execute(ctx, j)
	}
}

// execute runs one job body. Errors and panics are reported but never
// stop the group from draining.
func (d *Dispatcher) execute(ctx context.Context, j *Job) {
	start := time.Now()
	logger := d.logger.With("job", j.name, "group", j.group.seq)

	ctx = context.WithValue(ctx, dispatcherKey{}, d)
	ctx = jgctx.WithJobName(ctx, j.name)
	ctx = jgctx.WithLogger(ctx, logger)
	ctx, span := d.tracer.Start(ctx, "jobgraph.job.execute",
		trace.WithAttributes(
			attribute.String("jobgraph.dispatcher", d.cfg.Name),
			attribute.String("jobgraph.job", j.name),
			attribute.Int64("jobgraph.group", int64(j.group.seq)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	var err error
	returned := false

	defer func() {
		r := recover()
		if r == nil && !returned {
			// unwound by Shutdown while suspended
			span.SetStatus(codes.Error, "unwound at shutdown")
			return
		}
		if r != nil {
			err = fmt.Errorf("job panicked: %v\nStack trace:\n%s", r, debug.Stack())
			if d.cfg.PanicHandler != nil {
				d.cfg.PanicHandler(j.name, r)
			}
		}
		d.finish(logger, span, j, err, time.Since(start))
	}()

	err = j.fn(ctx)
	returned = true
}

func (d *Dispatcher) finish(logger *slog.Logger, span trace.Span, j *Job, err error, elapsed time.Duration) {
	failed := err != nil
	d.inst.jobFinished(elapsed, failed)

	if !failed {
		d.stats.jobsCompleted.Add(1)
		span.SetStatus(codes.Ok, "")
		return
	}

	d.stats.jobsFailed.Add(1)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("Job failed.", "error", err, "duration", elapsed)
	if d.cfg.OnJobError != nil {
		d.cfg.OnJobError(j.name, err)
	}
}
