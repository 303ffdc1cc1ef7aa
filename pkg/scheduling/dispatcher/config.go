package dispatcher

import (
	"fmt"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel/trace"

	jgerrors "github.com/vnykmshr/jobgraph/pkg/common/errors"
	"github.com/vnykmshr/jobgraph/pkg/common/validation"
	"github.com/vnykmshr/jobgraph/pkg/metrics"
)

// ExhaustionPolicy decides what a thread does when it holds a ready job and
// every fiber is in use.
type ExhaustionPolicy int

const (
	// FailFast reports ErrResourceExhausted to Config.FatalHandler. The
	// default handler panics. If a custom handler returns, the thread falls
	// back to Block behaviour for that job.
	FailFast ExhaustionPolicy = iota

	// Block parks the thread until a fiber is released, while still
	// driving resumed fibers. If every fiber is suspended on events that
	// only unstarted jobs would signal, the dispatcher deadlocks; size the
	// pool for the maximum number of concurrently suspended jobs.
	Block
)

func (p ExhaustionPolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

const (
	// DefaultContexts is the fiber pool size used when Config.Contexts is 0.
	DefaultContexts = 128

	// DefaultName labels metrics when Config.Name is empty.
	DefaultName = "default"
)

// Config holds configuration options for creating a dispatcher.
type Config struct {
	// Name labels this dispatcher's metrics and log lines.
	Name string

	// Threads is the number of master loops. Defaults to runtime.NumCPU().
	// Wake-ups are broadcast-style, so very large values add wake/sleep churn.
	Threads int

	// Contexts is the fixed fiber pool capacity. Defaults to DefaultContexts.
	Contexts int

	// ExhaustionPolicy selects fail-fast or blocking fiber acquisition.
	ExhaustionPolicy ExhaustionPolicy

	// FatalHandler receives unrecoverable scheduling errors. If nil, it
	// panics with the error.
	FatalHandler func(err error)

	// Logger receives dispatcher logs and is the parent of every job's
	// logger. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics configures Prometheus instrumentation.
	Metrics metrics.Config

	// Tracer wraps each job in a span. Defaults to the global otel tracer,
	// which is a no-op unless a provider is installed.
	Tracer trace.Tracer

	// Debug enables double-wait detection and waiter-list checks on events.
	Debug bool

	// PanicHandler is called when a job panics. The job still counts as
	// finished for its group.
	PanicHandler func(name string, recovered any)

	// OnJobError is called when a job returns a non-nil error.
	OnJobError func(name string, err error)

	// OnGroupComplete is called by the thread that drains a group, before
	// its fences are signalled and its successor is enqueued.
	OnGroupComplete func(seq uint64)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("dispatcher", "threads", c.Threads); err != nil {
		return err
	}
	if err := validation.ValidatePositive("dispatcher", "contexts", c.Contexts); err != nil {
		return err
	}
	if c.ExhaustionPolicy != FailFast && c.ExhaustionPolicy != Block {
		return jgerrors.NewValidationError("dispatcher", "exhaustion_policy", c.ExhaustionPolicy, "unknown policy").
			WithHint("use FailFast or Block")
	}
	return nil
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Threads == 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.Contexts == 0 {
		c.Contexts = DefaultContexts
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.FatalHandler == nil {
		c.FatalHandler = func(err error) { panic(err) }
	}
	return c
}
