// Package metrics provides Prometheus instrumentation for jobgraph components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for jobgraph components.
type Registry struct {
	// Dispatcher Metrics
	GraphsSubmitted *prometheus.CounterVec
	JobsDispatched  *prometheus.CounterVec
	JobsCompleted   *prometheus.CounterVec
	JobsFailed      *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	GroupsCompleted *prometheus.CounterVec
	FencesSignalled *prometheus.CounterVec

	// Fiber Metrics
	FiberSuspensions *prometheus.CounterVec
	FiberResumes     *prometheus.CounterVec
	FiberPoolSize    *prometheus.GaugeVec
	FibersInUse      *prometheus.GaugeVec

	// Queue Metrics
	ReadyJobs     *prometheus.GaugeVec
	ResumedFibers *prometheus.GaugeVec

	// Recurring Submission Metrics
	RecurringSubmissions *prometheus.CounterVec
	RecurringFailures    *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the registry bound to prometheus.DefaultRegisterer.
// It is created on first use so importing the package registers nothing.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithNamespace(reg, DefaultNamespace)
}

// NewRegistryWithNamespace is NewRegistry with a custom metric namespace.
func NewRegistryWithNamespace(reg prometheus.Registerer, namespace string) *Registry {
	factory := promauto.With(reg)
	dispatcherLabels := []string{"dispatcher_name"}

	counter := func(subsystem, name, help string, labels []string) *prometheus.CounterVec {
		return factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name,
				Help:      help,
			},
			labels,
		)
	}
	gauge := func(subsystem, name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      name,
				Help:      help,
			},
			dispatcherLabels,
		)
	}

	return &Registry{
		GraphsSubmitted: counter("dispatcher", "graphs_submitted_total",
			"Total number of job graphs submitted", dispatcherLabels),
		JobsDispatched: counter("dispatcher", "jobs_dispatched_total",
			"Total number of jobs assigned to a fiber", dispatcherLabels),
		JobsCompleted: counter("dispatcher", "jobs_completed_total",
			"Total number of jobs that returned without error", dispatcherLabels),
		JobsFailed: counter("dispatcher", "jobs_failed_total",
			"Total number of jobs that returned an error or panicked", dispatcherLabels),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatcher",
				Name:      "job_duration_seconds",
				Help:      "Wall time from job start to return, including suspension",
				Buckets:   prometheus.DefBuckets,
			},
			dispatcherLabels,
		),

		GroupsCompleted: counter("dispatcher", "groups_completed_total",
			"Total number of job groups fully drained", dispatcherLabels),
		FencesSignalled: counter("dispatcher", "fences_signalled_total",
			"Total number of fence events signalled", dispatcherLabels),

		FiberSuspensions: counter("fiber", "suspensions_total",
			"Total number of times a job parked on an unsignalled event", dispatcherLabels),
		FiberResumes: counter("fiber", "resumes_total",
			"Total number of times a parked fiber was switched back into", dispatcherLabels),
		FiberPoolSize: gauge("fiber", "pool_size", "Fixed capacity of the fiber pool"),
		FibersInUse:   gauge("fiber", "in_use", "Number of fibers running or suspended"),

		ReadyJobs:     gauge("queue", "ready_jobs", "Number of jobs waiting for a fiber"),
		ResumedFibers: gauge("queue", "resumed_fibers", "Number of signalled fibers waiting for a thread"),

		RecurringSubmissions: counter("recurring", "submissions_total",
			"Total number of graphs submitted by a recurring schedule", []string{"schedule_id"}),
		RecurringFailures: counter("recurring", "failures_total",
			"Total number of recurring submissions that failed", []string{"schedule_id"}),
	}
}
