// Package metrics provides Prometheus instrumentation for jobgraph components.
//
// # Overview
//
// The dispatcher records graph submissions, job lifecycle, group fan-in,
// fence signals, fiber suspension and queue depth. The recurring scheduler
// records submissions per schedule.
//
// # Quick Start
//
// Enable metrics through the dispatcher configuration:
//
//	d := dispatcher.New(dispatcher.Config{
//		Name:    "frame",
//		Metrics: metrics.DefaultConfig(),
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation, for example in tests:
//
//	registry := prometheus.NewRegistry()
//	d := dispatcher.New(dispatcher.Config{
//		Metrics: metrics.Config{Enabled: true, Registry: registry},
//	})
//
// # Available Metrics
//
//   - jobgraph_dispatcher_graphs_submitted_total
//   - jobgraph_dispatcher_jobs_dispatched_total
//   - jobgraph_dispatcher_jobs_completed_total
//   - jobgraph_dispatcher_jobs_failed_total
//   - jobgraph_dispatcher_job_duration_seconds
//   - jobgraph_dispatcher_groups_completed_total
//   - jobgraph_dispatcher_fences_signalled_total
//   - jobgraph_fiber_suspensions_total
//   - jobgraph_fiber_resumes_total
//   - jobgraph_fiber_pool_size
//   - jobgraph_fiber_in_use
//   - jobgraph_queue_ready_jobs
//   - jobgraph_queue_resumed_fibers
//   - jobgraph_recurring_submissions_total
//   - jobgraph_recurring_failures_total
//
// Every dispatcher metric carries a dispatcher_name label; recurring metrics
// carry schedule_id.
package metrics
