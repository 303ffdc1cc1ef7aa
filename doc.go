/*
Package jobgraph provides a cooperative job-graph scheduler for Go
applications that issue fine-grained parallel work with explicit ordering.

Scheduling (pkg/scheduling):
  - graph: Builder for sequential groups, parallel jobs and fences
  - dispatcher: Thread pool multiplexing a fixed fiber pool
  - fiber: Pooled execution contexts with synchronous handoff
  - event: One-shot, reference-counted signals used for fences
  - queue: Lock-protected FIFOs and the thread wake signal
  - recurring: Cron and interval-based graph submission

Common (pkg/common, pkg/metrics):
  - errors: Sentinel errors and validation wrappers
  - validation: Config field checks
  - context: Per-job logger and name
  - metrics: Prometheus instrumentation

Example usage:

	import (
		"github.com/vnykmshr/jobgraph/pkg/scheduling/dispatcher"
	)

	d, _ := dispatcher.New(dispatcher.Config{Threads: 8, Contexts: 128})
	defer func() { <-d.Shutdown() }()

	b := d.NewBuilder()
	b.PushParallel("physics", stepPhysics).PushParallel("audio", mixAudio)
	frame := b.PushFence()
	b.PushSequential("render", render)

	_ = d.Submit(b)
	<-frame.Done()
	frame.Release()
*/
package jobgraph
