/*
Package scheduling groups the job-graph scheduler's packages.

Packages, leaves first:

  - queue: Lock-protected FIFOs and the thread wake signal
  - event: One-shot, reference-counted signals with a waiter set
  - fiber: Pooled execution contexts that can suspend mid-job
  - graph: Builder that accumulates jobs, groups and fences
  - dispatcher: Threads, fiber pool and the master loop
  - recurring: Submits a graph on a cron expression or interval

Job Graphs:

A graph is a chain of groups. Jobs pushed with PushParallel join the
current group and run with no ordering among themselves. PushSequential
starts a new group that begins only after every earlier group has
finished. PushFence returns an event that is signalled when everything
pushed before it has finished:

	b := d.NewBuilder()
	b.PushSequential("load", load)
	loaded := b.PushFence()
	b.PushParallel("shade-0", shade(0)).PushParallel("shade-1", shade(1))

	if err := d.Submit(b); err != nil {
		return err
	}

Waiting:

Inside a job, dispatcher.WaitForEvent parks the job's fiber and frees its
thread until the event is signalled. Outside a job, use the event's Done
channel:

	<-loaded.Done()
	loaded.Release()

Recurring Graphs:

	s, _ := recurring.New(recurring.Config{Dispatcher: d})
	s.ScheduleRepeating("tick", buildTick, 16*time.Millisecond)
	s.Start()
	defer func() { <-s.Stop() }()
*/
package scheduling
