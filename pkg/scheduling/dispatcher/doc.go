/*
Package dispatcher runs job graphs on a fixed set of threads that
cooperatively multiplex a fixed pool of fibers.

A graph is built with a graph.Builder and handed to Submit. The dispatcher
splits it into a chain of groups and enqueues only the first one. Each job
of a group may run concurrently with its siblings; the next group is
enqueued by whichever thread finishes the last job of the current one, after
the group's fences are signalled.

Basic usage:

	d, err := dispatcher.New(dispatcher.Config{Threads: 4, Contexts: 64})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { <-d.Shutdown() }()

	b := d.NewBuilder()
	b.PushParallel("decode-a", decodeA).
		PushParallel("decode-b", decodeB)
	done := b.PushFence()
	b.PushSequential("merge", merge)

	if err := d.Submit(b); err != nil {
		log.Fatal(err)
	}
	<-done.Done()
	done.Release()

Suspension:

A job may block on an event with WaitForEvent. The job's fiber is parked
and its thread moves on to other work; when the event is signalled the
fiber is queued and resumed by any thread with its stack intact. This is
the only suspension point. A job that blocks on anything else holds both
its thread and its fiber until it returns.

	ev := d.CreateEvent()
	b.PushParallel("consumer", func(ctx context.Context) error {
		if err := dispatcher.WaitForEvent(ctx, ev); err != nil {
			return err
		}
		return consume(ctx)
	})
	b.PushParallel("producer", func(ctx context.Context) error {
		produce(ctx)
		ev.Signal()
		return nil
	})

Pool exhaustion:

With FailFast (the default) a thread that holds a ready job and finds no
free fiber reports ErrResourceExhausted to Config.FatalHandler, which
panics unless replaced. With Block the thread waits for a fiber while still
resuming signalled ones. Either way the pool must be sized for the maximum
number of jobs that are running or suspended at once.

Errors:

Job errors and panics are logged, counted and passed to the configured
hooks. The job still counts as finished, so its group always drains.
*/
package dispatcher
