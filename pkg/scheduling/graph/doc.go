/*
Package graph provides the builder that accumulates a job graph before it is
handed to the dispatcher.

A graph is an ordered list of groups. Jobs in one group may run in any order
or truly in parallel; no job of a group starts before every job of the
previous group has returned. Fences mark "everything pushed so far" and
return an event handle that is signalled once those jobs drain.

	b := d.NewBuilder()
	b.PushSequential("physics", stepPhysics).
		PushParallel("audio", mixAudio)
	drained := b.PushFence()
	b.PushSequential("render", render)

	if err := d.Submit(b); err != nil {
		return err
	}
	<-drained.Done()
	drained.Release()

Group ids:

The builder keeps a counter. PushSequential increments it and tags the job
with the new value. PushParallel tags the job with the current value.
PushFence records the fence and increments it, so the next push of either
kind starts a new group.

A builder is single use. Kick copies the accumulated entries into a
Submission and marks the builder consumed; a second Kick returns
ErrGraphConsumed.
*/
package graph
