/*
Package event implements the one-shot, reference-counted signal used for
dependency fences and manual synchronization between jobs.

An Event starts unsignalled and transitions to signalled at most once.
Execution contexts that must wait for it register as waiters; when the event
is signalled every waiter is handed to the Resumer (the dispatcher), which
schedules it to run again.

Handles:

Ref is the handle user code holds. Reference counting is explicit:

	fence := event.New(dispatcher)   // count 1
	observer := fence.Clone()         // count 2
	fence.Release()                   // count 1, fence is now the null handle
	moved := observer                 // plain assignment moves, count unchanged
	moved.Signal()
	moved.Release()                   // count 0, event destroyed

The zero Ref is the null handle. It is never signalled, reports a count of
0, and every operation on it is a safe no-op. Using a Ref after the value it
was moved from has been released is a programming error.

Lost wakeups:

PushWaiting checks the signalled flag and appends the waiter under the same
lock that Signal takes, so a waiter either observes the signal and continues
immediately or is guaranteed to be handed to the Resumer.
*/
package event
