/*
Package queue provides the low-level coordination primitives the dispatcher is
built from: a lock-protected FIFO and a counting wake signal.

Queue:

Queue is a mutex-guarded FIFO over a singly linked list. Push and Pop are O(1)
and safe for concurrent use:

	q := queue.New[*Job]()
	q.Push(job)
	if j, ok := q.Pop(); ok {
		run(j)
	}

Signal:

Signal has counting-semaphore semantics with a fixed maximum. Release(n) makes
up to n tokens available; Wait parks until a token arrives or the done channel
closes. A release may wake more parked goroutines than there is work for.
Callers must re-check their queues after every wake.

	wake := queue.NewSignal(threads)
	for {
		if work, ok := q.Pop(); ok {
			run(work)
			continue
		}
		if !wake.Wait(stop) {
			return
		}
	}
*/
package queue
