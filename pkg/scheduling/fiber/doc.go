/*
Package fiber provides pooled execution contexts: goroutines that run one
assigned task at a time and can suspend in the middle of it.

A Fiber never runs on its own initiative. The owning master goroutine hands
control to it with SwitchTo and blocks until the fiber yields back, so at any
moment exactly one of the pair is executing. When the task returns the fiber
yields Finished. When the task calls Wait on an unsignalled event the fiber
yields Suspended and blocks with its call stack intact until a master
switches into it again, possibly a different one.

	pool := fiber.NewPool(ctx, 16)
	defer pool.Destroy()

	f, _ := pool.TryAcquire()
	f.Assign(func(ctx context.Context) {
		fiber.Wait(ctx, fence.Event())
	})
	y := f.SwitchTo()
	if y.Reason == fiber.YieldSuspended {
		// register f as a waiter of y.Event and move on
	}

The pool is sized once and never grows. Destroy unwinds suspended fibers with
runtime.Goexit, so deferred calls in their tasks still run.
*/
package fiber
