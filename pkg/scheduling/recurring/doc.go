// Package recurring rebuilds and submits a job graph on a schedule.
//
// A Scheduler holds named schedules. On every tick it finds the schedules
// that are due, asks each one's GraphFunc to fill a fresh builder, and
// submits the result to the dispatcher. Schedules fire once at a time, at a
// fixed interval, or on a cron expression with seconds precision.
//
// Basic usage:
//
//	s, err := recurring.New(recurring.Config{Dispatcher: d})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := s.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer func() { <-s.Stop() }()
//
//	err = s.ScheduleCron("frame", "*/5 * * * * *", func(b *graph.Builder) {
//		b.PushParallel("cull", cull).PushParallel("animate", animate)
//		b.PushSequential("draw", draw)
//	})
//
// Overlap:
//
// By default a schedule whose previous graph is still running is skipped
// for that tick. Set Config.AllowOverlap to submit regardless.
//
// Submission failures are logged and counted. They never stop the
// scheduler.
package recurring
