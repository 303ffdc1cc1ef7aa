package recurring

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	jgerrors "github.com/vnykmshr/jobgraph/pkg/common/errors"
	"github.com/vnykmshr/jobgraph/pkg/common/validation"
	"github.com/vnykmshr/jobgraph/pkg/metrics"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/event"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/graph"
)

const (
	// DefaultTickInterval is how often due schedules are checked.
	DefaultTickInterval = 50 * time.Millisecond

	// DefaultMaxSchedules caps the number of registered schedules.
	DefaultMaxSchedules = 10000

	maxIDLength = 255
)

// GraphFunc fills a fresh builder each time its schedule fires.
type GraphFunc func(b *graph.Builder)

// Dispatcher is the part of dispatcher.Dispatcher the scheduler needs.
type Dispatcher interface {
	NewBuilder(opts ...graph.Option) *graph.Builder
	Submit(b *graph.Builder) error
}

// Entry describes a registered schedule.
type Entry struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // zero for one-time and cron schedules
	Cron     string
	Created  time.Time
	Runs     int64
	Skipped  int64
	Failures int64

	// LastError is the most recent submission failure, or nil.
	LastError error
}

// Config holds scheduler configuration.
type Config struct {
	// Dispatcher receives every built graph. Required.
	Dispatcher Dispatcher

	// Location is the time zone for cron expressions. Defaults to time.Local.
	Location *time.Location

	// TickInterval is how often due schedules are checked.
	TickInterval time.Duration

	// MaxSchedules caps the number of registered schedules.
	MaxSchedules int

	// AllowOverlap submits a schedule even if its previous graph is still
	// running.
	AllowOverlap bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics, if set, counts submissions and failures per schedule.
	Metrics *metrics.Registry
}

type schedule struct {
	id       string
	fn       GraphFunc
	runAt    time.Time
	interval time.Duration
	cronExpr string
	cron     cron.Schedule
	created  time.Time

	// inflight is the trailing fence of the last submitted graph.
	inflight event.Ref
	runs     int64
	skipped  int64
	failures int64
	lastErr  error
}

// Scheduler submits graphs on one-time, interval and cron schedules.
type Scheduler struct {
	d            Dispatcher
	location     *time.Location
	tickInterval time.Duration
	maxSchedules int
	allowOverlap bool
	cronParser   cron.Parser
	logger       *slog.Logger
	metrics      *metrics.Registry

	mu        sync.RWMutex
	schedules map[string]*schedule
	ticker    *time.Ticker
	done      chan struct{}
	stopped   chan struct{}
	running   bool
}

// New creates a scheduler. It does not start ticking until Start.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Dispatcher == nil {
		return nil, jgerrors.NewValidationError("recurring", "dispatcher", nil, "cannot be nil").
			WithHint("pass the dispatcher that should run the graphs")
	}
	if cfg.TickInterval < 0 {
		return nil, validation.ValidatePositiveDuration("recurring", "tick_interval", cfg.TickInterval)
	}
	if cfg.MaxSchedules < 0 {
		return nil, validation.ValidatePositive("recurring", "max_schedules", cfg.MaxSchedules)
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	tick := cfg.TickInterval
	if tick == 0 {
		tick = DefaultTickInterval
	}
	maxSchedules := cfg.MaxSchedules
	if maxSchedules == 0 {
		maxSchedules = DefaultMaxSchedules
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		d:            cfg.Dispatcher,
		location:     location,
		tickInterval: tick,
		maxSchedules: maxSchedules,
		allowOverlap: cfg.AllowOverlap,
		cronParser:   cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:       logger.With("component", "recurring"),
		metrics:      cfg.Metrics,
		schedules:    make(map[string]*schedule),
	}, nil
}

func validateSchedule(id string, fn GraphFunc) error {
	if err := validation.ValidateNotEmpty("recurring", "id", id); err != nil {
		return err
	}
	if len(id) > maxIDLength {
		return jgerrors.NewValidationError("recurring", "id", id, "too long").
			WithHint(fmt.Sprintf("use at most %d characters", maxIDLength))
	}
	if fn == nil {
		return jgerrors.NewValidationError("recurring", "graph", nil, "cannot be nil")
	}
	return nil
}

// add registers sc under the lock, enforcing uniqueness and the cap.
func (s *Scheduler) add(sc *schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[sc.id]; exists {
		return fmt.Errorf("schedule %q: %w", sc.id, jgerrors.ErrDuplicateSchedule)
	}
	if len(s.schedules) >= s.maxSchedules {
		return fmt.Errorf("cannot add schedule %q: %w (%d)", sc.id, jgerrors.ErrScheduleLimit, s.maxSchedules)
	}
	sc.created = time.Now()
	s.schedules[sc.id] = sc
	return nil
}

// Schedule submits fn's graph once at runAt.
func (s *Scheduler) Schedule(id string, fn GraphFunc, runAt time.Time) error {
	if err := validateSchedule(id, fn); err != nil {
		return err
	}
	if runAt.IsZero() {
		return jgerrors.NewValidationError("recurring", "run_at", runAt, "cannot be zero")
	}
	return s.add(&schedule{id: id, fn: fn, runAt: runAt})
}

// ScheduleAfter submits fn's graph once after delay.
func (s *Scheduler) ScheduleAfter(id string, fn GraphFunc, delay time.Duration) error {
	return s.Schedule(id, fn, time.Now().Add(delay))
}

// ScheduleRepeating submits fn's graph now and then every interval.
func (s *Scheduler) ScheduleRepeating(id string, fn GraphFunc, interval time.Duration) error {
	if err := validateSchedule(id, fn); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration("recurring", "interval", interval); err != nil {
		return err
	}
	return s.add(&schedule{id: id, fn: fn, runAt: time.Now(), interval: interval})
}

// ScheduleCron submits fn's graph whenever the six-field cron expression
// (with seconds) matches.
func (s *Scheduler) ScheduleCron(id string, expr string, fn GraphFunc) error {
	if err := validateSchedule(id, fn); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("recurring", "cron", expr); err != nil {
		return err
	}

	sched, err := s.cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s.add(&schedule{
		id:       id,
		fn:       fn,
		runAt:    sched.Next(time.Now().In(s.location)),
		cronExpr: expr,
		cron:     sched,
	})
}

// Cancel removes a schedule. Graphs already submitted keep running.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, exists := s.schedules[id]
	if !exists {
		return false
	}
	sc.inflight.Release()
	delete(s.schedules, id)
	return true
}

// CancelAll removes every schedule.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range s.schedules {
		sc.inflight.Release()
	}
	s.schedules = make(map[string]*schedule)
}

// List returns every schedule ordered by next run time.
func (s *Scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.schedules))
	for _, sc := range s.schedules {
		entries = append(entries, Entry{
			ID:        sc.id,
			RunAt:     sc.runAt,
			Interval:  sc.interval,
			Cron:      sc.cronExpr,
			Created:   sc.created,
			Runs:      sc.runs,
			Skipped:   sc.skipped,
			Failures:  sc.failures,
			LastError: sc.lastErr,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RunAt.Before(entries[j].RunAt)
	})
	return entries
}

// Start begins ticking. It fails if the scheduler is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running, call Stop() first")
	}

	s.running = true
	s.ticker = time.NewTicker(s.tickInterval)
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run(s.ticker, s.done, s.stopped)
	s.logger.Info("Recurring scheduler started.", "tick", s.tickInterval, "schedules", len(s.schedules))
	return nil
}

// Stop halts ticking. The returned channel closes once the tick loop has
// exited. Schedules are kept and resume on the next Start.
func (s *Scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	s.running = false
	close(s.done)
	s.ticker.Stop()
	return s.stopped
}

func (s *Scheduler) run(ticker *time.Ticker, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		select {
		case <-done:
			s.logger.Info("Recurring scheduler stopped.")
			return
		case now := <-ticker.C:
			s.processDue(now)
		}
	}
}

// processDue submits every schedule whose run time has passed and
// advances or removes it.
func (s *Scheduler) processDue(now time.Time) {
	s.mu.Lock()
	if len(s.schedules) == 0 {
		s.mu.Unlock()
		return
	}

	due := make([]*schedule, 0, len(s.schedules))
	for id, sc := range s.schedules {
		if now.Before(sc.runAt) {
			continue
		}

		switch {
		case sc.interval > 0:
			sc.runAt = now.Add(sc.interval)
		case sc.cron != nil:
			sc.runAt = sc.cron.Next(now.In(s.location))
		default:
			delete(s.schedules, id)
		}

		if !s.allowOverlap && !sc.inflight.IsNil() && !sc.inflight.IsSignalled() {
			sc.skipped++
			s.logger.Debug("Skipping schedule, previous graph still running.", "schedule", id)
			continue
		}
		due = append(due, sc)
	}
	s.mu.Unlock()

	for _, sc := range due {
		s.submit(sc)
	}
}

// submit builds and submits one graph for sc.
func (s *Scheduler) submit(sc *schedule) {
	fence, err := s.build(sc)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		err = jgerrors.NewOperationError("recurring", "Submit", err).WithContext("schedule " + sc.id)
		sc.failures++
		sc.lastErr = err
		s.count(s.metricFailures(), sc.id)
		s.logger.Error("Recurring submission failed.", "schedule", sc.id, "error", err)
		return
	}
	sc.runs++
	s.count(s.metricSubmissions(), sc.id)

	if _, live := s.schedules[sc.id]; !live {
		// cancelled or one-shot: nobody will check overlap again
		fence.Release()
		sc.inflight.Release()
		return
	}
	sc.inflight.Release()
	sc.inflight = fence
}

func (s *Scheduler) build(sc *schedule) (fence event.Ref, err error) {
	b := s.d.NewBuilder()
	defer func() {
		if r := recover(); r != nil {
			fence.Release()
			b.Discard()
			err = fmt.Errorf("graph func panicked: %v", r)
		}
	}()

	sc.fn(b)
	if b.Len() == 0 {
		// rejected with ErrInvalidGraph; releases any fences fn pushed
		return event.Ref{}, s.d.Submit(b)
	}
	fence = b.PushFence()
	if err := s.d.Submit(b); err != nil {
		fence.Release()
		return event.Ref{}, err
	}
	return fence, nil
}

func (s *Scheduler) metricSubmissions() *prometheus.CounterVec {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.RecurringSubmissions
}

func (s *Scheduler) metricFailures() *prometheus.CounterVec {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.RecurringFailures
}

func (s *Scheduler) count(vec *prometheus.CounterVec, id string) {
	if vec != nil {
		vec.WithLabelValues(id).Inc()
	}
}
