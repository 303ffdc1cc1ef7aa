package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/jobgraph/pkg/metrics"
)

// instruments binds the shared metric vectors to one dispatcher name. The
// zero value records nothing.
type instruments struct {
	on bool

	graphs      prometheus.Counter
	dispatched  prometheus.Counter
	completed   prometheus.Counter
	failed      prometheus.Counter
	duration    prometheus.Observer
	groups      prometheus.Counter
	fences      prometheus.Counter
	suspensions prometheus.Counter
	resumes     prometheus.Counter
	size        prometheus.Gauge
	inUse       prometheus.Gauge
	ready       prometheus.Gauge
	resumed     prometheus.Gauge
}

func newInstruments(reg *metrics.Registry, name string) instruments {
	if reg == nil {
		return instruments{}
	}
	return instruments{
		on:          true,
		graphs:      reg.GraphsSubmitted.WithLabelValues(name),
		dispatched:  reg.JobsDispatched.WithLabelValues(name),
		completed:   reg.JobsCompleted.WithLabelValues(name),
		failed:      reg.JobsFailed.WithLabelValues(name),
		duration:    reg.JobDuration.WithLabelValues(name),
		groups:      reg.GroupsCompleted.WithLabelValues(name),
		fences:      reg.FencesSignalled.WithLabelValues(name),
		suspensions: reg.FiberSuspensions.WithLabelValues(name),
		resumes:     reg.FiberResumes.WithLabelValues(name),
		size:        reg.FiberPoolSize.WithLabelValues(name),
		inUse:       reg.FibersInUse.WithLabelValues(name),
		ready:       reg.ReadyJobs.WithLabelValues(name),
		resumed:     reg.ResumedFibers.WithLabelValues(name),
	}
}

func (m instruments) graphSubmitted() {
	if m.on {
		m.graphs.Inc()
	}
}

func (m instruments) jobDispatched(inUse int) {
	if m.on {
		m.dispatched.Inc()
		m.inUse.Set(float64(inUse))
	}
}

func (m instruments) jobFinished(d time.Duration, failed bool) {
	if !m.on {
		return
	}
	m.duration.Observe(d.Seconds())
	if failed {
		m.failed.Inc()
		return
	}
	m.completed.Inc()
}

func (m instruments) fiberReleased(inUse int) {
	if m.on {
		m.inUse.Set(float64(inUse))
	}
}

func (m instruments) groupCompleted() {
	if m.on {
		m.groups.Inc()
	}
}

func (m instruments) fenceSignalled() {
	if m.on {
		m.fences.Inc()
	}
}

func (m instruments) suspended() {
	if m.on {
		m.suspensions.Inc()
	}
}

func (m instruments) resumedFiber(depth int) {
	if m.on {
		m.resumes.Inc()
		m.resumed.Set(float64(depth))
	}
}

func (m instruments) poolSize(n int) {
	if m.on {
		m.size.Set(float64(n))
	}
}

func (m instruments) readyDepth(n int) {
	if m.on {
		m.ready.Set(float64(n))
	}
}

func (m instruments) resumedDepth(n int) {
	if m.on {
		m.resumed.Set(float64(n))
	}
}
