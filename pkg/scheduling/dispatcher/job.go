package dispatcher

import (
	"sync/atomic"

	jgerrors "github.com/vnykmshr/jobgraph/pkg/common/errors"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/event"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/graph"
)

// Job is a scheduled unit of work owned by exactly one Group.
type Job struct {
	name  string
	fn    graph.Func
	group *Group
}

// Name returns the job's debug name.
func (j *Job) Name() string {
	return j.name
}

// Group is a set of jobs with no ordering among themselves. Its successor
// is enqueued only when every job has returned.
type Group struct {
	seq       uint64
	jobs      []*Job
	remaining atomic.Int64
	next      *Group
	fences    []event.Ref
}

// Seq returns the dispatcher-wide sequence number of the group.
func (g *Group) Seq() uint64 {
	return g.seq
}

// chain is the result of partitioning one submission.
type chain struct {
	head    *Group
	groups  int
	jobs    int
	leading []event.Ref
}

// buildChain partitions a submission into groups by contiguous group id,
// links them in submission order and attaches fences to the group that
// precedes them. Fences pushed before any job land in leading.
func buildChain(sub graph.Submission, nextSeq func() uint64) (chain, error) {
	if len(sub.Entries) == 0 {
		return chain{}, jgerrors.ErrInvalidGraph
	}

	var c chain
	var tail *Group
	owner := make([]*Group, len(sub.Entries))

	for i, e := range sub.Entries {
		if tail == nil || e.Group != sub.Entries[i-1].Group {
			g := &Group{seq: nextSeq()}
			if tail == nil {
				c.head = g
			} else {
				tail.next = g
			}
			tail = g
			c.groups++
		}
		tail.jobs = append(tail.jobs, &Job{name: e.Name, fn: e.Fn, group: tail})
		owner[i] = tail
	}

	for _, f := range sub.Fences {
		ref := f.Ref
		if sub.SkipOrphanFences && ref.RefCount() <= 1 {
			ref.Release()
			continue
		}
		if f.After == 0 {
			c.leading = append(c.leading, ref)
			continue
		}
		after := f.After
		if after > len(owner) {
			after = len(owner)
		}
		g := owner[after-1]
		g.fences = append(g.fences, ref)
	}

	for g := c.head; g != nil; g = g.next {
		g.remaining.Store(int64(len(g.jobs)))
		c.jobs += len(g.jobs)
	}
	return c, nil
}
