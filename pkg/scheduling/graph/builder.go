package graph

import (
	"context"

	jgerrors "github.com/vnykmshr/jobgraph/pkg/common/errors"
	"github.com/vnykmshr/jobgraph/pkg/scheduling/event"
)

// Func is a job body. Returned errors are reported but never stop the graph.
type Func func(ctx context.Context) error

// Entry is one pushed job tagged with its group id.
type Entry struct {
	Name  string
	Fn    Func
	Group uint64
}

// Fence is a fence point: After entries were pushed before it.
type Fence struct {
	After int
	Ref   event.Ref
}

// Submission is the flat description a builder produces for the dispatcher.
// It owns one reference to every fence event.
type Submission struct {
	Entries []Entry
	Fences  []Fence

	// SkipOrphanFences drops fences whose event has no holder other than
	// the submission itself.
	SkipOrphanFences bool
}

// Submitter accepts a built graph.
type Submitter interface {
	SubmitGraph(s Submission) error
}

// Option configures a Builder.
type Option func(*Builder)

// WithOrphanFenceSkip makes the submission skip fences whose returned handle
// was released by the caller before Kick. Without it every fence is wired.
func WithOrphanFenceSkip() Option {
	return func(b *Builder) { b.skipOrphans = true }
}

// WithEventOptions applies opts to every fence event the builder creates.
func WithEventOptions(opts ...event.Option) Option {
	return func(b *Builder) { b.eventOpts = append(b.eventOpts, opts...) }
}

// Builder accumulates jobs and fences. It is not safe for concurrent use.
type Builder struct {
	resumer   event.Resumer
	eventOpts []event.Option

	entries     []Entry
	fences      []Fence
	group       uint64
	skipOrphans bool
	consumed    bool
	err         error
}

// New creates an empty builder. Fence events are created against resumer.
func New(resumer event.Resumer, opts ...Option) *Builder {
	b := &Builder{resumer: resumer}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PushSequential appends a job in a new group that starts only after every
// previously pushed group has drained.
func (b *Builder) PushSequential(name string, fn Func) *Builder {
	b.group++
	b.push(name, fn)
	return b
}

// PushParallel appends a job to the group of the most recent push.
func (b *Builder) PushParallel(name string, fn Func) *Builder {
	b.push(name, fn)
	return b
}

func (b *Builder) push(name string, fn Func) {
	if b.consumed || b.err != nil {
		return
	}
	if fn == nil {
		b.err = jgerrors.NewValidationError("graph", "fn", name, "cannot be nil").
			WithHint("provide a job body for " + name)
		return
	}
	b.entries = append(b.entries, Entry{Name: name, Fn: fn, Group: b.group})
}

// PushFence returns a handle that is signalled once every job pushed so far
// has completed. The caller owns the returned reference and must Release it.
func (b *Builder) PushFence() event.Ref {
	if b.consumed {
		return event.Ref{}
	}
	ref := event.New(b.resumer, b.eventOpts...)
	b.fences = append(b.fences, Fence{After: len(b.entries), Ref: ref})
	b.group++
	return ref.Clone()
}

// Len returns the number of pushed jobs.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Groups returns the number of groups the pushed jobs form.
func (b *Builder) Groups() int {
	n := 0
	for i, e := range b.entries {
		if i == 0 || e.Group != b.entries[i-1].Group {
			n++
		}
	}
	return n
}

// Submission consumes the builder and returns a copy of its contents.
func (b *Builder) Submission() (Submission, error) {
	if b.consumed {
		return Submission{}, jgerrors.ErrGraphConsumed
	}
	if b.err != nil {
		err := b.err
		b.Discard()
		return Submission{}, err
	}
	if len(b.entries) == 0 {
		b.Discard()
		return Submission{}, jgerrors.ErrInvalidGraph
	}

	entries := make([]Entry, len(b.entries))
	copy(entries, b.entries)
	s := Submission{
		Entries:          entries,
		Fences:           b.fences,
		SkipOrphanFences: b.skipOrphans,
	}

	b.consumed = true
	b.entries = nil
	b.fences = nil
	return s, nil
}

// Discard consumes the builder without submitting it. The builder's
// references to its fences are released; fences nobody else holds are
// destroyed unsignalled.
func (b *Builder) Discard() {
	if b.consumed {
		return
	}
	for i := range b.fences {
		b.fences[i].Ref.Release()
	}
	b.consumed = true
	b.entries = nil
	b.fences = nil
}

// Kick consumes the builder and hands the graph to s.
func (b *Builder) Kick(s Submitter) error {
	sub, err := b.Submission()
	if err != nil {
		return err
	}
	return s.SubmitGraph(sub)
}
