package event

// Ref is a counted handle to an Event. The zero value is the null handle.
//
// Plain assignment (r2 := r) moves the handle: it copies the pointer
// without adding a reference, so exactly one of r and r2 may be released.
// Use Clone to copy, which adds a reference that must be released
// separately. Releasing both sides of an assignment over-releases the
// event; Release panics once the count drops below zero.
type Ref struct {
	ev *Event
}

// Clone returns a new handle to the same event, adding a reference.
func (r Ref) Clone() Ref {
	if r.ev != nil {
		r.ev.Incref()
	}
	return r
}

// Release drops this handle's reference and turns r into the null handle.
func (r *Ref) Release() {
	if r.ev == nil {
		return
	}
	ev := r.ev
	r.ev = nil
	ev.Decref()
}

// Reset is an alias for Release.
func (r *Ref) Reset() {
	r.Release()
}

// IsNil reports whether r is the null handle.
func (r Ref) IsNil() bool {
	return r.ev == nil
}

// Event returns the referenced event, or nil for the null handle.
func (r Ref) Event() *Event {
	return r.ev
}

// Signal signals the event. It is a no-op on the null handle.
func (r Ref) Signal() bool {
	if r.ev == nil {
		return false
	}
	return r.ev.Signal()
}

// IsSignalled reports whether the event has been signalled. The null handle
// is never signalled.
func (r Ref) IsSignalled() bool {
	if r.ev == nil {
		return false
	}
	return r.ev.IsSignalled()
}

// RefCount returns the live reference count, 0 for the null handle.
func (r Ref) RefCount() int32 {
	if r.ev == nil {
		return 0
	}
	return r.ev.RefCount()
}

// Done returns a channel closed on signal. For the null handle it returns a
// nil channel, which blocks forever.
func (r Ref) Done() <-chan struct{} {
	if r.ev == nil {
		return nil
	}
	return r.ev.Done()
}
