package testutil

import (
	"bytes"
	"sync"
)

// Recorder is an append-only, concurrency-safe log of string marks, used to
// assert the order in which jobs started and finished.
type Recorder struct {
	mu    sync.Mutex
	marks []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Mark appends a mark.
func (r *Recorder) Mark(mark string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = append(r.marks, mark)
}

// Marks returns a copy of all marks in append order.
func (r *Recorder) Marks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.marks))
	copy(out, r.marks)
	return out
}

// Index returns the position of the first occurrence of mark, or -1.
func (r *Recorder) Index(mark string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.marks {
		if m == mark {
			return i
		}
	}
	return -1
}

// Len returns the number of marks recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.marks)
}

// LogBuffer is a synchronized writer that can be handed to a slog handler
// and read while other goroutines are still logging.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns the current buffer contents.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
