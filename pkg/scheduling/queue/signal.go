package queue

// Signal is a counting wake primitive. Tokens beyond max are dropped; max
// pending tokens are enough to wake every waiter when max equals the number
// of goroutines that can park on it.
type Signal struct {
	tokens chan struct{}
}

// NewSignal creates a Signal holding at most max pending tokens.
func NewSignal(max int) *Signal {
	if max <= 0 {
		panic("signal max must be positive")
	}
	return &Signal{tokens: make(chan struct{}, max)}
}

// Release makes up to n tokens available without blocking.
func (s *Signal) Release(n int) {
	for i := 0; i < n; i++ {
		select {
		case s.tokens <- struct{}{}:
		default:
			return
		}
	}
}

// Wait consumes one token, parking until one is available. It returns false
// if done closed first.
func (s *Signal) Wait(done <-chan struct{}) bool {
	// A pending token wins over done so released work is not stranded.
	select {
	case <-s.tokens:
		return true
	default:
	}
	select {
	case <-s.tokens:
		return true
	case <-done:
		return false
	}
}

// Pending reports the number of unconsumed tokens.
func (s *Signal) Pending() int {
	return len(s.tokens)
}
