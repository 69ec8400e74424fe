package gateway

import "sync/atomic"

// Sequencer hands out monotonic request tokens so a late response can be recognized and
// discarded once a newer one has been applied.
type Sequencer struct {
	issued  atomic.Uint64
	applied atomic.Uint64
}

// Begin returns the token for a new request.
func (s *Sequencer) Begin() uint64 {
	return s.issued.Add(1)
}

// Accept reports whether the response for token may be applied, i.e. no newer token has been
// accepted yet. Accepting is final: older tokens are rejected afterwards.
func (s *Sequencer) Accept(token uint64) bool {
	for {
		cur := s.applied.Load()
		if token <= cur {
			return false
		}
		if s.applied.CompareAndSwap(cur, token) {
			return true
		}
	}
}

// Applied is the token of the response currently in effect.
func (s *Sequencer) Applied() uint64 {
	return s.applied.Load()
}
