package client

import (
	"sync"
	"sync/atomic"
)

// Sequencer hands out strictly increasing request tokens, starting at 1.
type Sequencer struct {
	n atomic.Uint64
}

// Next returns the next token.
func (s *Sequencer) Next() uint64 {
	return s.n.Add(1)
}

// Latest keeps the value of the newest committed request. Responses that
// arrive after a newer one has been committed are dropped.
type Latest[T any] struct {
	mu    sync.Mutex
	seq   uint64
	value T
	set   bool
}

// Commit stores value if seq is newer than the last committed token.
func (l *Latest[T]) Commit(seq uint64, value T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set && seq <= l.seq {
		return false
	}
	l.seq = seq
	l.value = value
	l.set = true
	return true
}

// Value returns the committed value, its token and whether anything was committed.
func (l *Latest[T]) Value() (T, uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.seq, l.set
}
