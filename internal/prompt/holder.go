package prompt

import "sync/atomic"

// Holder publishes the current [Set] to concurrent readers and lets the
// config watcher swap it without locking.
type Holder struct {
	cur atomic.Pointer[Set]
}

// NewHolder returns a Holder serving s.
func NewHolder(s *Set) *Holder {
	h := &Holder{}
	h.cur.Store(s)
	return h
}

// Prompts returns the current set.
func (h *Holder) Prompts() *Set { return h.cur.Load() }

// Store replaces the current set. A nil s is ignored.
func (h *Holder) Store(s *Set) {
	if s != nil {
		h.cur.Store(s)
	}
}
