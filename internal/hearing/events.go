package hearing

import (
	"log/slog"

	"github.com/MrWong99/hearscribe/internal/progress"
)

// EventType identifies the payload of an [Event].
type EventType string

const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
	EventFragment EventType = "fragment"
	EventAlert    EventType = "alert"
	EventDone     EventType = "done"
)

// Event is published to subscribers on every session change. Only the field
// matching Type is set.
type Event struct {
	Type     EventType          `json:"type"`
	State    *State             `json:"state,omitempty"`
	Text     string             `json:"text,omitempty"`
	Progress *progress.Progress `json:"progress,omitempty"`
	Message  string             `json:"message,omitempty"`
}

const defaultEventBuffer = 256

// Subscribe registers a listener. The current state snapshot is delivered
// first. The returned cancel func unregisters the listener and closes the
// channel; it is safe to call more than once.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, s.eventBuffer)
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	st := s.snapshotLocked()
	ch <- Event{Type: EventState, State: &st}

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// publishLocked fans ev out without blocking. Subscribers whose buffer is
// full miss the event. Callers must hold s.mu.
func (s *Session) publishLocked(ev Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("hearing: dropping event for slow subscriber", "subscriber", id, "type", ev.Type)
		}
	}
}

func (s *Session) publishStateLocked() {
	st := s.snapshotLocked()
	s.publishLocked(Event{Type: EventState, State: &st})
}
