package session

import (
	"mushroomnet/dataset"
	"mushroomnet/ml"
)

// EventType names a session event.
type EventType string

const (
	EventStatus     EventType = "session_status"
	EventProgress   EventType = "training_progress"
	EventPrediction EventType = "prediction"
)

// Event describes one change in a session.
type Event struct {
	Type      EventType         `json:"type"`
	State     State             `json:"state"`
	Status    string            `json:"status,omitempty"`
	Progress  *ml.Progress      `json:"progress,omitempty"`
	Selection dataset.Selection `json:"selection,omitempty"`
	Result    *Result           `json:"result,omitempty"`
}

// Listener is called synchronously, outside the session lock.
type Listener func(Event)

// Subscribe registers l for all future events.
func (s *Session) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Session) emit(e Event) {
	s.mu.RLock()
	listeners := s.snapshotListeners()
	s.mu.RUnlock()
	notify(listeners, e)
}

// snapshotListeners must be called with s.mu held.
func (s *Session) snapshotListeners() []Listener {
	return append([]Listener(nil), s.listeners...)
}

func notify(listeners []Listener, e Event) {
	for _, l := range listeners {
		l(e)
	}
}
