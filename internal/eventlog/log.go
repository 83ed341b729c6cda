// Package eventlog holds the ordered, append-only event history of a
// conversation and the versioned aggregate that commits it.
package eventlog

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

// ErrEmptyLog is returned when the trailing event of an empty log is replaced.
var ErrEmptyLog = errors.New("eventlog: log is empty")

// Log is an ordered sequence of events. Events are never removed; the only
// mutation besides Append is ReplaceLast.
type Log struct {
	mu     sync.RWMutex
	events []model.Event
}

// New creates a log seeded with previously persisted events.
func New(events ...model.Event) *Log {
	return &Log{events: append([]model.Event(nil), events...)}
}

// Append adds an event to the end of the log, assigning an ID if it has none.
func (l *Log) Append(e model.Event) model.Event {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()

	return e
}

// ReplaceLast swaps the trailing event in place. The log length is unchanged.
func (l *Log) ReplaceLast(e model.Event) (model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == 0 {
		return model.Event{}, ErrEmptyLog
	}
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	l.events[len(l.events)-1] = e
	return e, nil
}

// Snapshot returns a copy of the events in append order.
func (l *Log) Snapshot() []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Event(nil), l.events...)
}

// Len returns the number of events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
