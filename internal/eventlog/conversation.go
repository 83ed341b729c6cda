package eventlog

import (
	"context"
	"errors"
	"sync"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

// ErrCommitted is returned when a finished transaction is used again.
var ErrCommitted = errors.New("eventlog: transaction already committed")

// State is an immutable view of a conversation.
type State struct {
	ChatID  string
	Version uint64
	Events  []model.Event
}

// CommitFunc receives the state of a conversation after each commit.
type CommitFunc func(ctx context.Context, state State)

// Conversation is the authoritative aggregate of one chat thread. Changes go
// through a Txn, which is mutable until Done and inert afterwards.
//
// Turns are expected to run one at a time per conversation. Two overlapping
// transactions do not corrupt the log, but their events interleave.
type Conversation struct {
	id       string
	log      *Log
	onCommit CommitFunc

	mu      sync.Mutex
	version uint64
}

// NewConversation creates an aggregate over previously persisted events.
func NewConversation(id string, events []model.Event, onCommit CommitFunc) *Conversation {
	return &Conversation{
		id:       id,
		log:      New(events...),
		onCommit: onCommit,
	}
}

// ID returns the conversation ID.
func (c *Conversation) ID() string {
	return c.id
}

// State returns the current view, including appends of open transactions.
func (c *Conversation) State() State {
	c.mu.Lock()
	version := c.version
	c.mu.Unlock()

	return State{ChatID: c.id, Version: version, Events: c.log.Snapshot()}
}

// Begin opens a transaction on the conversation.
func (c *Conversation) Begin() *Txn {
	return &Txn{conv: c}
}

// Txn is one action's mutable handle on a conversation.
type Txn struct {
	conv *Conversation

	mu        sync.Mutex
	committed bool
}

// Get returns the current state of the conversation.
func (t *Txn) Get() State {
	return t.conv.State()
}

// Append adds events to the log. They are visible to Get immediately and
// persisted on Done.
func (t *Txn) Append(events ...model.Event) ([]model.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.committed {
		return nil, ErrCommitted
	}
	return t.appendLocked(events), nil
}

// ReplaceLast swaps the trailing event to record a terminal status.
func (t *Txn) ReplaceLast(e model.Event) (model.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.committed {
		return model.Event{}, ErrCommitted
	}
	return t.conv.log.ReplaceLast(e)
}

// Done appends the final events, bumps the version and hands the committed
// state to the commit hook. The transaction cannot be used afterwards.
func (t *Txn) Done(ctx context.Context, events ...model.Event) (State, error) {
	t.mu.Lock()
	if t.committed {
		t.mu.Unlock()
		return State{}, ErrCommitted
	}
	t.appendLocked(events)
	t.committed = true
	t.mu.Unlock()

	c := t.conv
	c.mu.Lock()
	c.version++
	state := State{ChatID: c.id, Version: c.version, Events: c.log.Snapshot()}
	c.mu.Unlock()

	if c.onCommit != nil {
		c.onCommit(ctx, state)
	}
	return state, nil
}

// Committed reports whether Done has been called.
func (t *Txn) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

func (t *Txn) appendLocked(events []model.Event) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		out = append(out, t.conv.log.Append(e))
	}
	return out
}
