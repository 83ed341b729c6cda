// Package uistream provides subscribable, progressively filled values used
// to deliver in-progress renders to clients.
package uistream

import (
	"context"
	"errors"
	"sync"
)

// ErrDone is returned when a finalized handle is updated or finalized again.
var ErrDone = errors.New("uistream: handle already done")

// Part is one observed value of a handle. The last part of every handle
// has Done set and no part follows it.
type Part[T any] struct {
	Value T
	Done  bool
}

// Handle is a value that can be updated until Done is called. Every
// subscriber observes all parts in the order they were written.
type Handle[T any] struct {
	mu      sync.Mutex
	parts   []Part[T]
	done    bool
	changed chan struct{}
}

// New creates a handle whose first part is initial.
func New[T any](initial T) *Handle[T] {
	return &Handle[T]{
		parts:   []Part[T]{{Value: initial}},
		changed: make(chan struct{}),
	}
}

// Resolved creates a handle that is already done with v.
func Resolved[T any](v T) *Handle[T] {
	return &Handle[T]{
		parts:   []Part[T]{{Value: v, Done: true}},
		done:    true,
		changed: make(chan struct{}),
	}
}

// Update publishes a new partial value.
func (h *Handle[T]) Update(v T) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return ErrDone
	}
	h.parts = append(h.parts, Part[T]{Value: v})
	h.broadcastLocked()
	return nil
}

// Done finalizes the handle. Without an argument the latest value is
// repeated as the final part.
func (h *Handle[T]) Done(final ...T) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return ErrDone
	}
	v := h.parts[len(h.parts)-1].Value
	if len(final) > 0 {
		v = final[0]
	}
	h.parts = append(h.parts, Part[T]{Value: v, Done: true})
	h.done = true
	h.broadcastLocked()
	return nil
}

// Current returns the latest value and whether the handle is done.
func (h *Handle[T]) Current() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.parts[len(h.parts)-1].Value, h.done
}

// Subscribe streams every part, starting from the first, and closes the
// channel after the done part. The channel is also closed when ctx ends.
func (h *Handle[T]) Subscribe(ctx context.Context) <-chan Part[T] {
	out := make(chan Part[T])

	go func() {
		defer close(out)

		next := 0
		for {
			h.mu.Lock()
			pending := append([]Part[T](nil), h.parts[next:]...)
			changed := h.changed
			h.mu.Unlock()

			for _, p := range pending {
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
				next++
				if p.Done {
					return
				}
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Wait blocks until the handle is done and returns the final value.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	for {
		h.mu.Lock()
		last := h.parts[len(h.parts)-1]
		changed := h.changed
		h.mu.Unlock()

		if last.Done {
			return last.Value, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

func (h *Handle[T]) broadcastLocked() {
	close(h.changed)
	h.changed = make(chan struct{})
}
