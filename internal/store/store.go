// Package store persists chat records.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

// ErrNotFound is returned when a chat does not exist.
var ErrNotFound = errors.New("chat not found")

// ChatStore persists chats keyed by ID.
type ChatStore interface {
	Upsert(ctx context.Context, chat *model.Chat) error
	Get(ctx context.Context, id string) (*model.Chat, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]model.Chat, error)
}

// Memory is a process-local ChatStore.
type Memory struct {
	mu    sync.RWMutex
	chats map[string]model.Chat
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{chats: make(map[string]model.Chat)}
}

// Upsert stores chat, replacing any chat with the same ID.
func (m *Memory) Upsert(ctx context.Context, chat *model.Chat) error {
	c := *chat
	c.Messages = append([]model.Event(nil), chat.Messages...)

	m.mu.Lock()
	m.chats[c.ID] = c
	m.mu.Unlock()
	return nil
}

// Get returns the chat with id.
func (m *Memory) Get(ctx context.Context, id string) (*model.Chat, error) {
	m.mu.RLock()
	c, ok := m.chats[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	c.Messages = append([]model.Event(nil), c.Messages...)
	return &c, nil
}

// Delete removes the chat with id. Deleting a missing chat is not an error.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.chats, id)
	m.mu.Unlock()
	return nil
}

// ListByUser returns the user's chats, newest first.
func (m *Memory) ListByUser(ctx context.Context, userID string) ([]model.Chat, error) {
	m.mu.RLock()
	var out []model.Chat
	for _, c := range m.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()

	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders chats by descending creation time, then ID.
func SortNewestFirst(chats []model.Chat) {
	sort.Slice(chats, func(i, j int) bool {
		if chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return chats[i].ID < chats[j].ID
		}
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
}
