package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/store"
)

// ChatBucket is the KV bucket holding chat records.
const ChatBucket = "CHATS"

// ChatStore persists chats in a JetStream key-value bucket keyed by chat ID.
type ChatStore struct {
	kv jetstream.KeyValue
}

// NewChatStore opens the chat bucket, creating it if needed.
func NewChatStore(ctx context.Context, client *Client) (*ChatStore, error) {
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, ChatBucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      ChatBucket,
			Description: "Persisted chat threads",
			History:     1,
			Storage:     jetstream.FileStorage,
			Compression: true,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open chat bucket: %w", err)
	}

	return &ChatStore{kv: kv}, nil
}

// Upsert writes chat under its ID.
func (s *ChatStore) Upsert(ctx context.Context, chat *model.Chat) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("failed to marshal chat: %w", err)
	}
	if _, err := s.kv.Put(ctx, chat.ID, data); err != nil {
		return fmt.Errorf("failed to put chat: %w", err)
	}
	return nil
}

// Get reads the chat with id.
func (s *ChatStore) Get(ctx context.Context, id string) (*model.Chat, error) {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	var chat model.Chat
	if err := json.Unmarshal(entry.Value(), &chat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
	}
	return &chat, nil
}

// Delete removes the chat with id.
func (s *ChatStore) Delete(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, id); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

// ListByUser scans the bucket for the user's chats, newest first.
func (s *ChatStore) ListByUser(ctx context.Context, userID string) ([]model.Chat, error) {
	keys, err := s.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list chat keys: %w", err)
	}

	var out []model.Chat
	for _, key := range keys {
		chat, err := s.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if chat.UserID == userID {
			out = append(out, *chat)
		}
	}

	store.SortNewestFirst(out)
	return out, nil
}
