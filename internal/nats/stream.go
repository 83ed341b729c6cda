package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

const (
	// StreamName is the name of the chat event journal stream.
	StreamName = "CHAT_EVENTS"

	// SubjectPrefix is the prefix for all chat event subjects.
	SubjectPrefix = "chat"
)

// JournalEntry is one committed event as published to the journal.
type JournalEntry struct {
	ChatID    string      `json:"chat_id"`
	UserID    string      `json:"user_id,omitempty"`
	Version   uint64      `json:"version"`
	Index     int         `json:"index"`
	Replaced  bool        `json:"replaced,omitempty"`
	Event     model.Event `json:"event"`
	CreatedAt time.Time   `json:"created_at"`
}

// Journal publishes committed chat events to a JetStream stream so other
// services can follow conversations.
type Journal struct {
	client *Client
}

// NewJournal creates a journal publisher.
func NewJournal(client *Client) *Journal {
	return &Journal{client: client}
}

// EnsureStream ensures the journal stream exists with proper configuration.
func (j *Journal) EnsureStream(ctx context.Context) error {
	js := j.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Committed chat events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event of a chat.
func EventSubject(chatID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, chatID, role)
}

// ChatFilter returns the filter subject for all events of a chat.
func ChatFilter(chatID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, chatID)
}

// Publish publishes a journal entry and returns its stream sequence.
func (j *Journal) Publish(ctx context.Context, entry *JournalEntry) (uint64, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	ack, err := j.client.JetStream().Publish(ctx, EventSubject(entry.ChatID, entry.Event.Role), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish journal entry: %w", err)
	}

	return ack.Sequence, nil
}

// Purge removes every journaled event of a chat.
func (j *Journal) Purge(ctx context.Context, chatID string) error {
	stream, err := j.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(ChatFilter(chatID))); err != nil {
		return fmt.Errorf("failed to purge chat events: %w", err)
	}
	return nil
}
