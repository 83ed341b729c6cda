package store

import (
	"context"
	"fmt"
	"net/url"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/supabase"
)

const chatsTable = "chats"

// Supabase stores chats in the hosted chats table.
type Supabase struct {
	client *supabase.Client
}

// NewSupabase creates a store backed by the hosted chats table.
func NewSupabase(client *supabase.Client) *Supabase {
	return &Supabase{client: client}
}

// Upsert writes chat, merging on id.
func (s *Supabase) Upsert(ctx context.Context, chat *model.Chat) error {
	if err := s.client.Upsert(ctx, chatsTable, chat, "id"); err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

// Get reads the chat with id.
func (s *Supabase) Get(ctx context.Context, id string) (*model.Chat, error) {
	var rows []model.Chat
	if err := s.client.Select(ctx, chatsTable, url.Values{"id": {supabase.Eq(id)}}, &rows); err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Delete removes the chat with id.
func (s *Supabase) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, chatsTable, url.Values{"id": {supabase.Eq(id)}}); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

// ListByUser reads the user's chats, newest first.
func (s *Supabase) ListByUser(ctx context.Context, userID string) ([]model.Chat, error) {
	query := url.Values{
		"user_id": {supabase.Eq(userID)},
		"order":   {"created_at.desc"},
	}
	var rows []model.Chat
	if err := s.client.Select(ctx, chatsTable, query, &rows); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return rows, nil
}
