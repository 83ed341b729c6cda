package model

import (
	"time"
)

// TitleMaxLength bounds the title derived from the first event.
const TitleMaxLength = 100

// Chat is the persisted record of one conversation thread.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Event   `json:"messages"`
	Path      string    `json:"path"`
}

// ChatPath returns the client path of a chat.
func ChatPath(chatID string) string {
	return "/chat/" + chatID
}

// ChatTitle derives a chat title from the first event of the log.
func ChatTitle(events []Event) string {
	if len(events) == 0 {
		return ""
	}
	title := []rune(events[0].Content)
	if len(title) > TitleMaxLength {
		title = title[:TitleMaxLength]
	}
	return string(title)
}

// ChatSummary is a chat without its events, used for listings.
type ChatSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"path"`
}

// NewChatResponse is the response to creating a chat.
type NewChatResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// ListChatsResponse is the response for listing chats.
type ListChatsResponse struct {
	Chats []ChatSummary `json:"chats"`
	Total int           `json:"total"`
}

// SubmitMessageRequest is the request to submit a user message.
type SubmitMessageRequest struct {
	Content string `json:"content"`
}
