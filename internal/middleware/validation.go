package middleware

import (
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxContentLength bounds a user message.
const MaxContentLength = 100000

// chatIDPattern admits short random IDs as generated by browser clients.
var chatIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateChatID accepts UUIDs and short URL-safe IDs.
func ValidateChatID(id string) error {
	if _, err := uuid.Parse(id); err == nil {
		return nil
	}
	if !chatIDPattern.MatchString(id) {
		return errors.New("invalid chat ID format")
	}
	return nil
}

// ValidateSearch validates a catalog search term.
func ValidateSearch(search string) error {
	if len(search) > 1000 {
		return errors.New("search exceeds maximum length")
	}
	if !utf8.ValidString(search) {
		return errors.New("search must be valid UTF-8")
	}
	return nil
}
