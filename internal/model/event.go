// Package model defines data structures for the movie ticketing assistant.
package model

// Role represents the role of a conversation event.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleFunction  Role = "function"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleFunction:
		return true
	}
	return false
}

// Function tags recorded in the Name of function-role events. Each tag
// identifies the UI-producing operation that generated the event.
const (
	FunctionShowMovies      = "showMovies"
	FunctionSearchMovies    = "searchMovies"
	FunctionShowTimes       = "showTimes"
	FunctionShowSeats       = "showSeats"
	FunctionPurchaseTickets = "purchaseTickets"

	// FunctionListStocks is the tag older chats used for the seat picker.
	FunctionListStocks = "listStocks"
)

// Event is one entry in a conversation's event log. Events are immutable
// once appended.
type Event struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}
