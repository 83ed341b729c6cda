// Package tools declares the closed set of UI operations the model may
// select, with a typed argument record per operation.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/llm"
)

// ErrInvalidArguments is returned when a call's arguments do not match its schema.
var ErrInvalidArguments = errors.New("invalid function arguments")

// Operation names a model-selectable operation.
type Operation string

const (
	OpShowAllMovies   Operation = "show_all_movies"
	OpSearchMovies    Operation = "search_movies"
	OpShowTimes       Operation = "show_times"
	OpShowSeats       Operation = "show_seats"
	OpPurchaseTickets Operation = "purchase_tickets"
)

// SystemInstruction is sent ahead of every conversation.
const SystemInstruction = `You are a friendly assistant for users who want to purchase movie tickets. You will have information about movies and their availability, and the ability to modify the UI through the tools available.

When the user wants see all available movies, call show_all_movies to show a list of all available movies.
When the user wants to search for movies, call search_movies. You have two options here:
1. Search for a specific movie, like "Do you have tickets for Spiderman?" or "are you playing The Matrix", in which case you would call search_movies with a limit of 1 (since only 1 is being asked for).
2. Semantic search, for when the users asks for "movies to watch with my kids", "movies about war", or "superhero movies". In this case, you would call search_movies with a limit of 6.

When the user interacts with the UI, the messages you receive will direct you to the correct function to call to update the UI, with the parameters you need.`

// Call is a parsed operation selection. The concrete type is one of
// ShowAllMovies, SearchMovies, ShowTimes, ShowSeats, PurchaseTickets or Unknown.
type Call interface {
	Operation() Operation
}

// ShowAllMovies lists the whole catalog.
type ShowAllMovies struct{}

// SearchMovies runs a semantic search.
type SearchMovies struct {
	Search string `json:"search"`
	Limit  int    `json:"limit"`
}

// ShowTimes offers show times for a title.
type ShowTimes struct {
	Title string   `json:"title"`
	Times []string `json:"times"`
}

// ShowSeats opens the seat picker.
type ShowSeats struct {
	Movie string `json:"movie"`
	Time  string `json:"time"`
	Date  string `json:"date"`
}

// PurchaseTickets opens the purchase confirmation.
type PurchaseTickets struct {
	Movie string   `json:"movie"`
	Time  string   `json:"time"`
	Price float64  `json:"price"`
	Seats []string `json:"seats"`
}

// Unknown is a selection of an operation outside the registry.
type Unknown struct {
	Name      string
	Arguments json.RawMessage
}

func (ShowAllMovies) Operation() Operation   { return OpShowAllMovies }
func (SearchMovies) Operation() Operation    { return OpSearchMovies }
func (ShowTimes) Operation() Operation       { return OpShowTimes }
func (ShowSeats) Operation() Operation       { return OpShowSeats }
func (PurchaseTickets) Operation() Operation { return OpPurchaseTickets }
func (u Unknown) Operation() Operation       { return Operation(u.Name) }

// Parse decodes a function call into its typed record. A name outside the
// registry yields Unknown, not an error.
func Parse(fc llm.FunctionCall) (Call, error) {
	args := fc.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch Operation(fc.Name) {
	case OpShowAllMovies:
		return ShowAllMovies{}, nil

	case OpSearchMovies:
		var c SearchMovies
		if err := decode(fc.Name, args, &c); err != nil {
			return nil, err
		}
		if strings.TrimSpace(c.Search) == "" {
			return nil, fmt.Errorf("%w: %s requires search", ErrInvalidArguments, fc.Name)
		}
		if c.Limit <= 0 {
			c.Limit = 1
		}
		return c, nil

	case OpShowTimes:
		var c ShowTimes
		if err := decode(fc.Name, args, &c); err != nil {
			return nil, err
		}
		if c.Title == "" {
			return nil, fmt.Errorf("%w: %s requires title", ErrInvalidArguments, fc.Name)
		}
		return c, nil

	case OpShowSeats:
		var c ShowSeats
		if err := decode(fc.Name, args, &c); err != nil {
			return nil, err
		}
		if c.Movie == "" {
			return nil, fmt.Errorf("%w: %s requires movie", ErrInvalidArguments, fc.Name)
		}
		return c, nil

	case OpPurchaseTickets:
		var c PurchaseTickets
		if err := decode(fc.Name, args, &c); err != nil {
			return nil, err
		}
		if c.Movie == "" || len(c.Seats) == 0 {
			return nil, fmt.Errorf("%w: %s requires movie and seats", ErrInvalidArguments, fc.Name)
		}
		return c, nil
	}

	return Unknown{Name: fc.Name, Arguments: args}, nil
}

func decode(name string, args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArguments, name, err)
	}
	return nil
}

// Definitions returns the operation registry in model function format.
func Definitions() []llm.FunctionSpec {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}

	object := func(props map[string]any, required ...string) map[string]any {
		schema := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema
	}

	return []llm.FunctionSpec{
		{
			Name:        string(OpShowAllMovies),
			Description: "Provide a list of available movies",
			Parameters:  object(map[string]any{}),
		},
		{
			Name:        string(OpSearchMovies),
			Description: "Search for movies",
			Parameters: object(map[string]any{
				"search": str,
				"limit":  map[string]any{"type": "number"},
			}, "search", "limit"),
		},
		{
			Name:        string(OpShowTimes),
			Description: "Provide a list of available times",
			Parameters: object(map[string]any{
				"title": str,
				"times": strList,
			}, "title", "times"),
		},
		{
			Name:        string(OpShowSeats),
			Description: "Provide a list of available seats",
			Parameters: object(map[string]any{
				"movie": str,
				"time":  str,
				"date":  str,
			}, "movie", "time", "date"),
		},
		{
			Name:        string(OpPurchaseTickets),
			Description: "Purchase tickets",
			Parameters: object(map[string]any{
				"movie": str,
				"time":  str,
				"price": map[string]any{"type": "number"},
				"seats": strList,
			}, "movie", "time", "price", "seats"),
		},
	}
}
