package tools

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/llm"
)

func call(name, args string) llm.FunctionCall {
	return llm.FunctionCall{Name: name, Arguments: json.RawMessage(args)}
}

func TestParseTypedCalls(t *testing.T) {
	c, err := Parse(call("search_movies", `{"search":"Matrix","limit":1}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	search, ok := c.(SearchMovies)
	if !ok || search.Search != "Matrix" || search.Limit != 1 {
		t.Fatalf("search call = %#v", c)
	}

	c, err = Parse(call("purchase_tickets", `{"movie":"Heat","time":"19:30","price":15,"seats":["A1","A2"]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p, ok := c.(PurchaseTickets); !ok || len(p.Seats) != 2 || p.Price != 15 {
		t.Fatalf("purchase call = %#v", c)
	}

	c, err = Parse(llm.FunctionCall{Name: "show_all_movies"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Operation() != OpShowAllMovies {
		t.Fatalf("operation = %s", c.Operation())
	}
}

func TestParseUnknownOperation(t *testing.T) {
	c, err := Parse(call("show_stock_price", `{"symbol":"ACME"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	u, ok := c.(Unknown)
	if !ok || u.Name != "show_stock_price" {
		t.Fatalf("call = %#v, want Unknown", c)
	}
}

func TestParseRejectsBadArguments(t *testing.T) {
	for _, fc := range []llm.FunctionCall{
		call("search_movies", `{"search":""}`),
		call("search_movies", `not json`),
		call("show_times", `{"times":["10:00"]}`),
		call("show_seats", `{}`),
		call("purchase_tickets", `{"movie":"Heat","seats":[]}`),
	} {
		if _, err := Parse(fc); !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("Parse(%s %s) err = %v, want ErrInvalidArguments", fc.Name, fc.Arguments, err)
		}
	}
}

func TestDefinitionsCoverRegistry(t *testing.T) {
	want := map[string]bool{
		string(OpShowAllMovies):   true,
		string(OpSearchMovies):    true,
		string(OpShowTimes):       true,
		string(OpShowSeats):       true,
		string(OpPurchaseTickets): true,
	}
	defs := Definitions()
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(want))
	}
	for _, d := range defs {
		if !want[d.Name] {
			t.Errorf("unexpected definition %q", d.Name)
		}
		if d.Parameters["type"] != "object" {
			t.Errorf("%s schema type = %v", d.Name, d.Parameters["type"])
		}
		if _, err := json.Marshal(d.Parameters); err != nil {
			t.Errorf("%s schema not encodable: %v", d.Name, err)
		}
	}
}
