package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/supabase"
)

const (
	moviesTable    = "movies"
	searchFunction = "search"
	matchFunction  = "query_embeddings"
)

// Hosted is the catalog stored in the hosted backend. Search goes through
// the search edge function.
type Hosted struct {
	client *supabase.Client
}

// NewHosted creates a hosted catalog.
func NewHosted(client *supabase.Client) *Hosted {
	return &Hosted{client: client}
}

// AllMovies reads the movies table.
func (h *Hosted) AllMovies(ctx context.Context) ([]model.Movie, error) {
	var movies []model.Movie
	if err := h.client.Select(ctx, moviesTable, nil, &movies); err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	return movies, nil
}

// Search invokes the search edge function.
func (h *Hosted) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	var resp model.SearchResponse
	if err := h.client.Invoke(ctx, searchFunction, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to search movies: %w", err)
	}
	return &resp, nil
}

// Query runs the embedding match function. Matches come back ordered by
// descending similarity.
func (h *Hosted) Query(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Match, error) {
	vector, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}

	args := map[string]any{
		"query_embedding": string(vector),
		"match_threshold": threshold,
	}

	var matches []Match
	if err := h.client.RPC(ctx, matchFunction, args, limit, &matches); err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	return matches, nil
}

// MoviesByID reads the movies with the given IDs, in no particular order.
func (h *Hosted) MoviesByID(ctx context.Context, ids []int64) ([]model.Movie, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = strconv.FormatInt(id, 10)
	}

	var movies []model.Movie
	query := url.Values{"movie_id": {supabase.In(values)}}
	if err := h.client.Select(ctx, moviesTable, query, &movies); err != nil {
		return nil, fmt.Errorf("failed to load movies: %w", err)
	}
	return movies, nil
}
