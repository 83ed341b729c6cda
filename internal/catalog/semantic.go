package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/llm"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

// ErrEmptySearch is returned for a search request without a search term.
var ErrEmptySearch = errors.New("please provide a search param")

// Match is one row of the embedding match function.
type Match struct {
	ID         int64   `json:"id"`
	MovieID    int64   `json:"movie_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// VectorIndex finds movie embeddings similar to a query embedding.
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Match, error)
}

// MovieLookup resolves movie IDs to catalog rows.
type MovieLookup interface {
	MoviesByID(ctx context.Context, ids []int64) ([]model.Movie, error)
}

// SemanticSearcher implements search by embedding the query and matching it
// against stored movie embeddings.
type SemanticSearcher struct {
	embedder llm.Embedder
	index    VectorIndex
	movies   MovieLookup
}

// NewSemanticSearcher creates a semantic searcher.
func NewSemanticSearcher(embedder llm.Embedder, index VectorIndex, movies MovieLookup) *SemanticSearcher {
	return &SemanticSearcher{embedder: embedder, index: index, movies: movies}
}

// Search returns the movies matching req.Search, most similar first.
func (s *SemanticSearcher) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	if strings.TrimSpace(req.Search) == "" {
		return nil, ErrEmptySearch
	}

	embedding, err := s.embedder.Embed(ctx, req.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to embed search: %w", err)
	}

	limit := req.MaxResults()
	matches, err := s.index.Query(ctx, embedding, req.Threshold(), limit)
	if err != nil {
		return nil, err
	}

	// Several embeddings may belong to one movie; keep its best match.
	seen := make(map[int64]bool, len(matches))
	var ids []int64
	for _, m := range matches {
		if seen[m.MovieID] {
			continue
		}
		seen[m.MovieID] = true
		ids = append(ids, m.MovieID)
		if len(ids) == limit {
			break
		}
	}

	rows, err := s.movies.MoviesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Movie, len(rows))
	for _, m := range rows {
		byID[m.MovieID] = m
	}

	result := make([]model.Movie, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			result = append(result, m)
		}
	}

	return &model.SearchResponse{Search: req.Search, Result: result}, nil
}
