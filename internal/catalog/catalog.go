// Package catalog provides the movie catalog: listing, semantic search, and
// the search service behind the search edge function.
package catalog

import (
	"context"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

// Catalog lists and searches movies.
type Catalog interface {
	AllMovies(ctx context.Context) ([]model.Movie, error)
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error)
}
