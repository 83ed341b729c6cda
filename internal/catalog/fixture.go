package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
)

// Fixture is an in-process catalog loaded from a YAML file. Search scores
// movies by keyword overlap instead of embeddings.
type Fixture struct {
	movies []model.Movie
}

type fixtureFile struct {
	Movies []model.Movie `yaml:"movies"`
}

// LoadFixture reads a catalog from a YAML file of the form
//
//	movies:
//	  - title: The Matrix
//	    movie_id: 1
//	    ...
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture parses YAML catalog data.
func ParseFixture(data []byte) (*Fixture, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog fixture: %w", err)
	}
	return NewFixture(f.Movies), nil
}

// NewFixture creates a fixture catalog over movies.
func NewFixture(movies []model.Movie) *Fixture {
	return &Fixture{movies: append([]model.Movie(nil), movies...)}
}

// AllMovies returns every movie.
func (f *Fixture) AllMovies(ctx context.Context) ([]model.Movie, error) {
	return append([]model.Movie(nil), f.movies...), nil
}

// Search ranks movies by the share of search keywords found in their title
// and description. A title containing the whole search term scores 1.
func (f *Fixture) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	if strings.TrimSpace(req.Search) == "" {
		return nil, ErrEmptySearch
	}

	type scored struct {
		movie model.Movie
		score float64
	}

	threshold := req.Threshold()
	var hits []scored
	for _, m := range f.movies {
		if s := fixtureScore(req.Search, m); s >= threshold {
			hits = append(hits, scored{movie: m, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score == hits[j].score {
			return hits[i].movie.Title < hits[j].movie.Title
		}
		return hits[i].score > hits[j].score
	})

	limit := req.MaxResults()
	result := make([]model.Movie, 0, limit)
	for _, h := range hits {
		if len(result) == limit {
			break
		}
		result = append(result, h.movie)
	}

	return &model.SearchResponse{Search: req.Search, Result: result}, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"movie": true, "movies": true, "film": true, "films": true, "show": true,
	"you": true, "are": true, "have": true, "any": true, "some": true, "playing": true,
}

func keywords(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, w := range fields {
		if len(w) > 2 && !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

func fixtureScore(search string, m model.Movie) float64 {
	title := strings.ToLower(m.Title)
	if strings.Contains(title, strings.ToLower(strings.TrimSpace(search))) {
		return 1
	}

	words := keywords(search)
	if len(words) == 0 {
		return 0
	}
	haystack := map[string]bool{}
	for _, w := range keywords(m.Title + " " + m.Description) {
		haystack[w] = true
	}

	matched := 0
	for _, w := range words {
		if haystack[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}
