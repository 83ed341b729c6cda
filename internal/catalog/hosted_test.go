package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/llm"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/supabase"
)

func newHostedServer(t *testing.T) *Hosted {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/movies", func(w http.ResponseWriter, r *http.Request) {
		movies := []model.Movie{{Title: "The Matrix", MovieID: 1}, {Title: "Finding Nemo", MovieID: 2}}
		if r.URL.Query().Get("movie_id") == "in.(2)" {
			movies = movies[1:]
		}
		json.NewEncoder(w).Encode(movies)
	})
	mux.HandleFunc("/rest/v1/rpc/query_embeddings", func(w http.ResponseWriter, r *http.Request) {
		var args map[string]any
		json.NewDecoder(r.Body).Decode(&args)
		if args["match_threshold"] != 0.8 || r.URL.Query().Get("limit") != "1" {
			http.Error(w, `{"message":"unexpected args"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode([]Match{{ID: 7, MovieID: 2, Similarity: 0.9}})
	})
	mux.HandleFunc("/functions/v1/search", func(w http.ResponseWriter, r *http.Request) {
		var req model.SearchRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(model.SearchResponse{Search: req.Search, Result: []model.Movie{{Title: "The Matrix", MovieID: 1}}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewHosted(supabase.NewClient(srv.URL, "service-key", 5*time.Second))
}

func TestHostedAllMovies(t *testing.T) {
	h := newHostedServer(t)

	movies, err := h.AllMovies(context.Background())
	if err != nil {
		t.Fatalf("AllMovies: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("movies = %+v", movies)
	}
}

func TestHostedSearchInvokesEdgeFunction(t *testing.T) {
	h := newHostedServer(t)

	resp, err := h.Search(context.Background(), model.SearchRequest{Search: "Matrix", Limit: intPtr(1)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Search != "Matrix" || resp.Result[0].Title != "The Matrix" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestHostedSemanticSearch(t *testing.T) {
	h := newHostedServer(t)
	s := NewSemanticSearcher(&fakeEmbedder{}, h, h)

	resp, err := s.Search(context.Background(), model.SearchRequest{Search: "fish", Limit: intPtr(1)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Result) != 1 || resp.Result[0].Title != "Finding Nemo" {
		t.Fatalf("results = %+v", resp.Result)
	}
}

func TestHostedSemanticSearchSendsIndexDimensions(t *testing.T) {
	var requested, indexed int

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req openai.EmbeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		requested = req.Dimensions
		json.NewEncoder(w).Encode(openai.EmbeddingResponse{
			Object: "list",
			Data:   []openai.Embedding{{Object: "embedding", Embedding: make([]float32, req.Dimensions)}},
			Model:  req.Model,
		})
	})
	mux.HandleFunc("/rest/v1/rpc/query_embeddings", func(w http.ResponseWriter, r *http.Request) {
		var args struct {
			QueryEmbedding string `json:"query_embedding"`
		}
		json.NewDecoder(r.Body).Decode(&args)
		var vector []float32
		if err := json.Unmarshal([]byte(args.QueryEmbedding), &vector); err != nil {
			http.Error(w, `{"message":"bad vector"}`, http.StatusBadRequest)
			return
		}
		indexed = len(vector)
		json.NewEncoder(w).Encode([]Match{{ID: 7, MovieID: 1, Similarity: 0.9}})
	})
	mux.HandleFunc("/rest/v1/movies", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Movie{{Title: "The Matrix", MovieID: 1}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	embedder := llm.NewOpenAIEmbedder(llm.NewOpenAIClientWithConfig(cfg), "", 0)

	h := NewHosted(supabase.NewClient(srv.URL, "service-key", 5*time.Second))
	resp, err := NewSemanticSearcher(embedder, h, h).Search(context.Background(), model.SearchRequest{Search: "hackers"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if requested != llm.DefaultEmbeddingDimensions || indexed != llm.DefaultEmbeddingDimensions {
		t.Fatalf("requested %d dimensions, index received %d, want %d", requested, indexed, llm.DefaultEmbeddingDimensions)
	}
	if len(resp.Result) != 1 || resp.Result[0].Title != "The Matrix" {
		t.Fatalf("results = %+v", resp.Result)
	}
}
