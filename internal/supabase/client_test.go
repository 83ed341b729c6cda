package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestSelectSendsKeyAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "key" || r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		if r.URL.Path != "/rest/v1/movies" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("select") != "*" || r.URL.Query().Get("movie_id") != "eq.7" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]map[string]any{{"title": "Heat"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key", time.Second)
	var rows []map[string]any
	if err := c.Select(context.Background(), "movies", url.Values{"movie_id": {Eq("7")}}, &rows); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0]["title"] != "Heat" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestUpsertUsesMergeDuplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Query().Get("on_conflict") != "id" {
			t.Errorf("request = %s %s", r.Method, r.URL)
		}
		if r.Header.Get("Prefer") != "resolution=merge-duplicates,return=minimal" {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	if err := c.Upsert(context.Background(), "chats", map[string]string{"id": "1"}, "id"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	err := c.RPC(context.Background(), "query_embeddings", map[string]any{}, 3, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want APIError 400", err)
	}
}

func TestDeleteRequiresFilter(t *testing.T) {
	c := NewClient("http://unused", "key", time.Second)
	if err := c.Delete(context.Background(), "chats", nil); err == nil {
		t.Fatal("unfiltered delete should fail")
	}
}
