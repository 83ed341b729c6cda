// Package supabase is a minimal client for the hosted backend's REST
// (PostgREST) and edge-function endpoints.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client talks to one Supabase project.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the project at baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Eq builds a PostgREST equality filter value.
func Eq(v string) string {
	return "eq." + v
}

// In builds a PostgREST membership filter value.
func In(values []string) string {
	return "in.(" + strings.Join(values, ",") + ")"
}

// Select reads rows of table matching query into out.
func (c *Client) Select(ctx context.Context, table string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if query.Get("select") == "" {
		query.Set("select", "*")
	}
	return c.do(ctx, http.MethodGet, "/rest/v1/"+table, query, nil, nil, out)
}

// Upsert inserts row into table, merging on the onConflict column.
func (c *Client) Upsert(ctx context.Context, table string, row any, onConflict string) error {
	query := url.Values{}
	if onConflict != "" {
		query.Set("on_conflict", onConflict)
	}
	headers := http.Header{}
	headers.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, query, headers, row, nil)
}

// Delete removes rows of table matching filters.
func (c *Client) Delete(ctx context.Context, table string, filters url.Values) error {
	if len(filters) == 0 {
		return fmt.Errorf("supabase: refusing unfiltered delete on %s", table)
	}
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+table, filters, nil, nil, nil)
}

// RPC calls a database function. A positive limit caps the rows returned.
func (c *Client) RPC(ctx context.Context, fn string, args any, limit int, out any) error {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, query, nil, args, out)
}

// Invoke calls an edge function with a JSON body.
func (c *Client) Invoke(ctx context.Context, function string, body any, out any) error {
	return c.do(ctx, http.MethodPost, "/functions/v1/"+function, nil, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers http.Header, body, out any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse supabase response: %w", err)
	}
	return nil
}
