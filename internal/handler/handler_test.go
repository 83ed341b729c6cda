package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/catalog"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/llm"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/middleware"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/projector"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/service"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/store"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/logger"
)

const testSecret = "test-secret"

type fixedLLM struct {
	resp *llm.CompletionResponse
}

func (f *fixedLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return f.resp, nil
}

func (f *fixedLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	if f.resp.Content != "" {
		if err := callback(f.resp.Content, 0); err != nil {
			return nil, err
		}
	}
	return f.resp, nil
}

func (f *fixedLLM) Name() string     { return "fixed" }
func (f *fixedLLM) Models() []string { return []string{"fixed"} }

func newTestRouter(t *testing.T, resp *llm.CompletionResponse) http.Handler {
	t.Helper()

	cat := catalog.NewFixture([]model.Movie{
		{Title: "The Matrix", MovieID: 1, Description: "A hacker fights machines."},
		{Title: "Finding Nemo", MovieID: 2, Description: "A fish searches for his son."},
	})

	log := logger.NewNop()
	chats := service.NewChatService(store.NewMemory(), nil, projector.New(model.DefaultSeatPrice, log), log, 0)
	dispatcher := service.NewDispatcher(chats, &fixedLLM{resp: resp}, cat, service.DispatcherConfig{
		Model:       "fixed",
		CodeDelay:   time.Millisecond,
		SettleDelay: time.Millisecond,
	}, log)

	chatHandler := NewChatHandler(chats, log)
	actionHandler := NewActionHandler(dispatcher, log)
	searchHandler := NewSearchHandler(cat, log)
	healthHandler := NewHealthHandler(nil)

	r := chi.NewRouter()
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Post("/functions/v1/search", searchHandler.Search)
	r.Route("/api/v1/chats", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(testSecret))
			r.Post("/", chatHandler.Create)
			r.Get("/{id}/ui", chatHandler.UI)
			r.Post("/{id}/messages", actionHandler.SubmitMessage)
			r.Post("/{id}/payment/code", actionHandler.RequestCode)
			r.Post("/{id}/payment/validate", actionHandler.ValidateCode)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(testSecret))
			r.Get("/", chatHandler.List)
			r.Delete("/{id}", chatHandler.Delete)
		})
	})
	return r
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := &middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return "Bearer " + signed
}

type sseEvent struct {
	name string
	data string
}

func readSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func do(t *testing.T, h http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, &llm.CompletionResponse{Content: "hi"})

	if rec := do(t, h, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rec.Code)
	}
}

func TestCreateChat(t *testing.T) {
	h := newTestRouter(t, &llm.CompletionResponse{Content: "hi"})

	rec := do(t, h, http.MethodPost, "/api/v1/chats/", "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp model.NewChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" || resp.Path != "/chat/"+resp.ID {
		t.Fatalf("response = %+v", resp)
	}
}

func TestSubmitMessageStreamsUI(t *testing.T) {
	h := newTestRouter(t, &llm.CompletionResponse{
		Model:        "fixed",
		FunctionCall: &llm.FunctionCall{Name: "search_movies", Arguments: json.RawMessage(`{"search":"Matrix","limit":1}`)},
	})
	auth := token(t, "user-1")

	rec := do(t, h, http.MethodPost, "/api/v1/chats/abc123/messages", `{"content":"are you playing The Matrix?"}`, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := readSSE(t, rec.Body.String())
	if len(events) < 3 {
		t.Fatalf("events = %+v", events)
	}
	if events[len(events)-1].name != eventDone {
		t.Fatalf("last event = %s", events[len(events)-1].name)
	}

	var final model.UIPartEvent
	if err := json.Unmarshal([]byte(events[len(events)-2].data), &final); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !final.Done || final.Display.Kind != model.KindMovieList {
		t.Fatalf("final part = %+v", final)
	}
	if final.Display.Movies.Movies[0].Title != "The Matrix" {
		t.Fatalf("movies = %+v", final.Display.Movies.Movies)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/chats/abc123/ui", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("ui status = %d", rec.Code)
	}
	var ui []model.UIMessage
	if err := json.NewDecoder(rec.Body).Decode(&ui); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ui) != 2 || ui[1].Display.Kind != model.KindMovieList {
		t.Fatalf("ui = %+v", ui)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/chats/", "", auth)
	var list model.ListChatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 1 || list.Chats[0].Title != "are you playing The Matrix?" {
		t.Fatalf("list = %+v", list)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/chats/abc123/ui", "", token(t, "user-2")); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign ui status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/chats/abc123", "", auth); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestSubmitMessageValidation(t *testing.T) {
	h := newTestRouter(t, &llm.CompletionResponse{Content: "hi"})

	if rec := do(t, h, http.MethodPost, "/api/v1/chats/abc123/messages", `{"content":""}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty content status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/chats/bad%20id/messages", `{"content":"hi"}`, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/chats/abc123/messages", `{"content":"hi"}`, "Bearer nope"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", rec.Code)
	}
}

func TestListRequiresAuth(t *testing.T) {
	h := newTestRouter(t, &llm.CompletionResponse{Content: "hi"})

	if rec := do(t, h, http.MethodGet, "/api/v1/chats/", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnonymousUIIsEmpty(t *testing.T) {
	h := newTestRouter(t, &llm.CompletionResponse{Content: "hi"})

	rec := do(t, h, http.MethodGet, "/api/v1/chats/abc123/ui", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("body = %s", body)
	}
}

func TestPaymentEndpoints(t *testing.T) {
	h := newTestRouter(t, &llm.CompletionResponse{
		Model: "fixed",
		FunctionCall: &llm.FunctionCall{
			Name:      "purchase_tickets",
			Arguments: json.RawMessage(`{"movie":"The Matrix","time":"19:30","price":15,"seats":["A1","A2"]}`),
		},
	})
	auth := token(t, "user-1")

	if rec := do(t, h, http.MethodPost, "/api/v1/chats/abc123/payment/validate", "", auth); rec.Code != http.StatusConflict {
		t.Fatalf("validate before purchase status = %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/chats/abc123/messages", `{"content":"buy A1 and A2"}`, auth); rec.Code != http.StatusOK {
		t.Fatalf("purchase status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/v1/chats/abc123/payment/code", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("code status = %d body = %s", rec.Code, rec.Body.String())
	}
	var statuses []model.StatusPartEvent
	for _, e := range readSSE(t, rec.Body.String()) {
		if e.name == eventStatus {
			var s model.StatusPartEvent
			json.Unmarshal([]byte(e.data), &s)
			statuses = append(statuses, s)
		}
	}
	if len(statuses) != 1 || statuses[0].Status != model.PaymentRequiresCode || !statuses[0].Done {
		t.Fatalf("code statuses = %+v", statuses)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/chats/abc123/payment/validate", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d", rec.Code)
	}
	statuses = nil
	var lastUI model.UIPartEvent
	for _, e := range readSSE(t, rec.Body.String()) {
		switch e.name {
		case eventStatus:
			var s model.StatusPartEvent
			json.Unmarshal([]byte(e.data), &s)
			statuses = append(statuses, s)
		case eventUI:
			json.Unmarshal([]byte(e.data), &lastUI)
		}
	}
	if len(statuses) != 2 || statuses[0].Status != model.PaymentInProgress || statuses[1].Status != model.PaymentCompleted {
		t.Fatalf("validate statuses = %+v", statuses)
	}
	if statuses[0].Done || !statuses[1].Done {
		t.Fatalf("done flags = %+v", statuses)
	}
	if lastUI.Display.Kind != model.KindPaymentResult || !lastUI.Done {
		t.Fatalf("last ui = %+v", lastUI)
	}
}

func TestSearchEdgeFunction(t *testing.T) {
	h := newTestRouter(t, &llm.CompletionResponse{Content: "hi"})

	rec := do(t, h, http.MethodPost, "/functions/v1/search", `{"search":"Matrix","limit":1}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp model.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Search != "Matrix" || len(resp.Result) != 1 || resp.Result[0].Title != "The Matrix" {
		t.Fatalf("response = %+v", resp)
	}

	rec = do(t, h, http.MethodPost, "/functions/v1/search", `{}`, "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Please provide a search param!") {
		t.Fatalf("missing search: %d %s", rec.Code, rec.Body.String())
	}
}
