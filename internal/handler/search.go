package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/catalog"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/middleware"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/logger"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/metrics"
)

// Searcher runs a catalog search.
type Searcher interface {
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error)
}

// SearchHandler serves the search edge function.
type SearchHandler struct {
	searcher Searcher
	logger   *logger.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(s Searcher, log *logger.Logger) *SearchHandler {
	return &SearchHandler{
		searcher: s,
		logger:   log,
	}
}

// Search handles POST /functions/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req model.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Search) == "" {
		writeError(w, http.StatusBadRequest, "Please provide a search param!")
		return
	}
	if err := middleware.ValidateSearch(req.Search); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	resp, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		metrics.RecordSearch("error", time.Since(start).Seconds())
		if errors.Is(err, catalog.ErrEmptySearch) {
			writeError(w, http.StatusBadRequest, "Please provide a search param!")
			return
		}
		h.logger.Error("search failed", zap.Error(err), zap.String("search", req.Search))
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	metrics.RecordSearch("success", time.Since(start).Seconds())

	if resp.Result == nil {
		resp.Result = []model.Movie{}
	}
	writeJSON(w, http.StatusOK, resp)
}
