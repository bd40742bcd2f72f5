package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/companion/internal/api"
	"github.com/cloo-solutions/companion/internal/cache"
	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/cloo-solutions/companion/internal/vectorindex"
)

const maxSearchResults = 50

type IndexService interface {
	Rebuild(ctx context.Context) (int, error)
	Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
	Stats() vectorindex.Stats
}

type CacheService interface {
	Stats() cache.Stats
	InvalidateAll()
}

type HistoryCounter interface {
	HistoryLen() int
}

type IndexHandler struct {
	index   IndexService
	cache   CacheService
	history HistoryCounter
}

func NewIndexHandler(index IndexService, responses CacheService, history HistoryCounter) *IndexHandler {
	return &IndexHandler{index: index, cache: responses, history: history}
}

type RebuildResponse struct {
	DocumentsAdded int `json:"documents_added"`
}

type SearchResponse struct {
	Query   string             `json:"query"`
	Results []domain.SearchHit `json:"results"`
}

type StatsResponse struct {
	Index         vectorindex.Stats `json:"index"`
	Cache         cache.Stats       `json:"cache"`
	HistoryLength int               `json:"history_length"`
}

func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	n, err := h.index.Rebuild(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, RebuildResponse{DocumentsAdded: n})
}

func (h *IndexHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.Error(w, http.StatusBadRequest, "q is required")
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = min(parsed, maxSearchResults)
	}

	hits, err := h.index.Search(r.Context(), query, k)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, SearchResponse{Query: query, Results: hits})
}

func (h *IndexHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Index: h.index.Stats()}
	if h.cache != nil {
		resp.Cache = h.cache.Stats()
	}
	if h.history != nil {
		resp.HistoryLength = h.history.HistoryLen()
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *IndexHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		h.cache.InvalidateAll()
	}
	w.WriteHeader(http.StatusNoContent)
}
