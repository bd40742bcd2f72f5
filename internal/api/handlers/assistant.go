package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/companion/internal/api"
	"github.com/cloo-solutions/companion/internal/service"
)

type AssistantService interface {
	Ask(ctx context.Context, question string) (*service.AskResult, error)
	History() []service.Message
	ClearHistory()
}

type AssistantHandler struct {
	svc AssistantService
}

func NewAssistantHandler(svc AssistantService) *AssistantHandler {
	return &AssistantHandler{svc: svc}
}

type AskRequest struct {
	Question string `json:"question"`
}

type HistoryResponse struct {
	Messages []service.Message `json:"messages"`
}

// Ask answers a question. Model failures still produce a 200 with
// success=false and a fallback response; only invalid questions and profile
// errors are reported as HTTP errors.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Ask(r.Context(), req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set(api.HeaderContextLevel, string(result.Level))
	if result.Cached {
		w.Header().Set(api.HeaderCache, "hit")
	} else {
		w.Header().Set(api.HeaderCache, "miss")
	}
	api.Success(w, http.StatusOK, result)
}

func (h *AssistantHandler) History(w http.ResponseWriter, r *http.Request) {
	messages := h.svc.History()
	if messages == nil {
		messages = []service.Message{}
	}
	api.Success(w, http.StatusOK, HistoryResponse{Messages: messages})
}

func (h *AssistantHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}
