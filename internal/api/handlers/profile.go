package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/companion/internal/api"
	"github.com/cloo-solutions/companion/internal/domain"
)

type ProfileService interface {
	Snapshot(ctx context.Context) (*domain.Profile, error)
	Save(ctx context.Context, p *domain.Profile) error
}

type ProfileHandler struct {
	svc ProfileService
}

func NewProfileHandler(svc ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Snapshot(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, p)
}

// Put replaces the profile. The response cache is cleared and an index
// rebuild is scheduled by the service.
func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	var p domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Save(r.Context(), &p); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &p)
}
