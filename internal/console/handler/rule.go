package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/go-chi/chi/v5"
)

// RuleService Описываем, что нам нужно от админского сервиса правил
type RuleService interface {
	GetByID(ctx context.Context, id string) (*domain.AutonomyRule, error)
	List(ctx context.Context) ([]domain.AutonomyRule, error)
	Create(ctx context.Context, r *domain.AutonomyRule) error
	Update(ctx context.Context, r *domain.AutonomyRule) error
	Deactivate(ctx context.Context, id string) error
	Seed(ctx context.Context) (int64, error)
}

type RuleHandler struct {
	service RuleService
}

func NewRuleHandler(s RuleService) *RuleHandler {
	return &RuleHandler{service: s}
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.AutonomyRule{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rule domain.AutonomyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.service.Create(r.Context(), &rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var rule domain.AutonomyRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	rule.ID = id // ID из URL, body его не переопределяет

	if err := h.service.Update(r.Context(), &rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// Deactivate — мягкое отключение правила (kill-switch уровня правила)
func (h *RuleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Deactivate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SeedResponse struct {
	Inserted int64 `json:"inserted"`
}

func (h *RuleHandler) Seed(w http.ResponseWriter, r *http.Request) {
	inserted, err := h.service.Seed(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SeedResponse{Inserted: inserted})
}
