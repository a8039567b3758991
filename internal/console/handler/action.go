package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/go-chi/chi/v5"
)

// QueueService Описываем, что нам нужно от менеджера очереди
type QueueService interface {
	CreateAction(ctx context.Context, draft domain.ActionDraft) (*domain.Action, error)
	GetPending(ctx context.Context, f domain.PendingFilter) ([]*domain.Action, error)
	GetAction(ctx context.Context, id string) (*domain.Action, error)
}

type ActionHandler struct {
	service QueueService
}

func NewActionHandler(s QueueService) *ActionHandler {
	return &ActionHandler{service: s}
}

// Create — точка входа агентов: предложенное действие проходит оценку риска
// и либо авто-исполняется (LOW), либо встает в очередь ревью
func (h *ActionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft domain.ActionDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	action, err := h.service.CreateAction(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, action)
}

// ListPending — очередь ревью: худший риск первым, внутри уровня FIFO.
// Фильтры из query: ?assignee=...&action_type=...&limit=...
func (h *ActionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	f := domain.PendingFilter{
		Assignee:   r.URL.Query().Get("assignee"),
		ActionType: domain.ActionType(r.URL.Query().Get("action_type")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		f.Limit = limit
	}

	list, err := h.service.GetPending(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*domain.Action{}
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *ActionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	action, err := h.service.GetAction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, action)
}
