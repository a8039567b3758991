package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra/auth"
	"github.com/go-chi/chi/v5"
)

// ReviewService Описываем, что нам нужно от сервиса ревью
type ReviewService interface {
	Approve(ctx context.Context, actionID, reviewerID string, edits *string) (*domain.Action, error)
	Reject(ctx context.Context, actionID, reviewerID, reason string) (*domain.Action, error)
}

type ReviewHandler struct {
	service ReviewService
}

func NewReviewHandler(s ReviewService) *ReviewHandler {
	return &ReviewHandler{service: s}
}

type ApproveRequest struct {
	// nil — апрув как есть; не-nil — APPROVED_WITH_EDITS с подсчетом похожести
	Edits *string `json:"edits"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ApproveRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	// Личность ревьюера берем только из токена, не из body
	reviewerID := auth.ReviewerFromContext(r.Context())
	if reviewerID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	action, err := h.service.Approve(r.Context(), id, reviewerID, req.Edits)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, action)
}

func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	reviewerID := auth.ReviewerFromContext(r.Context())
	if reviewerID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	action, err := h.service.Reject(r.Context(), id, reviewerID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, action)
}
