package handler

import (
	"context"
	"net/http"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
)

type StatsService interface {
	GetQueueStats(ctx context.Context) (*domain.QueueStats, error)
}

type StatsHandler struct {
	service StatsService
}

func NewStatsHandler(s StatsService) *StatsHandler {
	return &StatsHandler{service: s}
}

// GetQueueStats — снимок очереди для дашборда ревьюеров
func (h *StatsHandler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetQueueStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
