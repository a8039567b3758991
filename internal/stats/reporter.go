package stats

import (
	"context"
	"fmt"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/metrics"
)

// Store описывает требования репортера к хранилищу
type Store interface {
	PendingCountsByRisk(ctx context.Context) (map[domain.RiskLevel]int64, error)
	PendingCountsByType(ctx context.Context) (map[domain.ActionType]int64, error)
	TodayCountsByStatus(ctx context.Context) (map[domain.ActionStatus]int64, error)
}

// Reporter — чистая агрегация без сайд-эффектов (обновление gauge-метрик
// глубины очереди мутацией состояния не считаем).
type Reporter struct {
	store   Store
	metrics *metrics.Metrics
}

func NewReporter(store Store, m *metrics.Metrics) *Reporter {
	return &Reporter{store: store, metrics: m}
}

// GetQueueStats собирает снимок очереди. Все группировки zero-fill'ятся
// по закрытым спискам: отсутствующая группа — это ноль, а не пропуск ключа.
func (r *Reporter) GetQueueStats(ctx context.Context) (*domain.QueueStats, error) {
	byRisk, err := r.store.PendingCountsByRisk(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: pending by risk: %w", err)
	}
	byType, err := r.store.PendingCountsByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: pending by type: %w", err)
	}
	byStatus, err := r.store.TodayCountsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: today by status: %w", err)
	}

	out := &domain.QueueStats{
		PendingByRisk: make(map[domain.RiskLevel]int64, len(domain.AllRiskLevels)),
		PendingByType: make(map[domain.ActionType]int64, len(domain.AllActionTypes)),
		TodayByStatus: make(map[domain.ActionStatus]int64, len(domain.AllActionStatuses)),
	}

	for _, level := range domain.AllRiskLevels {
		n := byRisk[level]
		out.PendingByRisk[level] = n
		out.PendingTotal += n
		r.metrics.QueueDepth.WithLabelValues(string(level)).Set(float64(n))
	}
	for _, t := range domain.AllActionTypes {
		out.PendingByType[t] = byType[t]
	}
	for _, s := range domain.AllActionStatuses {
		out.TodayByStatus[s] = byStatus[s]
	}

	return out, nil
}
