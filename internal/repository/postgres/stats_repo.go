package postgres

import (
	"context"
	"fmt"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
)

// PendingCountsByRisk — глубина очереди по уровням риска.
func (r *Repo) PendingCountsByRisk(ctx context.Context) (map[domain.RiskLevel]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT risk_level, COUNT(*) FROM actions WHERE status = 'PENDING' GROUP BY risk_level`)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending by risk failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.RiskLevel]int64)
	for rows.Next() {
		var level domain.RiskLevel
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan error: %w", err)
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

// PendingCountsByType — глубина очереди по типам действий.
func (r *Repo) PendingCountsByType(ctx context.Context) (map[domain.ActionType]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT action_type, COUNT(*) FROM actions WHERE status = 'PENDING' GROUP BY action_type`)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending by type failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ActionType]int64)
	for rows.Next() {
		var t domain.ActionType
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan error: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// TodayCountsByStatus — пропускная способность за текущие сутки.
func (r *Repo) TodayCountsByStatus(ctx context.Context) (map[domain.ActionStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM actions
		WHERE created_at >= date_trunc('day', NOW())
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("postgres: today by status failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ActionStatus]int64)
	for rows.Next() {
		var s domain.ActionStatus
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan error: %w", err)
		}
		counts[s] = n
	}
	return counts, rows.Err()
}
