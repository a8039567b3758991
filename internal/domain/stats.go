package domain

// QueueStats — операционный снимок очереди для дашборда.
// Все группировки заполнены нулями по закрытым спискам: фронтенд никогда
// не должен гадать, пропущен ключ или он равен нулю.
type QueueStats struct {
	PendingByRisk map[RiskLevel]int64  `json:"pending_by_risk"`
	PendingByType map[ActionType]int64 `json:"pending_by_type"`

	// Решения за сегодня (по дате создания действия), сгруппированные по статусу.
	TodayByStatus map[ActionStatus]int64 `json:"today_by_status"`

	PendingTotal int64 `json:"pending_total"`
}
