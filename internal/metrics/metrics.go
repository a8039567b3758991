package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: сколько действий создано и каким путем они пошли
	ActionsCreated *prometheus.CounterVec

	// Решения ревьюеров по финальному статусу
	DecisionsTotal *prometheus.CounterVec

	// Feedback loop: авто-промоушены правил до Level 3
	PromotionsTotal prometheus.Counter

	// Saturation: текущая глубина очереди по уровням риска
	QueueDepth *prometheus.GaugeVec

	// Работа свипера
	ExpiredTotal prometheus.Counter

	// Отказы доставки AUTO_EXECUTED действий исполнителю
	DispatchErrors prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — если рег не передан, используем локальный,
	// который никуда не подключен (удобно в тестах)
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ActionsCreated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "autonomy_actions_created_total",
			Help: "Total number of proposed actions by type, risk and outcome.",
		}, []string{"action_type", "risk_level", "status"}),

		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "autonomy_decisions_total",
			Help: "Total number of reviewer decisions by final status.",
		}, []string{"status"}),

		PromotionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "autonomy_rule_promotions_total",
			Help: "Total number of rules auto-promoted to level 3.",
		}),

		QueueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "autonomy_queue_depth",
			Help: "Current number of pending actions by risk level.",
		}, []string{"risk_level"}),

		ExpiredTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "autonomy_actions_expired_total",
			Help: "Total number of pending actions expired by the sweep.",
		}),

		DispatchErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "autonomy_dispatch_errors_total",
			Help: "Total number of failed deliveries to the executor.",
		}),
	}
}
