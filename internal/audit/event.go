package audit

import "time"

// Категории событий жизненного цикла действия.
const (
	EventCreated      = "CREATED"
	EventAutoExecuted = "AUTO_EXECUTED"
	EventApproved     = "APPROVED"
	EventEdited       = "APPROVED_WITH_EDITS"
	EventRejected     = "REJECTED"
	EventExpired      = "EXPIRED"
	EventPromoted     = "RULE_PROMOTED"
)

// Event — одна запись журнала решений. Действия хранятся вечно для аудита;
// журнал — операционная хроника рядом с ними (кто, что, когда, с каким риском).
type Event struct {
	ID         string `json:"id"`       // UUID события
	ActionID   string `json:"action_id"`
	AgentName  string `json:"agent_name"`
	ActionType string `json:"action_type"`
	RiskLevel  string `json:"risk_level"`

	// Категория события и кто его инициировал ("system", id ревьюера, "sweeper")
	Kind  string `json:"kind"`
	Actor string `json:"actor"`

	// Свободная форма: причина отказа, similarity score, имя правила и т.п.
	Note string `json:"note"`

	Timestamp time.Time `json:"timestamp"`
}
