package domain

import (
	"time"
)

// Статусы State Machine
type ActionStatus string

const (
	StatusPending           ActionStatus = "PENDING"
	StatusApproved          ActionStatus = "APPROVED"
	StatusApprovedWithEdits ActionStatus = "APPROVED_WITH_EDITS"
	StatusRejected          ActionStatus = "REJECTED"
	StatusAutoExecuted      ActionStatus = "AUTO_EXECUTED"
	StatusExpired           ActionStatus = "EXPIRED"
)

// AllActionStatuses — закрытый список статусов для zero-fill статистики.
var AllActionStatuses = []ActionStatus{
	StatusPending, StatusApproved, StatusApprovedWithEdits,
	StatusRejected, StatusAutoExecuted, StatusExpired,
}

// transitions — центральная таблица переходов конечного автомата.
// Ранее проверки были размазаны по call-site'ам; теперь легальность перехода
// решается только здесь. AUTO_EXECUTED достигается при создании, минуя PENDING,
// поэтому входящих переходов у него нет. Из терминальных статусов выхода нет.
var transitions = map[ActionStatus]map[ActionStatus]bool{
	StatusPending: {
		StatusApproved:          true,
		StatusApprovedWithEdits: true,
		StatusRejected:          true,
		StatusExpired:           true,
	},
}

// CanTransitionTo проверяет правила конечного автомата.
func (s ActionStatus) CanTransitionTo(next ActionStatus) error {
	if transitions[s][next] {
		return nil
	}
	if s != StatusPending {
		return ErrAlreadyResolved
	}
	return ErrInvalidTransition
}

// IsTerminal — терминальный статус больше не мутируется никем.
func (s ActionStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Типы действий, которые агенты предлагают на согласование.
// Закрытый список нужен статистике (zero-fill) и сидированию правил.
type ActionType string

const (
	ActionLeadOutreach      ActionType = "LEAD_OUTREACH"
	ActionLeadQualification ActionType = "LEAD_QUALIFICATION"
	ActionRateDecision      ActionType = "RATE_DECISION"
	ActionInvoiceDispatch   ActionType = "INVOICE_DISPATCH"
	ActionCarrierFollowup   ActionType = "CARRIER_FOLLOWUP"
)

var AllActionTypes = []ActionType{
	ActionLeadOutreach, ActionLeadQualification, ActionRateDecision,
	ActionInvoiceDispatch, ActionCarrierFollowup,
}

// EntityRef — ссылка на бизнес-сущность (лид, груз, инвойс), которой касается действие.
// Сами сущности живут в других подсистемах; мы храним только указатель и имя для UI.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RuleMatch — сводка сработавшего правила, фиксируется в действии как risk_factor.
// По этим ID Review Service потом обновляет счетчики правил.
type RuleMatch struct {
	RuleID string    `json:"rule_id"`
	Name   string    `json:"name"`
	Risk   RiskLevel `json:"risk"`
}

// Action — одно предложенное агентом действие, записанное для гейтинга.
type Action struct {
	ID         string       `json:"id"`
	ActionType ActionType   `json:"action_type"`
	RiskLevel  RiskLevel    `json:"risk_level"`
	Status     ActionStatus `json:"status"`
	AgentName  string       `json:"agent_name"`

	Title        string `json:"title"`
	Description  string `json:"description"`
	DraftContent string `json:"draft_content"`
	Reasoning    string `json:"reasoning"`

	Entity      EntityRef      `json:"entity"`
	RiskFactors []RuleMatch    `json:"risk_factors"`
	EntityData  map[string]any `json:"entity_data"`

	Assignee   string  `json:"assignee"`
	ReviewedBy *string `json:"reviewed_by,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	HumanEdits          *string `json:"human_edits,omitempty"`
	WasEdited           bool    `json:"was_edited"`
	EditSimilarityScore *int    `json:"edit_similarity_score,omitempty"`
	RejectionReason     *string `json:"rejection_reason,omitempty"`
}

// ActionDraft — входные данные от агента для создания действия.
// Snapshot entity_data — единственный вход риск-оценки; он должен оставаться
// репрезентативным, пока действие висит в очереди.
type ActionDraft struct {
	ActionType   ActionType     `json:"action_type"`
	AgentName    string         `json:"agent_name"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	DraftContent string         `json:"draft_content"`
	Reasoning    string         `json:"reasoning"`
	Entity       EntityRef      `json:"entity"`
	EntityData   map[string]any `json:"entity_data"`
	Assignee     string         `json:"assignee"`

	// 0 означает дефолт (24 часа)
	ExpiresInHours int `json:"expires_in_hours"`
}

// PendingFilter — параметры выборки очереди ревью.
type PendingFilter struct {
	Assignee   string
	ActionType ActionType
	Limit      int
}

// Decision — решение ревьюера, применяемое атомарно вместе со счетчиками правил.
type Decision struct {
	ActionID   string
	ReviewerID string
	Status     ActionStatus // APPROVED / APPROVED_WITH_EDITS / REJECTED

	HumanEdits          *string
	EditSimilarityScore *int
	RejectionReason     *string

	DecidedAt time.Time
}

// RulePromotion — факт авто-промоушена правила до Level 3, для лога и сигналов.
type RulePromotion struct {
	RuleID               string  `json:"rule_id"`
	Name                 string  `json:"name"`
	TotalActions         int64   `json:"total_actions"`
	ApprovedWithoutEdits int64   `json:"approved_without_edits"`
	ApprovalRate         float64 `json:"approval_rate"`
}
