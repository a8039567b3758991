package domain

import (
	"fmt"
	"time"
)

// Операторы условий. Набор закрытый и типизированный — никакого eval,
// каждый вариант проверяется исчерпывающе в тестах.
type Operator string

const (
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpIn             Operator = "in"
	OpContains       Operator = "contains"
)

var knownOperators = map[Operator]bool{
	OpGreater: true, OpLess: true, OpGreaterOrEqual: true, OpLessOrEqual: true,
	OpEqual: true, OpNotEqual: true, OpIn: true, OpContains: true,
}

// Condition — условие правила: (поле снапшота, оператор, строковое значение).
// Значение хранится строкой, типизация происходит в рантайме при сравнении.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// RuleStats — счетчики обратной связи. Растут монотонно,
// инкрементируются ровно один раз на каждое разрешенное действие.
type RuleStats struct {
	TotalActions         int64 `json:"total_actions"`
	ApprovedWithoutEdits int64 `json:"approved_without_edits"`
	ApprovedWithEdits    int64 `json:"approved_with_edits"`
	Rejected             int64 `json:"rejected"`
}

// AutonomyRule — правило автономии: условие плюс присваиваемый уровень риска.
// Скоупится по типу действия и имени агента ("*" — правило для всех агентов).
type AutonomyRule struct {
	ID         string     `json:"id"`
	ActionType ActionType `json:"action_type"`
	AgentName  string     `json:"agent_name"`
	Name       string     `json:"name"`

	Condition     Condition `json:"condition"`
	ResultingRisk RiskLevel `json:"resulting_risk"`
	Priority      int       `json:"priority"`
	Active        bool      `json:"active"`

	// Level 3: действия правила могут в будущем миновать ручное ревью.
	// Флаг ставится автоматикой в одну сторону и никогда не снимается ею.
	IsLevel3Enabled bool `json:"is_level_3_enabled"`

	Stats RuleStats `json:"stats"`

	// Порог авто-промоушена в процентах (дефолт 95).
	AutoPromoteThreshold int `json:"auto_promote_threshold"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultAutoPromoteThreshold — процент безредакционных апрувов для Level 3.
const DefaultAutoPromoteThreshold = 95

// Validate проверяет правило на этапе авторинга (ValidationError из таксономии).
// Рантайм-ошибки сравнения сюда не относятся: они гасятся внутри оценщика.
func (r *AutonomyRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule name is required", ErrValidation)
	}
	if r.ActionType == "" {
		return fmt.Errorf("%w: action_type is required", ErrValidation)
	}
	if r.AgentName == "" {
		return fmt.Errorf("%w: agent_name is required (\"*\" for all agents)", ErrValidation)
	}
	if r.Condition.Field == "" {
		return fmt.Errorf("%w: condition field is required", ErrValidation)
	}
	if !knownOperators[r.Condition.Operator] {
		return fmt.Errorf("%w: unknown operator %q", ErrValidation, r.Condition.Operator)
	}
	if !r.ResultingRisk.IsValid() {
		return fmt.Errorf("%w: unknown risk level %q", ErrValidation, r.ResultingRisk)
	}
	if r.AutoPromoteThreshold < 0 || r.AutoPromoteThreshold > 100 {
		return fmt.Errorf("%w: auto_promote_threshold must be within [0,100]", ErrValidation)
	}
	return nil
}

// Match — сводка правила для записи в risk_factors действия.
func (r *AutonomyRule) Match() RuleMatch {
	return RuleMatch{RuleID: r.ID, Name: r.Name, Risk: r.ResultingRisk}
}

// PromotionEligible проверяет условия Level 3:
// минимум 100 разрешенных действий и доля безредакционных апрувов не ниже порога.
func (r *AutonomyRule) PromotionEligible() bool {
	if r.IsLevel3Enabled || !r.Active {
		return false
	}
	if r.Stats.TotalActions < 100 {
		return false
	}
	// Целочисленная форма: without_edits / total >= threshold / 100
	return r.Stats.ApprovedWithoutEdits*100 >= r.Stats.TotalActions*int64(r.AutoPromoteThreshold)
}
