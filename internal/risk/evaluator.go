package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"go.uber.org/zap"
)

// RuleSource описывает требования оценщика к поставщику правил.
// В проде это MemoRuleCache (RAM), в тестах — статический стаб.
type RuleSource interface {
	ActiveRules(ctx context.Context, actionType domain.ActionType, agentName string) ([]domain.AutonomyRule, error)
}

// Evaluator — чистая функция над снапшотом правил и entity_data.
// Никаких сайд-эффектов: ни записи, ни мутации входных данных.
type Evaluator struct {
	rules  RuleSource
	logger *zap.Logger
}

func NewEvaluator(rules RuleSource, logger *zap.Logger) *Evaluator {
	return &Evaluator{rules: rules, logger: logger.Named("risk-evaluator")}
}

// Assess сопоставляет снапшот entity_data со всеми активными правилами скоупа.
// Оценка НЕ останавливается на первом совпадении: несколько правил могут
// независимо поднимать строгость, итог — максимальная из сработавших.
// Отсутствие совпадений дает LOW (осознанный fail-open, см. DESIGN.md).
func (e *Evaluator) Assess(ctx context.Context, actionType domain.ActionType, agentName string, entityData map[string]any) (domain.RiskLevel, []domain.RuleMatch, error) {
	rules, err := e.rules.ActiveRules(ctx, actionType, agentName)
	if err != nil {
		return "", nil, fmt.Errorf("risk: failed to load rules: %w", err)
	}

	risk := domain.RiskLow
	matches := make([]domain.RuleMatch, 0)

	for i := range rules {
		r := &rules[i]

		raw, ok := entityData[r.Condition.Field]
		if !ok || raw == nil {
			// Нет поля в снапшоте — правило не срабатывает
			continue
		}

		matched, err := matchCondition(r.Condition, raw)
		if err != nil {
			// TransientEvaluationError: битое правило логируем и пропускаем,
			// оно никогда не роняет оценку целиком
			e.logger.Warn("rule evaluation skipped",
				zap.String("rule_id", r.ID),
				zap.String("rule_name", r.Name),
				zap.String("field", r.Condition.Field),
				zap.Error(err))
			continue
		}
		if !matched {
			continue
		}

		matches = append(matches, r.Match())
		risk = domain.MaxRisk(risk, r.ResultingRisk)
	}

	return risk, matches, nil
}

// matchCondition выполняет одно типизированное сравнение.
// Если значение поля числовое — обе стороны приводятся к числу; иначе
// сравнение строковое без учета регистра.
func matchCondition(c domain.Condition, raw any) (bool, error) {
	if fv, numeric := toFloat(raw); numeric {
		switch c.Operator {
		case domain.OpGreater, domain.OpLess, domain.OpGreaterOrEqual,
			domain.OpLessOrEqual, domain.OpEqual, domain.OpNotEqual:
			tv, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
			if err != nil {
				return false, fmt.Errorf("non-numeric rule value %q for numeric field", c.Value)
			}
			return compareNumeric(c.Operator, fv, tv), nil
		}
		// in/contains для числового поля работают по строковой форме
	}

	sv := stringify(raw)
	switch c.Operator {
	case domain.OpEqual:
		return strings.EqualFold(sv, strings.TrimSpace(c.Value)), nil
	case domain.OpNotEqual:
		return !strings.EqualFold(sv, strings.TrimSpace(c.Value)), nil
	case domain.OpIn:
		for _, part := range strings.Split(c.Value, ",") {
			if strings.EqualFold(sv, strings.TrimSpace(part)) {
				return true, nil
			}
		}
		return false, nil
	case domain.OpContains:
		return strings.Contains(strings.ToLower(sv), strings.ToLower(strings.TrimSpace(c.Value))), nil
	case domain.OpGreater, domain.OpLess, domain.OpGreaterOrEqual, domain.OpLessOrEqual:
		return false, fmt.Errorf("ordering operator %q requires a numeric field value, got %T", c.Operator, raw)
	default:
		return false, fmt.Errorf("unknown operator %q", c.Operator)
	}
}

func compareNumeric(op domain.Operator, a, b float64) bool {
	switch op {
	case domain.OpGreater:
		return a > b
	case domain.OpLess:
		return a < b
	case domain.OpGreaterOrEqual:
		return a >= b
	case domain.OpLessOrEqual:
		return a <= b
	case domain.OpEqual:
		return a == b
	case domain.OpNotEqual:
		return a != b
	}
	return false
}

// toFloat распознает числовые типы снапшота. JSON дает float64,
// но репозитории и тесты могут подсовывать и целые типы.
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
