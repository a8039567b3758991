package risk

import (
	"context"
	"testing"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// staticRules — статический стаб RuleSource: отдает один и тот же набор
// для любого скоупа.
type staticRules []domain.AutonomyRule

func (s staticRules) ActiveRules(context.Context, domain.ActionType, string) ([]domain.AutonomyRule, error) {
	return s, nil
}

func rule(id string, field string, op domain.Operator, value string, risk domain.RiskLevel) domain.AutonomyRule {
	return domain.AutonomyRule{
		ID:            id,
		Name:          id,
		ActionType:    domain.ActionLeadOutreach,
		AgentName:     "scout",
		Condition:     domain.Condition{Field: field, Operator: op, Value: value},
		ResultingRisk: risk,
		Active:        true,
	}
}

func assess(t *testing.T, rules []domain.AutonomyRule, data map[string]any) (domain.RiskLevel, []domain.RuleMatch) {
	t.Helper()
	e := NewEvaluator(staticRules(rules), zap.NewNop())
	risk, matches, err := e.Assess(context.Background(), domain.ActionLeadOutreach, "scout", data)
	require.NoError(t, err)
	return risk, matches
}

func TestAssess_NoMatchesDefaultsToLow(t *testing.T) {
	risk, matches := assess(t,
		[]domain.AutonomyRule{rule("r1", "fleet_size", domain.OpGreaterOrEqual, "100", domain.RiskCritical)},
		map[string]any{"fleet_size": float64(12)},
	)
	assert.Equal(t, domain.RiskLow, risk)
	assert.Empty(t, matches)
}

func TestAssess_AbsentFieldDoesNotMatch(t *testing.T) {
	risk, matches := assess(t,
		[]domain.AutonomyRule{rule("r1", "fleet_size", domain.OpGreater, "0", domain.RiskHigh)},
		map[string]any{"amount": float64(10)},
	)
	assert.Equal(t, domain.RiskLow, risk)
	assert.Empty(t, matches)

	// Явный nil эквивалентен отсутствию поля
	risk, _ = assess(t,
		[]domain.AutonomyRule{rule("r1", "fleet_size", domain.OpGreater, "0", domain.RiskHigh)},
		map[string]any{"fleet_size": nil},
	)
	assert.Equal(t, domain.RiskLow, risk)
}

func TestAssess_TakesMaxAcrossAllMatches(t *testing.T) {
	rules := []domain.AutonomyRule{
		rule("mid", "fleet_size", domain.OpGreaterOrEqual, "20", domain.RiskMedium),
		rule("big", "fleet_size", domain.OpGreaterOrEqual, "100", domain.RiskCritical),
		rule("cold", "is_cold_contact", domain.OpEqual, "true", domain.RiskHigh),
	}
	risk, matches := assess(t, rules, map[string]any{
		"fleet_size":      float64(150),
		"is_cold_contact": true,
	})

	// Оценка не останавливается на первом совпадении
	assert.Equal(t, domain.RiskCritical, risk)
	require.Len(t, matches, 3)
}

func TestAssess_MalformedRuleIsSkipped(t *testing.T) {
	rules := []domain.AutonomyRule{
		// Числовое поле против нечислового значения правила — ошибка сравнения
		rule("broken", "fleet_size", domain.OpGreater, "many", domain.RiskCritical),
		rule("ok", "fleet_size", domain.OpGreaterOrEqual, "20", domain.RiskMedium),
	}
	risk, matches := assess(t, rules, map[string]any{"fleet_size": float64(50)})

	// Битое правило не роняет оценку и не попадает в matches
	assert.Equal(t, domain.RiskMedium, risk)
	require.Len(t, matches, 1)
	assert.Equal(t, "ok", matches[0].RuleID)
}

func TestAssess_OrderingOperatorOnStringIsSkipped(t *testing.T) {
	rules := []domain.AutonomyRule{
		rule("r1", "carrier_status", domain.OpGreater, "5", domain.RiskHigh),
	}
	risk, matches := assess(t, rules, map[string]any{"carrier_status": "active"})
	assert.Equal(t, domain.RiskLow, risk)
	assert.Empty(t, matches)
}

func TestMatchCondition_NumericOperators(t *testing.T) {
	tests := []struct {
		op      domain.Operator
		value   string
		field   any
		matched bool
	}{
		{domain.OpGreater, "100", float64(150), true},
		{domain.OpGreater, "100", float64(100), false},
		{domain.OpLess, "10", float64(5), true},
		{domain.OpLess, "10", float64(10), false},
		{domain.OpGreaterOrEqual, "100", float64(100), true},
		{domain.OpGreaterOrEqual, "100", float64(99.9), false},
		{domain.OpLessOrEqual, "0", float64(0), true},
		{domain.OpLessOrEqual, "0", float64(0.1), false},
		{domain.OpEqual, "42", float64(42), true},
		{domain.OpEqual, "42", float64(41), false},
		{domain.OpNotEqual, "42", float64(41), true},
		{domain.OpNotEqual, "42", float64(42), false},
		// Целые типы приводятся так же, как float64 из JSON
		{domain.OpGreaterOrEqual, "100", int(100), true},
		{domain.OpGreaterOrEqual, "100", int64(99), false},
	}
	for _, tt := range tests {
		got, err := matchCondition(domain.Condition{Field: "f", Operator: tt.op, Value: tt.value}, tt.field)
		require.NoError(t, err, "%s %v", tt.op, tt.field)
		assert.Equal(t, tt.matched, got, "%v %s %s", tt.field, tt.op, tt.value)
	}
}

func TestMatchCondition_StringOperators(t *testing.T) {
	tests := []struct {
		op      domain.Operator
		value   string
		field   any
		matched bool
	}{
		// Регистронезависимое равенство
		{domain.OpEqual, "Active", "active", true},
		{domain.OpEqual, "active", "blocked", false},
		{domain.OpNotEqual, "active", "blocked", true},
		// in: список через запятую, пробелы игнорируются
		{domain.OpIn, "blacklisted, suspended", "SUSPENDED", true},
		{domain.OpIn, "blacklisted,suspended", "active", false},
		// contains: подстрока без учета регистра
		{domain.OpContains, "Refund", "full refund requested", true},
		{domain.OpContains, "refund", "payment received", false},
		// Числовое поле с in/contains сравнивается по строковой форме
		{domain.OpIn, "1,2,3", float64(2), true},
		{domain.OpContains, "42", float64(142), true},
	}
	for _, tt := range tests {
		got, err := matchCondition(domain.Condition{Field: "f", Operator: tt.op, Value: tt.value}, tt.field)
		require.NoError(t, err)
		assert.Equal(t, tt.matched, got, "%v %s %q", tt.field, tt.op, tt.value)
	}
}

func TestMemoRuleCache_MergesWildcardScope(t *testing.T) {
	repo := staticRepo{
		rule("specific", "fleet_size", domain.OpGreaterOrEqual, "100", domain.RiskCritical),
		func() domain.AutonomyRule {
			r := rule("global", "amount", domain.OpGreaterOrEqual, "5000", domain.RiskHigh)
			r.AgentName = "*"
			r.Priority = 10
			return r
		}(),
		func() domain.AutonomyRule {
			r := rule("other-agent", "fleet_size", domain.OpGreater, "0", domain.RiskMedium)
			r.AgentName = "pricer"
			return r
		}(),
	}

	cache := NewMemoRuleCache(repo, nil, zap.NewNop())
	require.NoError(t, cache.Refresh(context.Background()))

	got, err := cache.ActiveRules(context.Background(), domain.ActionLeadOutreach, "scout")
	require.NoError(t, err)
	require.Len(t, got, 2)

	ids := []string{got[0].ID, got[1].ID}
	assert.Contains(t, ids, "specific")
	assert.Contains(t, ids, "global")
	// Приоритет соблюдается поверх слияния скоупов
	assert.Equal(t, "global", got[0].ID)
}

type staticRepo []domain.AutonomyRule

func (s staticRepo) ListActiveRules(context.Context) ([]domain.AutonomyRule, error) {
	return s, nil
}
