package rules

import (
	"context"
	"testing"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRules(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, nil, zap.NewNop()), store
}

func validRule() *domain.AutonomyRule {
	return &domain.AutonomyRule{
		Name:          "high value invoice",
		ActionType:    domain.ActionInvoiceDispatch,
		AgentName:     "*",
		Condition:     domain.Condition{Field: "amount", Operator: domain.OpGreaterOrEqual, Value: "5000"},
		ResultingRisk: domain.RiskHigh,
		Priority:      100,
		Active:        true,
	}
}

func TestCreate_FillsDefaultsAndValidates(t *testing.T) {
	svc, store := newTestRules(t)
	ctx := context.Background()

	r := validRule()
	require.NoError(t, svc.Create(ctx, r))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, domain.DefaultAutoPromoteThreshold, r.AutoPromoteThreshold)

	stored, err := store.GetRuleByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Name, stored.Name)

	// Битое условие отбивается на авторинге
	bad := validRule()
	bad.Condition.Operator = "between"
	err = svc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdate_PreservesCounters(t *testing.T) {
	svc, store := newTestRules(t)
	ctx := context.Background()

	r := validRule()
	require.NoError(t, svc.Create(ctx, r))

	// Счетчики пишет только транзакция решения; админский Update их не трогает
	raw, err := store.GetRuleByID(ctx, r.ID)
	require.NoError(t, err)
	raw.Stats = domain.RuleStats{TotalActions: 10, ApprovedWithoutEdits: 9}
	require.NoError(t, store.CreateRule(ctx, raw)) // прямое обновление мимо сервиса

	upd := *r
	upd.Priority = 200
	upd.Stats = domain.RuleStats{} // клиент прислал нули
	require.NoError(t, svc.Update(ctx, &upd))

	got, err := store.GetRuleByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, got.Priority)
	assert.Equal(t, int64(10), got.Stats.TotalActions)

	missing := validRule()
	missing.ID = "ghost"
	err = svc.Update(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestDeactivate_IsSoft(t *testing.T) {
	svc, store := newTestRules(t)
	ctx := context.Background()

	r := validRule()
	require.NoError(t, svc.Create(ctx, r))
	require.NoError(t, svc.Deactivate(ctx, r.ID))

	got, err := store.GetRuleByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	active, err := store.ListActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, svc.Deactivate(ctx, "ghost"), domain.ErrRuleNotFound)
}

func TestSeed_IsIdempotent(t *testing.T) {
	svc, _ := newTestRules(t)
	ctx := context.Background()

	first, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(DefaultRules())), first)

	second, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestDefaultRules_AllValid(t *testing.T) {
	for _, r := range DefaultRules() {
		rr := r
		assert.NoError(t, rr.Validate(), "rule %q", r.Name)
	}
}
