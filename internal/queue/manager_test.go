package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/audit"
	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/metrics"
	"github.com/freightops-pro/fopsbackend-sub006/internal/repository/memory"
	"github.com/freightops-pro/fopsbackend-sub006/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingExecutor фиксирует доставленные действия; опционально падает.
type recordingExecutor struct {
	mu       sync.Mutex
	executed []string
	fail     error
}

func (e *recordingExecutor) Execute(_ context.Context, a *domain.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return e.fail
	}
	e.executed = append(e.executed, a.ID)
	return nil
}

func (e *recordingExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.executed...)
}

func outreachRules(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	rules := []domain.AutonomyRule{
		{
			ID: "mid", Name: "mid-size fleet outreach",
			ActionType: domain.ActionLeadOutreach, AgentName: "scout",
			Condition:     domain.Condition{Field: "fleet_size", Operator: domain.OpGreaterOrEqual, Value: "20"},
			ResultingRisk: domain.RiskMedium, Priority: 50, Active: true,
			AutoPromoteThreshold: domain.DefaultAutoPromoteThreshold,
		},
		{
			ID: "big", Name: "enterprise fleet outreach",
			ActionType: domain.ActionLeadOutreach, AgentName: "scout",
			Condition:     domain.Condition{Field: "fleet_size", Operator: domain.OpGreaterOrEqual, Value: "100"},
			ResultingRisk: domain.RiskCritical, Priority: 100, Active: true,
			AutoPromoteThreshold: domain.DefaultAutoPromoteThreshold,
		},
	}
	for i := range rules {
		require.NoError(t, store.CreateRule(ctx, &rules[i]))
	}
}

func newTestManager(t *testing.T) (*Manager, *memory.Store, *recordingExecutor) {
	t.Helper()
	store := memory.NewStore()
	outreachRules(t, store)
	exec := &recordingExecutor{}
	evaluator := risk.NewEvaluator(store, zap.NewNop())
	m := NewManager(store, evaluator, exec, audit.NopRecorder{}, metrics.NewMetrics(nil), zap.NewNop(), 24*time.Hour)
	return m, store, exec
}

func draft(fleetSize float64) domain.ActionDraft {
	return domain.ActionDraft{
		ActionType:   domain.ActionLeadOutreach,
		AgentName:    "scout",
		Title:        "Outreach to Summit Logistics",
		DraftContent: "Hi Alex, following up on the 12 reefer loads out of Laredo.",
		Entity:       domain.EntityRef{Type: "lead", ID: "lead-42", Name: "Summit Logistics"},
		EntityData:   map[string]any{"fleet_size": fleetSize},
	}
}

func TestCreateAction_LowRiskAutoExecutes(t *testing.T) {
	m, store, exec := newTestManager(t)

	a, err := m.CreateAction(context.Background(), draft(12))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAutoExecuted, a.Status)
	assert.Equal(t, domain.RiskLow, a.RiskLevel)
	assert.Empty(t, a.RiskFactors)
	require.NotNil(t, a.ExecutedAt)
	assert.Nil(t, a.ExpiresAt)
	assert.Equal(t, []string{a.ID}, exec.calls())

	stored, err := store.GetAction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAutoExecuted, stored.Status)
}

func TestCreateAction_ElevatedRiskGoesPending(t *testing.T) {
	m, _, exec := newTestManager(t)

	a, err := m.CreateAction(context.Background(), draft(150))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, a.Status)
	// Сработали оба правила, итог — максимум
	assert.Equal(t, domain.RiskCritical, a.RiskLevel)
	assert.Len(t, a.RiskFactors, 2)
	assert.Nil(t, a.ExecutedAt)
	require.NotNil(t, a.ExpiresAt)
	assert.Empty(t, exec.calls(), "pending action must not reach the executor")
}

func TestCreateAction_ExpiryWindow(t *testing.T) {
	m, _, _ := newTestManager(t)
	now := time.Now()
	m.now = func() time.Time { return now }

	d := draft(150)
	a, err := m.CreateAction(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), *a.ExpiresAt, "default window is 24h")

	d.ExpiresInHours = 4
	a, err = m.CreateAction(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, now.Add(4*time.Hour), *a.ExpiresAt)
}

func TestCreateAction_DispatchFailureKeepsDecision(t *testing.T) {
	m, store, exec := newTestManager(t)
	exec.fail = context.DeadlineExceeded

	a, err := m.CreateAction(context.Background(), draft(5))
	require.NoError(t, err, "delivery failure must not fail the create call")

	stored, err := store.GetAction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAutoExecuted, stored.Status)
}

func TestCreateAction_ValidatesDraft(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	d := draft(10)
	d.ActionType = ""
	_, err := m.CreateAction(ctx, d)
	assert.ErrorIs(t, err, domain.ErrValidation)

	d = draft(10)
	d.AgentName = ""
	_, err = m.CreateAction(ctx, d)
	assert.ErrorIs(t, err, domain.ErrValidation)

	d = draft(10)
	d.Title = ""
	_, err = m.CreateAction(ctx, d)
	assert.ErrorIs(t, err, domain.ErrValidation)

	d = draft(10)
	d.ExpiresInHours = -1
	_, err = m.CreateAction(ctx, d)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetPending_WorstRiskFirstThenFIFO(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	now := time.Now()
	seed := func(id string, risk domain.RiskLevel, age time.Duration) {
		require.NoError(t, store.CreateAction(ctx, &domain.Action{
			ID: id, ActionType: domain.ActionLeadOutreach, AgentName: "scout",
			Title: id, RiskLevel: risk, Status: domain.StatusPending,
			CreatedAt: now.Add(-age),
		}))
	}

	// MEDIUM свежее, CRITICAL старше: риск бьет возраст
	seed("medium-fresh", domain.RiskMedium, time.Minute)
	seed("critical-old", domain.RiskCritical, 2*time.Hour)
	seed("critical-older", domain.RiskCritical, 3*time.Hour)
	seed("high-mid", domain.RiskHigh, 30*time.Minute)

	got, err := m.GetPending(ctx, domain.PendingFilter{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"critical-older", "critical-old", "high-mid", "medium-fresh"}, ids)
}

func TestGetPending_Filters(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAction(ctx, &domain.Action{
		ID: "a1", ActionType: domain.ActionLeadOutreach, AgentName: "scout",
		RiskLevel: domain.RiskMedium, Status: domain.StatusPending,
		Assignee: "kate", CreatedAt: time.Now(),
	}))
	require.NoError(t, store.CreateAction(ctx, &domain.Action{
		ID: "a2", ActionType: domain.ActionRateDecision, AgentName: "pricer",
		RiskLevel: domain.RiskHigh, Status: domain.StatusPending,
		Assignee: "mike", CreatedAt: time.Now(),
	}))

	got, err := m.GetPending(ctx, domain.PendingFilter{Assignee: "kate"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)

	got, err = m.GetPending(ctx, domain.PendingFilter{ActionType: domain.ActionRateDecision})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].ID)
}

func TestExpireDue(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	require.NoError(t, store.CreateAction(ctx, &domain.Action{
		ID: "stale", ActionType: domain.ActionLeadOutreach, AgentName: "scout",
		RiskLevel: domain.RiskMedium, Status: domain.StatusPending,
		CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: &past,
	}))
	require.NoError(t, store.CreateAction(ctx, &domain.Action{
		ID: "fresh", ActionType: domain.ActionLeadOutreach, AgentName: "scout",
		RiskLevel: domain.RiskMedium, Status: domain.StatusPending,
		CreatedAt: now, ExpiresAt: &future,
	}))

	n, err := m.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale, err := store.GetAction(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stale.Status)

	fresh, err := store.GetAction(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, fresh.Status)

	// Повторный проход ничего не находит
	n, err = m.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetAction_RequiresID(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.GetAction(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
