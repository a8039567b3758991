package review

import (
	"context"
	"testing"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/audit"
	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/metrics"
	"github.com/freightops-pro/fopsbackend-sub006/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, nil, audit.NopRecorder{}, metrics.NewMetrics(nil), zap.NewNop())
	return svc, store
}

func seedPending(t *testing.T, store *memory.Store, id string, factors ...domain.RuleMatch) *domain.Action {
	t.Helper()
	a := &domain.Action{
		ID:           id,
		ActionType:   domain.ActionLeadOutreach,
		RiskLevel:    domain.RiskHigh,
		Status:       domain.StatusPending,
		AgentName:    "scout",
		Title:        "Outreach to Summit Logistics",
		DraftContent: "Hi Alex, following up on the 12 reefer loads out of Laredo.",
		RiskFactors:  factors,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.CreateAction(context.Background(), a))
	return a
}

func TestApprove_WithoutEdits(t *testing.T) {
	svc, store := newTestService(t)
	seedPending(t, store, "a1")

	got, err := svc.Approve(context.Background(), "a1", "reviewer-7", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, got.Status)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, "reviewer-7", *got.ReviewedBy)
	assert.NotNil(t, got.ReviewedAt)
	assert.NotNil(t, got.ExecutedAt)
	assert.False(t, got.WasEdited)
	assert.Nil(t, got.EditSimilarityScore)
}

func TestApprove_WithEdits(t *testing.T) {
	svc, store := newTestService(t)
	a := seedPending(t, store, "a1")

	edits := a.DraftContent + " Let me know if Tuesday works."
	got, err := svc.Approve(context.Background(), "a1", "reviewer-7", &edits)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApprovedWithEdits, got.Status)
	assert.True(t, got.WasEdited)
	require.NotNil(t, got.HumanEdits)
	assert.Equal(t, edits, *got.HumanEdits)
	require.NotNil(t, got.EditSimilarityScore)
	assert.Greater(t, *got.EditSimilarityScore, 50)
	assert.LessOrEqual(t, *got.EditSimilarityScore, 100)
}

func TestReject_RequiresReason(t *testing.T) {
	svc, store := newTestService(t)
	seedPending(t, store, "a1")

	_, err := svc.Reject(context.Background(), "a1", "reviewer-7", "   ")
	require.ErrorIs(t, err, domain.ErrValidation)

	// Действие не тронуто
	a, err := store.GetAction(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, a.Status)
}

func TestReject_RecordsReason(t *testing.T) {
	svc, store := newTestService(t)
	seedPending(t, store, "a1")

	got, err := svc.Reject(context.Background(), "a1", "reviewer-7", "wrong contact person")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "wrong contact person", *got.RejectionReason)
	assert.Nil(t, got.ExecutedAt, "rejected action must never get executed_at")
}

func TestDecision_OnResolvedActionFailsWithoutMutation(t *testing.T) {
	svc, store := newTestService(t)
	seedPending(t, store, "a1")

	_, err := svc.Approve(context.Background(), "a1", "first", nil)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), "a1", "second", "changed my mind")
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)

	a, err := store.GetAction(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, a.Status)
	assert.Equal(t, "first", *a.ReviewedBy)
	assert.Nil(t, a.RejectionReason)
}

func TestDecision_UnknownActionFails(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Approve(context.Background(), "ghost", "reviewer-7", nil)
	require.ErrorIs(t, err, domain.ErrActionNotFound)
}

func TestDecision_ValidatesIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Approve(context.Background(), "", "reviewer-7", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Approve(context.Background(), "a1", "", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDecision_IncrementsRuleCountersOncePerRule(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	r := &domain.AutonomyRule{
		ID: "rule-1", Name: "mid-size fleet outreach",
		ActionType: domain.ActionLeadOutreach, AgentName: "scout",
		Condition:            domain.Condition{Field: "fleet_size", Operator: domain.OpGreaterOrEqual, Value: "20"},
		ResultingRisk:        domain.RiskMedium,
		Active:               true,
		AutoPromoteThreshold: domain.DefaultAutoPromoteThreshold,
	}
	require.NoError(t, store.CreateRule(ctx, r))

	seedPending(t, store, "a1", r.Match())
	seedPending(t, store, "a2", r.Match())
	seedPending(t, store, "a3", r.Match())

	_, err := svc.Approve(ctx, "a1", "rev", nil)
	require.NoError(t, err)
	edits := "edited"
	_, err = svc.Approve(ctx, "a2", "rev", &edits)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, "a3", "rev", "off brand")
	require.NoError(t, err)

	got, err := store.GetRuleByID(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Stats.TotalActions)
	assert.Equal(t, int64(1), got.Stats.ApprovedWithoutEdits)
	assert.Equal(t, int64(1), got.Stats.ApprovedWithEdits)
	assert.Equal(t, int64(1), got.Stats.Rejected)
}

func TestDecision_PromotesRuleAtThreshold(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// 99 разрешенных действий, 95 без правок: следующий чистый апрув
	// дает 96/100 >= 95% и объем >= 100
	r := &domain.AutonomyRule{
		ID: "rule-1", Name: "mid-size fleet outreach",
		ActionType: domain.ActionLeadOutreach, AgentName: "scout",
		Condition:            domain.Condition{Field: "fleet_size", Operator: domain.OpGreaterOrEqual, Value: "20"},
		ResultingRisk:        domain.RiskMedium,
		Active:               true,
		AutoPromoteThreshold: domain.DefaultAutoPromoteThreshold,
		Stats: domain.RuleStats{
			TotalActions:         99,
			ApprovedWithoutEdits: 95,
			ApprovedWithEdits:    3,
			Rejected:             1,
		},
	}
	require.NoError(t, store.CreateRule(ctx, r))
	seedPending(t, store, "a1", r.Match())

	_, err := svc.Approve(ctx, "a1", "rev", nil)
	require.NoError(t, err)

	got, err := store.GetRuleByID(ctx, "rule-1")
	require.NoError(t, err)
	assert.True(t, got.IsLevel3Enabled, "rule must be promoted at 96/100")
	assert.Equal(t, int64(100), got.Stats.TotalActions)
}

func TestDecision_DoesNotPromoteBelowRate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// 130 чистых из 150 — объем есть, но 86.7% ниже порога 95%
	r := &domain.AutonomyRule{
		ID: "rule-1", Name: "mid-size fleet outreach",
		ActionType: domain.ActionLeadOutreach, AgentName: "scout",
		Condition:            domain.Condition{Field: "fleet_size", Operator: domain.OpGreaterOrEqual, Value: "20"},
		ResultingRisk:        domain.RiskMedium,
		Active:               true,
		AutoPromoteThreshold: domain.DefaultAutoPromoteThreshold,
		Stats: domain.RuleStats{
			TotalActions:         149,
			ApprovedWithoutEdits: 129,
			ApprovedWithEdits:    15,
			Rejected:             5,
		},
	}
	require.NoError(t, store.CreateRule(ctx, r))
	seedPending(t, store, "a1", r.Match())

	_, err := svc.Approve(ctx, "a1", "rev", nil)
	require.NoError(t, err)

	got, err := store.GetRuleByID(ctx, "rule-1")
	require.NoError(t, err)
	assert.False(t, got.IsLevel3Enabled)
}
