package stats

import (
	"context"
	"testing"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/metrics"
	"github.com/freightops-pro/fopsbackend-sub006/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetQueueStats_EmptyQueueIsZeroFilled(t *testing.T) {
	r := NewReporter(memory.NewStore(), metrics.NewMetrics(nil))

	got, err := r.GetQueueStats(context.Background())
	require.NoError(t, err)

	assert.Zero(t, got.PendingTotal)
	require.Len(t, got.PendingByRisk, len(domain.AllRiskLevels))
	require.Len(t, got.PendingByType, len(domain.AllActionTypes))
	require.Len(t, got.TodayByStatus, len(domain.AllActionStatuses))

	for level, n := range got.PendingByRisk {
		assert.Zero(t, n, "risk %s", level)
	}
	for typ, n := range got.PendingByType {
		assert.Zero(t, n, "type %s", typ)
	}
	for status, n := range got.TodayByStatus {
		assert.Zero(t, n, "status %s", status)
	}
}

func TestGetQueueStats_CountsPendingAndToday(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Now()

	seed := func(id string, typ domain.ActionType, risk domain.RiskLevel, status domain.ActionStatus) {
		require.NoError(t, store.CreateAction(ctx, &domain.Action{
			ID: id, ActionType: typ, AgentName: "scout",
			RiskLevel: risk, Status: status, CreatedAt: now,
		}))
	}

	seed("a1", domain.ActionLeadOutreach, domain.RiskCritical, domain.StatusPending)
	seed("a2", domain.ActionLeadOutreach, domain.RiskMedium, domain.StatusPending)
	seed("a3", domain.ActionRateDecision, domain.RiskHigh, domain.StatusPending)
	seed("a4", domain.ActionInvoiceDispatch, domain.RiskLow, domain.StatusAutoExecuted)
	seed("a5", domain.ActionLeadOutreach, domain.RiskMedium, domain.StatusRejected)

	r := NewReporter(store, metrics.NewMetrics(nil))
	got, err := r.GetQueueStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), got.PendingTotal)
	assert.Equal(t, int64(1), got.PendingByRisk[domain.RiskCritical])
	assert.Equal(t, int64(1), got.PendingByRisk[domain.RiskHigh])
	assert.Equal(t, int64(1), got.PendingByRisk[domain.RiskMedium])
	assert.Zero(t, got.PendingByRisk[domain.RiskLow])

	assert.Equal(t, int64(2), got.PendingByType[domain.ActionLeadOutreach])
	assert.Equal(t, int64(1), got.PendingByType[domain.ActionRateDecision])
	assert.Zero(t, got.PendingByType[domain.ActionCarrierFollowup])

	assert.Equal(t, int64(3), got.TodayByStatus[domain.StatusPending])
	assert.Equal(t, int64(1), got.TodayByStatus[domain.StatusAutoExecuted])
	assert.Equal(t, int64(1), got.TodayByStatus[domain.StatusRejected])
	assert.Zero(t, got.TodayByStatus[domain.StatusExpired])
}
