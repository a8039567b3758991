package dispatch

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"go.uber.org/zap"
)

// MockExecutor — имитация исполнителя для локальной разработки,
// когда dispatch.executor_url не задан. Логирует и вносит случайную задержку.
type MockExecutor struct {
	logger *zap.Logger
}

func NewMockExecutor(logger *zap.Logger) *MockExecutor {
	return &MockExecutor{logger: logger.Named("mock-executor")}
}

func (m *MockExecutor) Execute(ctx context.Context, action *domain.Action) error {
	// Имитируем задержку 50-300мс
	latency := time.Duration(50+rand.IntN(250)) * time.Millisecond

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Info("mock execution completed",
		zap.String("action_id", action.ID),
		zap.String("action_type", string(action.ActionType)),
		zap.String("agent", action.AgentName))
	return nil
}
