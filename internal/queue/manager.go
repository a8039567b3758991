package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/audit"
	"github.com/freightops-pro/fopsbackend-sub006/internal/dispatch"
	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store описывает требования менеджера очереди к хранилищу действий
type Store interface {
	CreateAction(ctx context.Context, a *domain.Action) error
	GetAction(ctx context.Context, id string) (*domain.Action, error)
	FindPending(ctx context.Context, f domain.PendingFilter) ([]*domain.Action, error)
	ExpireDue(ctx context.Context, now time.Time) ([]domain.Action, error)
}

// RiskAssessor — контракт оценщика риска (internal/risk.Evaluator)
type RiskAssessor interface {
	Assess(ctx context.Context, actionType domain.ActionType, agentName string, entityData map[string]any) (domain.RiskLevel, []domain.RuleMatch, error)
}

// Manager гейтит предложенные агентами действия: LOW уходит в авто-исполнение,
// все остальное встает в очередь ревью с дедлайном.
type Manager struct {
	store   Store
	risk    RiskAssessor
	exec    dispatch.Executor
	trail   audit.Recorder
	metrics *metrics.Metrics
	logger  *zap.Logger

	defaultExpiry time.Duration
	now           func() time.Time // подменяется в тестах
}

func NewManager(store Store, risk RiskAssessor, exec dispatch.Executor, trail audit.Recorder, m *metrics.Metrics, logger *zap.Logger, defaultExpiry time.Duration) *Manager {
	if defaultExpiry <= 0 {
		defaultExpiry = 24 * time.Hour
	}
	return &Manager{
		store:         store,
		risk:          risk,
		exec:          exec,
		trail:         trail,
		metrics:       m,
		logger:        logger.Named("queue-manager"),
		defaultExpiry: defaultExpiry,
		now:           time.Now,
	}
}

// CreateAction оценивает риск и создает действие. Менеджер только гейтит
// решение: сам бизнес-эффект AUTO_EXECUTED действий выполняет исполнитель,
// поставленный вызывающей стороной.
func (m *Manager) CreateAction(ctx context.Context, draft domain.ActionDraft) (*domain.Action, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	risk, matched, err := m.risk.Assess(ctx, draft.ActionType, draft.AgentName, draft.EntityData)
	if err != nil {
		return nil, fmt.Errorf("queue: risk assessment failed: %w", err)
	}

	now := m.now()
	action := &domain.Action{
		ID:           uuid.New().String(),
		ActionType:   draft.ActionType,
		RiskLevel:    risk,
		AgentName:    draft.AgentName,
		Title:        draft.Title,
		Description:  draft.Description,
		DraftContent: draft.DraftContent,
		Reasoning:    draft.Reasoning,
		Entity:       draft.Entity,
		RiskFactors:  matched,
		EntityData:   draft.EntityData,
		Assignee:     draft.Assignee,
		CreatedAt:    now,
	}

	if risk == domain.RiskLow {
		// Низкий риск — исполняем без человека. executed_at фиксируется
		// в момент создания и никогда позже.
		action.Status = domain.StatusAutoExecuted
		execAt := now
		action.ExecutedAt = &execAt
	} else {
		action.Status = domain.StatusPending
		expiry := m.defaultExpiry
		if draft.ExpiresInHours > 0 {
			expiry = time.Duration(draft.ExpiresInHours) * time.Hour
		}
		expiresAt := now.Add(expiry)
		action.ExpiresAt = &expiresAt
	}

	if err := m.store.CreateAction(ctx, action); err != nil {
		return nil, fmt.Errorf("queue: failed to persist action: %w", err)
	}

	m.metrics.ActionsCreated.WithLabelValues(
		string(action.ActionType), string(action.RiskLevel), string(action.Status)).Inc()
	m.trail.Record(audit.Event{
		ID:         uuid.New().String(),
		ActionID:   action.ID,
		AgentName:  action.AgentName,
		ActionType: string(action.ActionType),
		RiskLevel:  string(action.RiskLevel),
		Kind:       audit.EventCreated,
		Actor:      action.AgentName,
		Timestamp:  now,
	})

	if action.Status == domain.StatusAutoExecuted {
		m.dispatchAutoExecuted(ctx, action)
	} else {
		m.logger.Info("action queued for review",
			zap.String("action_id", action.ID),
			zap.String("risk", string(risk)),
			zap.Int("matched_rules", len(matched)))
	}

	return action, nil
}

// dispatchAutoExecuted доставляет действие исполнителю. Отказ доставки не
// откатывает решение: статус уже зафиксирован, ретраи и алертинг — дело
// обвязки исполнителя и метрик.
func (m *Manager) dispatchAutoExecuted(ctx context.Context, action *domain.Action) {
	if err := m.exec.Execute(ctx, action); err != nil {
		m.metrics.DispatchErrors.Inc()
		m.logger.Error("auto-executed action delivery failed",
			zap.String("action_id", action.ID),
			zap.Error(err))
		return
	}

	m.trail.Record(audit.Event{
		ID:         uuid.New().String(),
		ActionID:   action.ID,
		AgentName:  action.AgentName,
		ActionType: string(action.ActionType),
		RiskLevel:  string(action.RiskLevel),
		Kind:       audit.EventAutoExecuted,
		Actor:      "system",
		Timestamp:  m.now(),
	})
	m.logger.Info("action auto-executed",
		zap.String("action_id", action.ID),
		zap.String("action_type", string(action.ActionType)))
}

// GetPending возвращает очередь ревью: худший риск первым, внутри уровня — FIFO.
func (m *Manager) GetPending(ctx context.Context, f domain.PendingFilter) ([]*domain.Action, error) {
	return m.store.FindPending(ctx, f)
}

// GetAction — детали одного действия для карточки ревью.
func (m *Manager) GetAction(ctx context.Context, id string) (*domain.Action, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: action id is required", domain.ErrValidation)
	}
	return m.store.GetAction(ctx, id)
}

// ExpireDue — один проход экспирации. Вызывается внешним периодическим
// драйвером (cmd/sweeper), никогда — инлайн в путях чтения/записи.
func (m *Manager) ExpireDue(ctx context.Context) (int, error) {
	now := m.now()
	expired, err := m.store.ExpireDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("queue: expiry sweep failed: %w", err)
	}

	for _, a := range expired {
		m.trail.Record(audit.Event{
			ID:         uuid.New().String(),
			ActionID:   a.ID,
			AgentName:  a.AgentName,
			ActionType: string(a.ActionType),
			RiskLevel:  string(a.RiskLevel),
			Kind:       audit.EventExpired,
			Actor:      "sweeper",
			Timestamp:  now,
		})
	}
	if len(expired) > 0 {
		m.metrics.ExpiredTotal.Add(float64(len(expired)))
		m.logger.Info("expiry sweep completed", zap.Int("expired", len(expired)))
	}
	return len(expired), nil
}

func validateDraft(d *domain.ActionDraft) error {
	if d.ActionType == "" {
		return fmt.Errorf("%w: action_type is required", domain.ErrValidation)
	}
	if d.AgentName == "" {
		return fmt.Errorf("%w: agent_name is required", domain.ErrValidation)
	}
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if d.ExpiresInHours < 0 {
		return fmt.Errorf("%w: expires_in_hours must be non-negative", domain.ErrValidation)
	}
	return nil
}
