package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/audit"
	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra"
	"github.com/freightops-pro/fopsbackend-sub006/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store описывает требования сервиса ревью к хранилищу.
// ApplyDecision обязан быть атомарным: переход статуса и счетчики правил —
// одна транзакционная единица (см. repository/postgres).
type Store interface {
	GetAction(ctx context.Context, id string) (*domain.Action, error)
	ApplyDecision(ctx context.Context, d domain.Decision) (*domain.Action, []domain.RulePromotion, error)
}

// Service применяет человеческие решения и крутит петлю обратной связи:
// счетчики правил, авто-промоушен Level 3, сигналы о решениях.
type Service struct {
	store   Store
	rdb     *redis.Client
	trail   audit.Recorder
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(store Store, rdb *redis.Client, trail audit.Recorder, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		rdb:     rdb,
		trail:   trail,
		metrics: m,
		logger:  logger.Named("review-service"),
		now:     time.Now,
	}
}

// Approve фиксирует апрув ревьюера. Если переданы правки, статус становится
// APPROVED_WITH_EDITS и вычисляется похожесть правок на черновик.
// Не-PENDING действие дает типизированный InvalidState без какой-либо мутации.
func (s *Service) Approve(ctx context.Context, actionID, reviewerID string, edits *string) (*domain.Action, error) {
	if err := validateIdentity(actionID, reviewerID); err != nil {
		return nil, err
	}

	d := domain.Decision{
		ActionID:   actionID,
		ReviewerID: reviewerID,
		Status:     domain.StatusApproved,
		DecidedAt:  s.now(),
	}

	if edits != nil {
		// Похожесть считается от черновика, который правил ревьюер.
		// Черновик иммутабелен, поэтому чтение вне транзакции безопасно.
		action, err := s.store.GetAction(ctx, actionID)
		if err != nil {
			return nil, err
		}
		score := EditSimilarity(action.DraftContent, *edits)
		d.Status = domain.StatusApprovedWithEdits
		d.HumanEdits = edits
		d.EditSimilarityScore = &score
	}

	return s.finalize(ctx, d, "")
}

// Reject фиксирует отказ. Причина обязательна — это вход петли обучения.
func (s *Service) Reject(ctx context.Context, actionID, reviewerID, reason string) (*domain.Action, error) {
	if err := validateIdentity(actionID, reviewerID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", domain.ErrValidation)
	}

	d := domain.Decision{
		ActionID:        actionID,
		ReviewerID:      reviewerID,
		Status:          domain.StatusRejected,
		RejectionReason: &reason,
		DecidedAt:       s.now(),
	}
	return s.finalize(ctx, d, reason)
}

func (s *Service) finalize(ctx context.Context, d domain.Decision, note string) (*domain.Action, error) {
	action, promoted, err := s.store.ApplyDecision(ctx, d)
	if err != nil {
		return nil, err
	}

	s.metrics.DecisionsTotal.WithLabelValues(string(d.Status)).Inc()
	s.trail.Record(audit.Event{
		ID:         uuid.New().String(),
		ActionID:   action.ID,
		AgentName:  action.AgentName,
		ActionType: string(action.ActionType),
		RiskLevel:  string(action.RiskLevel),
		Kind:       string(d.Status),
		Actor:      d.ReviewerID,
		Note:       note,
		Timestamp:  d.DecidedAt,
	})
	s.logger.Info("review decision applied",
		zap.String("action_id", action.ID),
		zap.String("status", string(d.Status)),
		zap.String("reviewer", d.ReviewerID))

	// Сигнал «пробуждения» для агента, ждущего решения по своей заявке.
	// Решение уже закоммичено: недоставленный сигнал не повод для отката,
	// агент доберет статус поллингом (Fail-Safe).
	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, infra.DecisionChannel(action.ID), string(d.Status)).Err(); err != nil {
			s.logger.Error("decision saved but signal not delivered",
				zap.String("action_id", action.ID),
				zap.Error(err))
		}
	}

	for _, p := range promoted {
		s.announcePromotion(ctx, action, p, d.DecidedAt)
	}

	return action, nil
}

// announcePromotion — операционное событие промоушена: лог, метрика,
// широковещательный сигнал и запись в журнал.
func (s *Service) announcePromotion(ctx context.Context, action *domain.Action, p domain.RulePromotion, at time.Time) {
	s.metrics.PromotionsTotal.Inc()
	s.logger.Info("autonomy rule promoted to level 3",
		zap.String("rule_id", p.RuleID),
		zap.String("rule_name", p.Name),
		zap.Int64("total_actions", p.TotalActions),
		zap.Float64("approval_rate", p.ApprovalRate))

	s.trail.Record(audit.Event{
		ID:         uuid.New().String(),
		ActionID:   action.ID,
		AgentName:  action.AgentName,
		ActionType: string(action.ActionType),
		RiskLevel:  string(action.RiskLevel),
		Kind:       audit.EventPromoted,
		Actor:      "system",
		Note:       fmt.Sprintf("rule %q reached %.1f%% over %d actions", p.Name, p.ApprovalRate, p.TotalActions),
		Timestamp:  at,
	})

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, infra.RedisChanPromotions, p.RuleID).Err(); err != nil {
			s.logger.Warn("promotion signal delivery failed",
				zap.String("rule_id", p.RuleID),
				zap.Error(err))
		}
	}
}

func validateIdentity(actionID, reviewerID string) error {
	if actionID == "" {
		return fmt.Errorf("%w: action id is required", domain.ErrValidation)
	}
	if reviewerID == "" {
		return fmt.Errorf("%w: reviewer id is required", domain.ErrValidation)
	}
	return nil
}
