package rules

import (
	"context"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Repository описывает требования сервиса к хранилищу правил
type Repository interface {
	GetRuleByID(ctx context.Context, id string) (*domain.AutonomyRule, error)
	ListRules(ctx context.Context) ([]domain.AutonomyRule, error)
	CreateRule(ctx context.Context, r *domain.AutonomyRule) error
	UpdateRule(ctx context.Context, r *domain.AutonomyRule) error
	DeactivateRule(ctx context.Context, id string) error
	SeedDefaultRules(ctx context.Context, rules []domain.AutonomyRule) (int64, error)
}

// Service — админский контур правил автономии. Каждая мутация
// инвалидирует RAM-кэши всех инстансов через Redis.
type Service struct {
	repo   Repository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewService(repo Repository, rdb *redis.Client, logger *zap.Logger) *Service {
	return &Service{repo: repo, rdb: rdb, logger: logger.Named("rules-service")}
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.AutonomyRule, error) {
	return s.repo.GetRuleByID(ctx, id)
}

// List возвращает все правила из БД, включая деактивированные
func (s *Service) List(ctx context.Context) ([]domain.AutonomyRule, error) {
	return s.repo.ListRules(ctx)
}

// Create валидирует условие на этапе авторинга и сохраняет правило.
// Битые условия отбиваются здесь, а не тихо пропускаются оценщиком.
func (s *Service) Create(ctx context.Context, r *domain.AutonomyRule) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.AutoPromoteThreshold == 0 {
		r.AutoPromoteThreshold = domain.DefaultAutoPromoteThreshold
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateRule(ctx, r); err != nil {
		return err
	}
	return s.notifyUpdate(ctx)
}

// Update обновляет правило и инициирует инвалидацию кэша
func (s *Service) Update(ctx context.Context, r *domain.AutonomyRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateRule(ctx, r); err != nil {
		return err
	}
	return s.notifyUpdate(ctx)
}

// Deactivate — мягкое отключение; физического удаления правил нет.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.DeactivateRule(ctx, id); err != nil {
		return err
	}
	return s.notifyUpdate(ctx)
}

// Seed — идемпотентное сидирование дефолтного набора правил.
func (s *Service) Seed(ctx context.Context) (int64, error) {
	inserted, err := s.repo.SeedDefaultRules(ctx, DefaultRules())
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		s.logger.Info("default autonomy rules seeded", zap.Int64("inserted", inserted))
		return inserted, s.notifyUpdate(ctx)
	}
	return 0, nil
}

// notifyUpdate отправляет широковещательный сигнал в Redis.
// Все инстансы, подписанные на канал, перечитают таблицу правил целиком.
func (s *Service) notifyUpdate(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Publish(ctx, infra.RedisChanRuleUpdate, "refresh").Err()
}

// DefaultRules — стартовый набор правил для свежего окружения.
// Пары (name, agent_name) уникальны: повторное сидирование ничего не вставит.
func DefaultRules() []domain.AutonomyRule {
	mk := func(t domain.ActionType, agent, name string, c domain.Condition, risk domain.RiskLevel, prio int) domain.AutonomyRule {
		return domain.AutonomyRule{
			ID:                   uuid.New().String(),
			ActionType:           t,
			AgentName:            agent,
			Name:                 name,
			Condition:            c,
			ResultingRisk:        risk,
			Priority:             prio,
			Active:               true,
			AutoPromoteThreshold: domain.DefaultAutoPromoteThreshold,
		}
	}

	return []domain.AutonomyRule{
		// Outreach: крупные флоты — стратегические аккаунты, только через человека
		mk(domain.ActionLeadOutreach, "scout", "enterprise fleet outreach",
			domain.Condition{Field: "fleet_size", Operator: domain.OpGreaterOrEqual, Value: "100"},
			domain.RiskCritical, 100),
		mk(domain.ActionLeadOutreach, "scout", "mid-size fleet outreach",
			domain.Condition{Field: "fleet_size", Operator: domain.OpGreaterOrEqual, Value: "20"},
			domain.RiskMedium, 50),

		// Квалификация: холодные лиды без выручки — повышенное внимание
		mk(domain.ActionLeadQualification, "*", "unverified revenue qualification",
			domain.Condition{Field: "annual_revenue", Operator: domain.OpLessOrEqual, Value: "0"},
			domain.RiskMedium, 50),

		// Ставки: отклонение от рынка — прямой финансовый риск
		mk(domain.ActionRateDecision, "pricer", "large rate deviation",
			domain.Condition{Field: "rate_delta_percent", Operator: domain.OpGreater, Value: "10"},
			domain.RiskHigh, 100),
		mk(domain.ActionRateDecision, "pricer", "extreme rate deviation",
			domain.Condition{Field: "rate_delta_percent", Operator: domain.OpGreater, Value: "25"},
			domain.RiskCritical, 200),

		// Инвойсы: крупные суммы ревьюим всегда
		mk(domain.ActionInvoiceDispatch, "*", "high value invoice",
			domain.Condition{Field: "amount", Operator: domain.OpGreaterOrEqual, Value: "5000"},
			domain.RiskHigh, 100),

		// Follow-up: перевозчики в черном списке
		mk(domain.ActionCarrierFollowup, "*", "blacklisted carrier contact",
			domain.Condition{Field: "carrier_status", Operator: domain.OpIn, Value: "blacklisted,suspended"},
			domain.RiskCritical, 200),
	}
}
