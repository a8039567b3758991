package risk

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RuleRepository используется только для Refresh() — холодной загрузки из БД.
type RuleRepository interface {
	ListActiveRules(ctx context.Context) ([]domain.AutonomyRule, error)
}

// MemoRuleCache реализует RuleSource через потокобезопасную мапу.
// Hot Path оценки риска работает только с RAM; синхронизация с Postgres
// происходит при старте и по широковещательному сигналу из Redis,
// который публикует админский сервис правил после каждого изменения.
type MemoRuleCache struct {
	mu sync.RWMutex
	// Кэш: "ACTION_TYPE:agent_name" -> правила, отсортированные по priority DESC
	byScope map[string][]domain.AutonomyRule

	repo   RuleRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewMemoRuleCache(repo RuleRepository, rdb *redis.Client, logger *zap.Logger) *MemoRuleCache {
	return &MemoRuleCache{
		byScope: make(map[string][]domain.AutonomyRule),
		repo:    repo,
		rdb:     rdb,
		logger:  logger.Named("rule-cache"),
	}
}

func scopeKey(actionType domain.ActionType, agentName string) string {
	return string(actionType) + ":" + agentName
}

// ActiveRules отдает слияние персональных правил агента и wildcard-правил ("*")
// для данного типа действия, по убыванию приоритета.
func (c *MemoRuleCache) ActiveRules(_ context.Context, actionType domain.ActionType, agentName string) ([]domain.AutonomyRule, error) {
	c.mu.RLock()
	specific := c.byScope[scopeKey(actionType, agentName)]
	global := c.byScope[scopeKey(actionType, "*")]

	merged := make([]domain.AutonomyRule, 0, len(specific)+len(global))
	merged = append(merged, specific...)
	if agentName != "*" {
		merged = append(merged, global...)
	}
	c.mu.RUnlock()

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority > merged[j].Priority
	})
	return merged, nil
}

// Refresh выполняет холодную загрузку всех активных правил в память.
// Старая мапа подменяется целиком, читатели не видят промежуточных состояний.
func (c *MemoRuleCache) Refresh(ctx context.Context) error {
	rules, err := c.repo.ListActiveRules(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string][]domain.AutonomyRule)
	for _, r := range rules {
		key := scopeKey(r.ActionType, r.AgentName)
		fresh[key] = append(fresh[key], r)
	}

	c.mu.Lock()
	c.byScope = fresh
	c.mu.Unlock()

	c.logger.Info("rule cache refreshed", zap.Int("count", len(rules)))
	return nil
}

// StartListener — живучая подписка на сигнал обновления правил.
// Переподключается при обрывах; при каждом успешном коннекте делает Refresh,
// чтобы не потерять сигналы, пришедшие за время разрыва.
func (c *MemoRuleCache) StartListener(ctx context.Context) {
	for {
		pubsub := c.rdb.Subscribe(ctx, infra.RedisChanRuleUpdate)

		if _, err := pubsub.Receive(ctx); err != nil {
			c.logger.Error("failed to subscribe to rule updates", zap.Error(err))
			pubsub.Close()

			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				continue
			}
		}

		if err := c.Refresh(ctx); err != nil {
			c.logger.Error("rule cache sync failed on (re)connect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case _, ok := <-ch:
				if !ok {
					break loop // канал закрыт, идем на переподключение
				}
				if err := c.Refresh(ctx); err != nil {
					c.logger.Error("rule cache refresh failed", zap.Error(err))
				}
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
