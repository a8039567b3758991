package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "fops"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRuleUpdate — сигнал перечитать правила автономии (инвалидация RAM-кэша).
	RedisChanRuleUpdate = RedisNamespace + ":autonomy:rules-update"

	// RedisChanPromotions — трансляция фактов авто-промоушена правил до Level 3.
	RedisChanPromotions = RedisNamespace + ":autonomy:promotions"

	// RedisChanDecisions — базовый префикс каналов решений по конкретным действиям.
	RedisChanDecisions = RedisNamespace + ":autonomy:decisions"
)

// Ключи блокировок
const (
	// RedisKeySweeperLock — leader-lock свипера: гарантирует единственный
	// экземпляр sweep-цикла при горизонтальном масштабировании.
	RedisKeySweeperLock = RedisNamespace + ":autonomy:sweeper:lock"
)

// DecisionChannel — канал, в который публикуется финальный статус действия.
// Его слушает агент-инициатор, ожидающий решения по своей заявке.
func DecisionChannel(actionID string) string {
	return fmt.Sprintf("%s:%s", RedisChanDecisions, actionID)
}
