package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/audit"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra"
	"github.com/freightops-pro/fopsbackend-sub006/internal/metrics"
	"github.com/freightops-pro/fopsbackend-sub006/internal/queue"
	"github.com/freightops-pro/fopsbackend-sub006/internal/repository/postgres"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sweeper — внешний драйвер экспирации: периодически переводит просроченные
// PENDING-действия в EXPIRED. Пути чтения/записи API этим не занимаются.
// Несколько реплик координируются через Redis-лок: проход делает одна.
func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("sweeper")

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := postgres.NewRepo(appCtx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to init postgres pool", zap.Error(err))
	}
	defer repo.Close()

	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := repo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Экспирация пишет в тот же журнал решений, что и основной сервис
	trail := audit.NewTrail(repo, logger, cfg.Audit.BufferSize, cfg.Audit.BatchSize, cfg.Audit.FlushInterval)
	trail.Start()
	defer trail.Stop()

	// Sweeper'у не нужны оценка риска и исполнитель: только ExpireDue
	manager := queue.NewManager(repo, nil, nil, trail, metrics.NewMetrics(nil), logger, cfg.Queue.DefaultExpiry)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Sweeper.Interval)
	defer ticker.Stop()

	logger.Info("sweeper started",
		zap.Duration("interval", cfg.Sweeper.Interval),
		zap.Duration("lock_ttl", cfg.Sweeper.LockTTL))

	for {
		select {
		case <-stop:
			logger.Info("sweeper stopping...")
			return
		case <-ticker.C:
			sweepOnce(appCtx, rdb, manager, cfg.Sweeper.LockTTL, logger)
		}
	}
}

// sweepOnce берет распределенный лок и делает один проход экспирации.
// Лок не снимаем явно: TTL сам его погасит, и это дешевле, чем городить
// fencing на случай смерти процесса между проходом и Release.
func sweepOnce(ctx context.Context, rdb *redis.Client, manager *queue.Manager, lockTTL time.Duration, logger *zap.Logger) {
	ok, err := rdb.SetNX(ctx, infra.RedisKeySweeperLock, "1", lockTTL).Result()
	if err != nil {
		logger.Error("sweeper lock acquisition failed", zap.Error(err))
		return
	}
	if !ok {
		// Проход уже делает другая реплика
		return
	}

	n, err := manager.ExpireDue(ctx)
	if err != nil {
		logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("expired pending actions", zap.Int("count", n))
	}
}
