package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/audit"
	"github.com/freightops-pro/fopsbackend-sub006/internal/console/handler"
	"github.com/freightops-pro/fopsbackend-sub006/internal/console/server"
	"github.com/freightops-pro/fopsbackend-sub006/internal/dispatch"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra/auth"
	"github.com/freightops-pro/fopsbackend-sub006/internal/metrics"
	"github.com/freightops-pro/fopsbackend-sub006/internal/queue"
	"github.com/freightops-pro/fopsbackend-sub006/internal/repository/postgres"
	"github.com/freightops-pro/fopsbackend-sub006/internal/review"
	"github.com/freightops-pro/fopsbackend-sub006/internal/risk"
	"github.com/freightops-pro/fopsbackend-sub006/internal/rules"
	"github.com/freightops-pro/fopsbackend-sub006/internal/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст жизненного цикла фоновых горутин: SIGTERM остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
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

	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse auth public key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(pubKey)

	// 3. Hot Path оценки риска: RAM-кэш правил + слушатель инвалидации
	ruleCache := risk.NewMemoRuleCache(repo, rdb, logger)
	if err := ruleCache.Refresh(appCtx); err != nil {
		logger.Fatal("failed to warm up rule cache", zap.Error(err))
	}
	go ruleCache.StartListener(appCtx)

	evaluator := risk.NewEvaluator(ruleCache, logger)

	// 4. Журнал решений (батчинг в Postgres) и метрики
	trail := audit.NewTrail(repo, logger, cfg.Audit.BufferSize, cfg.Audit.BatchSize, cfg.Audit.FlushInterval)
	trail.Start()
	defer trail.Stop()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	// 5. Исполнение + Надежность (Rate Limit, Circuit Breaker, Retries)
	var executor dispatch.Executor
	if cfg.Dispatch.ExecutorURL != "" {
		executor = dispatch.NewWebhookExecutor(cfg.Dispatch.ExecutorURL, cfg.Dispatch.Timeout)
	} else {
		logger.Warn("dispatch.executor_url is empty, using mock executor")
		executor = dispatch.NewMockExecutor(logger)
	}
	safeExecutor := dispatch.NewReliabilityWrapper(executor, cfg.Dispatch)

	// 6. Сборка бизнес-слоев (Dependency Injection)
	queueManager := queue.NewManager(repo, evaluator, safeExecutor, trail, m, logger, cfg.Queue.DefaultExpiry)
	reviewService := review.NewService(repo, rdb, trail, m, logger)
	ruleService := rules.NewService(repo, rdb, logger)
	statsReporter := stats.NewReporter(repo, m)

	srv := server.NewConsoleServer(
		cfg,
		logger,
		validator,
		handler.NewActionHandler(queueManager),
		handler.NewReviewHandler(reviewService),
		handler.NewRuleHandler(ruleService),
		handler.NewStatsHandler(statsReporter),
	)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("console API started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("console API stopping...")
	cancel() // останавливаем фоновых слушателей

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
