package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ReliabilityWrapper оборачивает исполнителя в Rate Limiter, Circuit Breaker
// и ретраи. Доставка AUTO_EXECUTED действий не должна ни захлебнуть внешний
// сервис, ни зависнуть на нем при деградации.
type ReliabilityWrapper struct {
	next    Executor
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
}

func NewReliabilityWrapper(next Executor, cfg infra.DispatchConfig) *ReliabilityWrapper {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "autonomy-executor",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // время, через которое CB попробует «закрыться»
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд — открываемся и блокируем трафик
			return counts.ConsecutiveFailures > 5
		},
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)

	return &ReliabilityWrapper{
		next:    next,
		cb:      cb,
		limiter: limiter,
		timeout: cfg.Timeout,
	}
}

func (w *ReliabilityWrapper) Execute(ctx context.Context, action *domain.Action) error {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Исполнитель вернул ThrottleError — уважаем его Retry-After
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				// Иначе (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.timeout)
			defer cancel()
			return w.next.Execute(tCtx, action)
		})

		return nil, retryErr
	})
	return err
}
