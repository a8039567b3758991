package audit

/*
Файл trail.go реализует журнал решений (Decision Trail) — движок для сбора
и персистентности событий жизненного цикла действий.

Ключевые особенности архитектуры:
- Non-blocking Logging: события уходят в неблокирующий канал, задержки записи
  в БД не влияют на Response Time очереди и ревью.
- Batching: накопление в памяти и пакетная запись (Bulk Insert) в PostgreSQL
  по таймеру или при достижении лимита пачки.
- Drain Pattern & Graceful Shutdown: при остановке канал запирается, воркер
  вычитывает остатки и делает Final Flush — без потерь при перезагрузке.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

// Recorder — то, что видят продюсеры событий (queue, review, sweeper).
type Recorder interface {
	Record(event Event)
}

type Trail struct {
	ch        chan Event
	repo      StorageInterface
	logger    *zap.Logger
	wg        sync.WaitGroup
	batchSize int
	flushTick time.Duration

	// Атомарный флаг (0 - открыт, 1 - закрыт): защита от Record после Stop
	isClosed int32
}

func NewTrail(repo StorageInterface, logger *zap.Logger, bufferSize, batchSize int, flushTick time.Duration) *Trail {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushTick <= 0 {
		flushTick = 500 * time.Millisecond
	}
	return &Trail{
		ch:        make(chan Event, bufferSize),
		repo:      repo,
		logger:    logger.With(zap.String("mod", "decision-trail")),
		batchSize: batchSize,
		flushTick: flushTick,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Даем крошечную паузу, чтобы текущие Record успели проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("decision trail stopped gracefully")
}

// Record кладет событие в буфер. При переполнении применяем Load Shedding:
// событие уходит в обычный лог, основной поток не блокируется.
func (t *Trail) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case t.ch <- event:
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("action_id", event.ActionID),
			zap.String("kind", event.Kind),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Event, 0, t.batchSize)
	ticker := time.NewTicker(t.flushTick)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к моменту Final Flush может быть закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Закрытие канала в Stop() — самодостаточный сигнал завершения:
				// воркер сначала вычитывает остатки, затем получает ok == false.
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// NopRecorder — заглушка для тестов и инструментов без журнала.
type NopRecorder struct{}

func (NopRecorder) Record(Event) {}
