package alertlog

/*
Journal — асинхронная запись алертов модерации.

Триггер не ждет базу: алерт кладется в буферизованный канал, воркер копит пачку
и пишет ее одним INSERT по размеру пачки или по таймеру. Stop закрывает вход,
вычитывает остатки и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/xela07ax/guildpulse/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultBufferSize    = 1000
	DefaultBatchSize     = 100
	DefaultFlushInterval = 500 * time.Millisecond
)

// Storage — куда физически сохраняются алерты (repository.AlertStore подходит)
type Storage interface {
	SaveAlerts(ctx context.Context, alerts []domain.ModerationAlert) error
}

// BufferObserver получает текущую заполненность буфера. Реализует engine.Metrics.
type BufferObserver interface {
	BufferFill(n int)
}

type nopObserver struct{}

func (nopObserver) BufferFill(int) {}

type Config struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type Journal struct {
	ch       chan domain.ModerationAlert
	repo     Storage
	observer BufferObserver
	logger   *zap.Logger
	cfg      Config
	wg       sync.WaitGroup

	// mu защищает закрытие канала от конкурентных Submit
	mu     sync.RWMutex
	closed bool
}

func NewJournal(repo Storage, cfg Config, observer BufferObserver, logger *zap.Logger) *Journal {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Journal{
		ch:       make(chan domain.ModerationAlert, cfg.BufferSize),
		repo:     repo,
		observer: observer,
		logger:   logger.Named("alertlog"),
		cfg:      cfg,
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop запирает вход и ждет, пока воркер допишет всё из буфера.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.logger.Info("stopping journal: closing channel and flushing buffer...")
	close(j.ch)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("journal stopped gracefully")
}

// Submit не блокирует: при переполнении алерт сбрасывается с записью в лог.
func (j *Journal) Submit(alert domain.ModerationAlert) {
	if alert.DetectedAt.IsZero() {
		alert.DetectedAt = time.Now().UTC()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.logger.Warn("alert dropped: journal is stopping", zap.String("id", alert.ID))
		return
	}

	// Load Shedding
	select {
	case j.ch <- alert:
		j.observer.BufferFill(len(j.ch))
	default:
		j.logger.Error("alert_buffer_overflow",
			zap.String("id", alert.ID),
			zap.String("user_id", alert.UserID),
			zap.String("severity", string(alert.Severity)),
			zap.String("content", alert.Content),
		)
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]domain.ModerationAlert, 0, j.cfg.BatchSize)
	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст вызывающего к этому моменту может быть закрыт
		if err := j.repo.SaveAlerts(context.Background(), batch); err != nil {
			j.logger.Error("alert flush failed", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		j.observer.BufferFill(len(j.ch))
	}

	for {
		select {
		case alert, ok := <-j.ch:
			if !ok {
				flush() // Финальный сброс
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, alert)
			if len(batch) >= j.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
