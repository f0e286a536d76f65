package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/guildpulse/internal/connectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReliabilityConfig — настройки обертки вокруг генеративного бэкенда.
type ReliabilityConfig struct {
	Name           string
	MaxRequests    uint32        // запросов в half-open
	Interval       time.Duration // окно сброса счетчиков в closed
	Timeout        time.Duration // время, через которое CB попробует "закрыться"
	TripAfter      uint32        // подряд идущих ошибок до открытия
	RateLimit      float64       // запросов в секунду
	RateBurst      int
	Attempts       uint
	AttemptTimeout time.Duration
}

func (c ReliabilityConfig) withDefaults() ReliabilityConfig {
	if c.Name == "" {
		c.Name = "generative"
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = 3
	}
	if c.Interval == 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.TripAfter == 0 {
		c.TripAfter = 5
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 1
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 2
	}
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = 20 * time.Second
	}
	return c
}

// ReliabilityWrapper: rate limiter -> circuit breaker -> retry с таймаутом на попытку.
// Сам реализует connectors.TextGenerator.
type ReliabilityWrapper struct {
	next    connectors.TextGenerator
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	cfg     ReliabilityConfig
}

func NewReliabilityWrapper(next connectors.TextGenerator, cfg ReliabilityConfig, metrics *Metrics, logger *zap.Logger) *ReliabilityWrapper {
	cfg = cfg.withDefaults()
	log := logger.Named("reliability")

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if metrics != nil {
				metrics.breakerStateChanged(name, to)
			}
		},
		// Отмена вызывающим не говорит о здоровье бэкенда
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &ReliabilityWrapper{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		cfg:     cfg,
	}
}

func (w *ReliabilityWrapper) Generate(ctx context.Context, prompt string, params connectors.GenerationParams) (string, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	res, err := w.cb.Execute(func() (interface{}, error) {
		var text string
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.cfg.Attempts),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Бэкенд вернул 429 с Retry-After
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				// В остальных случаях (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
			retry.RetryIf(retryable),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
			defer cancel()

			var callErr error
			text, callErr = w.next.Generate(tCtx, prompt, params)
			return callErr
		})
		return text, retryErr
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// State отдает текущее состояние предохранителя (для /health)
func (w *ReliabilityWrapper) State() gobreaker.State {
	return w.cb.State()
}

// retryable: 429 повторяем, прочие 4xx повтором не исправить
func retryable(err error) bool {
	var tErr *connectors.ThrottleError
	if errors.As(err, &tErr) {
		return true
	}
	var sErr *connectors.StatusError
	if errors.As(err, &sErr) && sErr.Code >= 400 && sErr.Code < 500 {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
