package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/guildpulse/internal/alertlog"
	"github.com/xela07ax/guildpulse/internal/app"
	"github.com/xela07ax/guildpulse/internal/engine"
	"github.com/xela07ax/guildpulse/internal/infra"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфиг и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	// SIGINT/SIGTERM отменяет его и останавливает слушателя и планировщик
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Ядро: хранилище, резолвер, генератор, конвейер
	core, err := app.NewCore(appCtx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build analysis core", zap.Error(err))
	}
	defer core.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// 3. Журнал алертов: данные полетят в базу пачками
	journal := alertlog.NewJournal(core.Store, alertlog.Config{
		BufferSize:    cfg.Engine.AlertBufferSize,
		BatchSize:     cfg.Engine.AlertBatchSize,
		FlushInterval: cfg.Engine.AlertFlushInterval,
	}, core.Metrics, logger)
	journal.Start()

	// 4. Реактивный триггер на каждое новое событие
	trigger := engine.NewModerationTrigger(core.Resolver, core.Scanner, journal, core.Metrics, logger)
	go engine.ListenResilient(appCtx, rdb, logger.Named("listener"), infra.RedisChanEntriesCreated,
		engine.EntryHandler(appCtx, trigger, logger))

	// 5. Плановые прогоны под распределенной блокировкой
	scheduler, err := engine.NewScheduler(appCtx, cfg.Engine.Timezone, core.Pipeline,
		engine.NewRunLock(rdb, infra.RedisKeyLockScheduledRun, cfg.Engine.RunLockTTL), logger)
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}
	if err := scheduler.Schedule(cfg.Engine.Schedule); err != nil {
		logger.Fatal("invalid schedule", zap.String("schedule", cfg.Engine.Schedule), zap.Error(err))
	}
	scheduler.Start()

	// 6. Экспортируем метрики для Prometheus
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(core.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		// Открытый предохранитель не делает сервис нерабочим: советы идут по правилам
		if rw, ok := core.Backend.(*engine.ReliabilityWrapper); ok && rw.State() == gobreaker.StateOpen {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("degraded: generative backend circuit open"))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		logger.Info("analyzer started", zap.String("addr", srv.Addr), zap.String("schedule", cfg.Engine.Schedule))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	<-appCtx.Done() // Ждем сигнал
	logger.Info("analyzer stopping...")

	// 7. Graceful Shutdown: сначала источники алертов, потом журнал
	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", zap.Error(err))
	}
	journal.Stop()
	logger.Info("analyzer exited properly")
}
