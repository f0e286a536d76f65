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

	"github.com/xela07ax/guildpulse/internal/app"
	"github.com/xela07ax/guildpulse/internal/console/handler"
	"github.com/xela07ax/guildpulse/internal/console/server"
	"github.com/xela07ax/guildpulse/internal/console/service"
	"github.com/xela07ax/guildpulse/internal/infra"
	"github.com/xela07ax/guildpulse/internal/infra/auth"
	"go.uber.org/zap"
)

func main() {
	// 1. Инициализация ресурсов
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("console requires auth.private_key_path", zap.Error(err))
	}
	// Открытый ключ необязателен, но если задан, он должен быть парой к закрытому
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("invalid auth.public_key_path", zap.Error(err))
		}
		if !pub.Equal(&privateKey.PublicKey) {
			logger.Fatal("auth public key does not match private key")
		}
	}

	core, err := app.NewCore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build analysis core", zap.Error(err))
	}
	defer core.Close()

	// 2. Инициализация слоев (Dependency Injection)
	authSvc := service.NewAuthService(core.Store, privateKey, cfg.Auth.TokenTTL)
	analysisSvc := service.NewAnalysisService(core.Pipeline, core.Store, core.Store, logger)
	alertSvc := service.NewAlertService(core.Store, logger)
	botSvc := service.NewBotActionService(core.Store, core.Resolver, logger)

	consoleSrv := server.NewConsoleServer(logger, authSvc, core.Registry,
		handler.NewAuthHandler(authSvc, logger),
		handler.NewAnalysisHandler(analysisSvc, logger),
		handler.NewAlertHandler(alertSvc, logger),
		handler.NewBotActionHandler(botSvc, logger),
		handler.NewDashboardHandler(analysisSvc, logger),
	)

	// 3. Запуск сервера
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout, // Ручной прогон ждет генерацию до engine.advice_timeout
	}
	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("console API stopping...")

	// Даем 10 секунд на завершение запросов
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
