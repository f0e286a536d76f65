// Package app собирает ядро анализа из конфигурации: хранилище, резолвер имен,
// сканер, генератор советов и конвейер. Общий код для cmd/analyzer и cmd/console.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xela07ax/guildpulse/internal/advisor"
	"github.com/xela07ax/guildpulse/internal/analytics"
	"github.com/xela07ax/guildpulse/internal/connectors"
	"github.com/xela07ax/guildpulse/internal/engine"
	"github.com/xela07ax/guildpulse/internal/identity"
	"github.com/xela07ax/guildpulse/internal/infra"
	"github.com/xela07ax/guildpulse/internal/repository"
	"github.com/xela07ax/guildpulse/internal/repository/memory"
	"github.com/xela07ax/guildpulse/internal/repository/postgres"
	"github.com/xela07ax/guildpulse/internal/risk"
	"go.uber.org/zap"
)

const (
	BackendGemini = "gemini"
	BackendMock   = "mock"
)

// Core — собранные компоненты, которые разделяют analyzer и console.
type Core struct {
	Store    repository.Store
	Backend  connectors.TextGenerator // nil — только правила
	Registry *prometheus.Registry
	Metrics  *engine.Metrics
	Resolver *identity.Resolver
	Scanner  *risk.Scanner
	Advisor  *advisor.Generator
	Pipeline *engine.Pipeline
}

func NewCore(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (*Core, error) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	backend, err := NewBackend(cfg, metrics, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	directory := identity.NewCachedDirectory(store, identity.DefaultCacheTTL, logger)
	resolver := identity.NewResolver(directory, logger, identity.WithReporter(metrics))
	scanner := risk.NewScanner(risk.DefaultLexicon)

	adviceOpts := []advisor.Option{
		advisor.WithTimeout(cfg.Engine.AdviceTimeout),
		advisor.WithReporter(metrics),
		advisor.WithParams(connectors.GenerationParams{
			MaxOutputTokens: cfg.Generative.MaxOutputTokens,
			Temperature:     cfg.Generative.Temperature,
			TopP:            cfg.Generative.TopP,
		}),
	}
	if backend != nil {
		adviceOpts = append(adviceOpts, advisor.WithBackend(backend))
	}
	gen := advisor.NewGenerator(logger, adviceOpts...)

	pipeline := engine.NewPipeline(
		store,
		analytics.NewAggregator(resolver, scanner),
		gen,
		store,
		metrics,
		logger,
		cfg.Engine.EntryLimit,
	)

	return &Core{
		Store:    store,
		Backend:  backend,
		Registry: reg,
		Metrics:  metrics,
		Resolver: resolver,
		Scanner:  scanner,
		Advisor:  gen,
		Pipeline: pipeline,
	}, nil
}

func (c *Core) Close() {
	c.Store.Close()
}

// OpenStore выбирает реализацию хранилища по store.driver.
func OpenStore(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Driver {
	case infra.StoreDriverMemory:
		logger.Warn("using in-memory store, data is not persisted")
		return memory.New(), nil
	case infra.StoreDriverPostgres:
		pg, err := postgres.NewStore(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		// Проверяем соединение с таймаутом
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pg.Ping(pingCtx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("database unreachable: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewBackend строит генеративный бэкенд в обертке надежности.
// nil без ошибки — генерация выключена, советы только по правилам.
func NewBackend(cfg *infra.Config, metrics *engine.Metrics, logger *zap.Logger) (connectors.TextGenerator, error) {
	g := cfg.Generative
	if !g.Enabled {
		logger.Info("generative backend disabled, rule-based advice only")
		return nil, nil
	}

	var raw connectors.TextGenerator
	switch g.Backend {
	case BackendGemini, "":
		if g.APIKey == "" {
			logger.Warn("generative.api_key is empty, rule-based advice only")
			return nil, nil
		}
		opts := []connectors.GeminiOption{connectors.WithModel(g.Model)}
		if g.BaseURL != "" {
			opts = append(opts, connectors.WithBaseURL(g.BaseURL))
		}
		raw = connectors.NewGeminiClient(g.APIKey, opts...)
	case BackendMock:
		raw = &connectors.MockGenerator{}
	default:
		return nil, fmt.Errorf("unknown generative.backend %q", g.Backend)
	}

	e := cfg.Engine
	return engine.NewReliabilityWrapper(raw, engine.ReliabilityConfig{
		Name:           g.Backend,
		MaxRequests:    e.CBMaxRequests,
		Interval:       e.CBInterval,
		Timeout:        e.CBTimeout,
		RateLimit:      e.RateLimit,
		RateBurst:      e.RateBurst,
		Attempts:       e.RetryAttempts,
		AttemptTimeout: e.AdviceTimeout,
	}, metrics, logger), nil
}
