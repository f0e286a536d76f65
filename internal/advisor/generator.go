package advisor

import (
	"context"
	"time"

	"github.com/xela07ax/guildpulse/internal/connectors"
	"github.com/xela07ax/guildpulse/internal/domain"
	"go.uber.org/zap"
)

// Источник итогового списка советов
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxOutputTokens = 2048
	DefaultTemperature     = 0.7
	DefaultTopP            = 0.8
)

// SourceReporter учитывает, откуда пришли советы. Реализует engine.Metrics.
type SourceReporter interface {
	AdviceGenerated(source string)
}

type nopReporter struct{}

func (nopReporter) AdviceGenerated(string) {}

// Generator пробует генеративный бэкенд и при любой проблеме уходит в детерминированные правила.
type Generator struct {
	backend  connectors.TextGenerator // nil — только правила
	params   connectors.GenerationParams
	timeout  time.Duration
	logger   *zap.Logger
	reporter SourceReporter
	now      func() time.Time
}

type Option func(*Generator)

func WithBackend(b connectors.TextGenerator) Option {
	return func(g *Generator) { g.backend = b }
}

func WithParams(p connectors.GenerationParams) Option {
	return func(g *Generator) { g.params = p }
}

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithReporter(r SourceReporter) Option {
	return func(g *Generator) {
		if r != nil {
			g.reporter = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(logger *zap.Logger, opts ...Option) *Generator {
	g := &Generator{
		params: connectors.GenerationParams{
			MaxOutputTokens: DefaultMaxOutputTokens,
			Temperature:     DefaultTemperature,
			TopP:            DefaultTopP,
		},
		timeout:  DefaultTimeout,
		logger:   logger.Named("advisor"),
		reporter: nopReporter{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate никогда не возвращает пустой список и не возвращает ошибку.
func (g *Generator) Generate(ctx context.Context, analysis domain.AnalysisResult) []domain.AdviceItem {
	items, err := g.fromModel(ctx, analysis)
	if err == nil {
		g.reporter.AdviceGenerated(SourceModel)
		return items
	}

	if g.backend != nil {
		g.logger.Warn("generative advice rejected, using fallback rules", zap.Error(err))
	}
	g.reporter.AdviceGenerated(SourceFallback)
	return FallbackAdvice(analysis, g.now())
}

func (g *Generator) fromModel(ctx context.Context, analysis domain.AnalysisResult) ([]domain.AdviceItem, error) {
	if g.backend == nil {
		return nil, connectors.ErrBackendDisabled
	}

	// Таймаут приравнивается к транспортной ошибке
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.backend.Generate(callCtx, BuildPrompt(analysis), g.params)
	if err != nil {
		return nil, err
	}

	items, err := ParseAdvice(text, g.now())
	if err != nil {
		g.logger.Debug("unparseable completion", zap.String("text", truncate(text, 512)))
		return nil, err
	}
	return items, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
