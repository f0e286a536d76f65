package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
	"go.uber.org/zap"
)

const DefaultEntryLimit = 1000

// Статусы прогона для метрики guildpulse_analysis_runs_total
const (
	RunStatusOK        = "ok"
	RunStatusUnsaved   = "unsaved"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

var ErrSourceUnavailable = errors.New("entry source unavailable")

type StatsAggregator interface {
	Aggregate(ctx context.Context, entries []domain.LogEntry) domain.AnalysisResult
}

type AdviceGenerator interface {
	Generate(ctx context.Context, analysis domain.AnalysisResult) []domain.AdviceItem
}

// RunOptions сужает выборку событий для одного прогона.
type RunOptions struct {
	GuildID string
	Since   time.Time
	Until   time.Time
}

// Pipeline: fetch -> aggregate -> advise -> persist. Каждый Run независим.
type Pipeline struct {
	source     repository.EntrySource
	aggregator StatsAggregator
	advisor    AdviceGenerator
	store      repository.AnalysisStore
	metrics    *Metrics
	logger     *zap.Logger
	entryLimit int
	now        func() time.Time
}

func NewPipeline(
	source repository.EntrySource,
	aggregator StatsAggregator,
	advisor AdviceGenerator,
	store repository.AnalysisStore,
	metrics *Metrics,
	logger *zap.Logger,
	entryLimit int,
) *Pipeline {
	if entryLimit <= 0 {
		entryLimit = DefaultEntryLimit
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Pipeline{
		source:     source,
		aggregator: aggregator,
		advisor:    advisor,
		store:      store,
		metrics:    metrics,
		logger:     logger.Named("pipeline"),
		entryLimit: entryLimit,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }, // точность timestamptz
	}
}

// Run возвращает ошибку только если источник недоступен даже без сортировки.
// Ошибка сохранения логируется, посчитанный результат все равно возвращается (без ID).
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.AnalysisRecord, error) {
	start := time.Now()
	defer func() { p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds()) }()

	entries, err := p.fetch(ctx, opts)
	if err != nil {
		p.metrics.AnalysisRuns.WithLabelValues(RunStatusFailed).Inc()
		return domain.AnalysisRecord{}, err
	}
	p.logger.Info("entries fetched", zap.Int("count", len(entries)), zap.String("guild_id", opts.GuildID))

	analysis := p.aggregator.Aggregate(ctx, entries)
	advice := p.advisor.Generate(ctx, analysis)

	rec := domain.AnalysisRecord{
		Analysis:     analysis,
		Advice:       advice,
		LogCount:     len(entries),
		AnalysisDate: p.now(),
		GuildIDs:     distinctGuilds(entries),
		Channels:     distinctChannels(entries),
	}

	// Вызывающий ушел: не пишем ничего, чтобы не оставить частичное состояние
	if ctx.Err() != nil {
		p.logger.Warn("run cancelled, skipping persistence", zap.Error(ctx.Err()))
		p.metrics.AnalysisRuns.WithLabelValues(RunStatusCancelled).Inc()
		return rec, nil
	}

	saved, err := p.store.SaveAnalysis(ctx, rec)
	if err != nil {
		p.logger.Error("failed to persist analysis, returning computed result", zap.Error(err))
		p.metrics.AnalysisRuns.WithLabelValues(RunStatusUnsaved).Inc()
		return rec, nil
	}

	p.logger.Info("analysis completed",
		zap.String("id", saved.ID),
		zap.Int("log_count", saved.LogCount),
		zap.Int("advice_count", len(saved.Advice)),
		zap.Int("health", saved.Analysis.CommunityHealth.Overall),
	)
	p.metrics.AnalysisRuns.WithLabelValues(RunStatusOK).Inc()
	return saved, nil
}

// fetch сначала просит сортировку по времени; при отказе повторяет один раз без нее.
func (p *Pipeline) fetch(ctx context.Context, opts RunOptions) ([]domain.LogEntry, error) {
	q := repository.EntryQuery{
		Limit:   p.entryLimit,
		Ordered: true,
		GuildID: opts.GuildID,
		Since:   opts.Since,
		Until:   opts.Until,
	}

	entries, err := p.source.RecentEntries(ctx, q)
	if err == nil {
		return entries, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, ctx.Err())
	}

	p.logger.Warn("ordered fetch failed, retrying without ordering",
		zap.Bool("unsupported", errors.Is(err, repository.ErrQueryUnsupported)),
		zap.Error(err),
	)

	q.Ordered = false
	entries, retryErr := p.source.RecentEntries(ctx, q)
	if retryErr != nil {
		p.logger.Error("unordered fetch failed", zap.Error(retryErr))
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, retryErr)
	}
	return entries, nil
}

func distinctGuilds(entries []domain.LogEntry) []string {
	return distinct(entries, func(e domain.LogEntry) string { return e.GuildID })
}

func distinctChannels(entries []domain.LogEntry) []string {
	return distinct(entries, func(e domain.LogEntry) string { return e.ChannelName })
}

// distinct сохраняет порядок первого появления, пустые значения пропускает
func distinct(entries []domain.LogEntry, key func(domain.LogEntry) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range entries {
		k := key(e)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
