package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/engine"
	"github.com/xela07ax/guildpulse/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 10
	maxHistoryLimit     = 100
	dashboardChannels   = 5
)

var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisService — ручной запуск анализа, история и сводка для дашборда.
type AnalysisService struct {
	runner engine.AnalysisRunner
	store  repository.AnalysisStore
	alerts repository.AlertStore
	logger *zap.Logger
}

func NewAnalysisService(runner engine.AnalysisRunner, store repository.AnalysisStore, alerts repository.AlertStore, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{
		runner: runner,
		store:  store,
		alerts: alerts,
		logger: logger.Named("analysis-service"),
	}
}

func (s *AnalysisService) RunNow(ctx context.Context, opts engine.RunOptions) (domain.AnalysisRecord, error) {
	rec, err := s.runner.Run(ctx, opts)
	if err != nil {
		return rec, fmt.Errorf("analysis_service: run: %w", err)
	}
	s.logger.Info("manual analysis finished",
		zap.String("analysis_id", rec.ID),
		zap.Int("log_count", rec.LogCount))
	return rec, nil
}

func (s *AnalysisService) History(ctx context.Context, q repository.HistoryQuery) ([]domain.AnalysisRecord, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit > maxHistoryLimit {
		q.Limit = maxHistoryLimit
	}
	list, err := s.store.ListAnalyses(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("analysis_service: history: %w", err)
	}
	return list, nil
}

func (s *AnalysisService) Get(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	rec, err := s.store.GetAnalysis(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("analysis_service: get %s: %w", id, err)
	}
	return rec, nil
}

// DashboardStats — здоровье по последнему анализу и очередь алертов.
func (s *AnalysisService) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	pending, err := s.alerts.CountPendingBySeverity(ctx)
	if err != nil {
		return nil, fmt.Errorf("analysis_service: pending alerts: %w", err)
	}

	stats := &domain.DashboardStats{
		PendingAlerts: pending,
		TopChannels:   []domain.ChannelRank{},
	}
	for _, n := range pending {
		stats.TotalPending += n
	}

	latest, err := s.store.ListAnalyses(ctx, repository.HistoryQuery{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("analysis_service: latest analysis: %w", err)
	}
	if len(latest) == 0 {
		return stats, nil
	}

	rec := latest[0]
	health := rec.Analysis.CommunityHealth
	stats.LatestAnalysisID = rec.ID
	stats.AnalysisDate = &rec.AnalysisDate
	stats.Health = &health
	channels := rec.Analysis.ChannelActivity
	if len(channels) > dashboardChannels {
		channels = channels[:dashboardChannels]
	}
	stats.TopChannels = append(stats.TopChannels, channels...)
	return stats, nil
}
