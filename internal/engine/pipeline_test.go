package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/guildpulse/internal/advisor"
	"github.com/xela07ax/guildpulse/internal/analytics"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/identity"
	"github.com/xela07ax/guildpulse/internal/repository"
	"github.com/xela07ax/guildpulse/internal/repository/memory"
	"github.com/xela07ax/guildpulse/internal/risk"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func seedStore(opts ...memory.Option) *memory.Store {
	s := memory.New(opts...)
	s.PutUsers(
		domain.UserRecord{UserID: "u1", DisplayName: "alice"},
		domain.UserRecord{UserID: "u2", Username: "bob"},
	)
	s.AppendEntries(
		domain.LogEntry{Kind: domain.KindMessage, UserID: "u1", GuildID: "g1", ChannelName: "general", OccurredAt: t0, Metadata: map[string]any{"reactionCount": 2}},
		domain.LogEntry{Kind: domain.KindMessage, UserID: "u2", GuildID: "g1", ChannelName: "random", Content: "バカ", OccurredAt: t0.Add(time.Minute)},
		domain.LogEntry{Kind: domain.KindReaction, UserID: "u2", GuildID: "g2", ChannelName: "general", OccurredAt: t0.Add(2 * time.Minute)},
	)
	return s
}

func newTestPipeline(source repository.EntrySource, store repository.AnalysisStore, m *Metrics) *Pipeline {
	logger := zap.NewNop()
	agg := analytics.NewAggregator(identity.NewResolver(seedStore(), logger), risk.NewScanner(nil))
	adv := advisor.NewGenerator(logger)
	return NewPipeline(source, agg, adv, store, m, logger, 0)
}

func TestPipelineRunPersistsRecord(t *testing.T) {
	store := seedStore()
	reg := prometheus.NewRegistry()
	p := newTestPipeline(store, store, NewMetrics(reg))

	rec, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	assert.Equal(t, 3, rec.LogCount)
	assert.Equal(t, []string{"g2", "g1"}, rec.GuildIDs) // новые первыми
	assert.ElementsMatch(t, []string{"general", "random"}, rec.Channels)
	assert.NotEmpty(t, rec.Advice)
	require.Len(t, rec.Analysis.SuspiciousContent, 1)
	assert.Equal(t, "bob", rec.Analysis.SuspiciousContent[0].Username)

	stored, err := store.GetAnalysis(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Analysis, stored.Analysis)
	assert.Equal(t, 1.0, counterValue(t, reg, "guildpulse_analysis_runs_total", RunStatusOK))
}

func TestPipelineAnalysisDateHasStoragePrecision(t *testing.T) {
	store := seedStore()
	p := newTestPipeline(store, store, nil)

	rec, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, rec.AnalysisDate.Location())
	assert.True(t, rec.AnalysisDate.Equal(rec.AnalysisDate.Truncate(time.Microsecond)))
	assert.Zero(t, rec.AnalysisDate.Nanosecond()%int(time.Microsecond))
}

func TestPipelineRetriesWithoutOrdering(t *testing.T) {
	store := seedStore(memory.WithOrderingUnsupported())
	p := newTestPipeline(store, store, nil)

	rec, err := p.Run(context.Background(), RunOptions{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.LogCount)
}

type failingSource struct{ calls []repository.EntryQuery }

func (f *failingSource) RecentEntries(_ context.Context, q repository.EntryQuery) ([]domain.LogEntry, error) {
	f.calls = append(f.calls, q)
	return nil, repository.Transport("fake", errors.New("connection refused"))
}

func TestPipelineSourceUnavailable(t *testing.T) {
	src := &failingSource{}
	store := memory.New()
	reg := prometheus.NewRegistry()
	p := newTestPipeline(src, store, NewMetrics(reg))

	_, err := p.Run(context.Background(), RunOptions{})
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, repository.ErrTransport)

	require.Len(t, src.calls, 2)
	assert.True(t, src.calls[0].Ordered)
	assert.False(t, src.calls[1].Ordered)
	assert.Equal(t, DefaultEntryLimit, src.calls[1].Limit)
	assert.Equal(t, 1.0, counterValue(t, reg, "guildpulse_analysis_runs_total", RunStatusFailed))

	list, err := store.ListAnalyses(context.Background(), repository.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

type failingAnalysisStore struct{ repository.AnalysisStore }

func (failingAnalysisStore) SaveAnalysis(_ context.Context, rec domain.AnalysisRecord) (domain.AnalysisRecord, error) {
	return rec, repository.Transport("fake", errors.New("write timeout"))
}

func TestPipelineReturnsResultWhenPersistenceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPipeline(seedStore(), failingAnalysisStore{}, NewMetrics(reg))

	rec, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, rec.ID)
	assert.Equal(t, 3, rec.LogCount)
	assert.NotEmpty(t, rec.Advice)
	assert.Equal(t, 1.0, counterValue(t, reg, "guildpulse_analysis_runs_total", RunStatusUnsaved))
}

// cancelAfterFetch отменяет контекст прогона сразу после чтения событий
type cancelAfterFetch struct {
	repository.EntrySource
	cancel context.CancelFunc
}

func (c cancelAfterFetch) RecentEntries(ctx context.Context, q repository.EntryQuery) ([]domain.LogEntry, error) {
	entries, err := c.EntrySource.RecentEntries(ctx, q)
	c.cancel()
	return entries, err
}

func TestPipelineSkipsPersistenceOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := seedStore()
	reg := prometheus.NewRegistry()
	p := newTestPipeline(cancelAfterFetch{EntrySource: store, cancel: cancel}, store, NewMetrics(reg))

	rec, err := p.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, rec.ID)
	assert.Equal(t, 1.0, counterValue(t, reg, "guildpulse_analysis_runs_total", RunStatusCancelled))

	list, err := store.ListAnalyses(context.Background(), repository.HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDistinctSkipsEmpty(t *testing.T) {
	entries := []domain.LogEntry{{GuildID: "a"}, {GuildID: ""}, {GuildID: "a", ChannelName: "x"}, {GuildID: "b", ChannelName: "x"}}
	assert.Equal(t, []string{"a", "b"}, distinctGuilds(entries))
	assert.Equal(t, []string{"x"}, distinctChannels(entries))
}
