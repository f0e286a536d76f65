package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/engine"
	"github.com/xela07ax/guildpulse/internal/repository"
	"github.com/xela07ax/guildpulse/internal/repository/memory"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthServiceGenerateToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	store := memory.New()
	store.PutModerator(domain.Moderator{
		ID:           "mod-1",
		Username:     "hanako",
		PasswordHash: hash,
		Scopes:       map[string]bool{domain.ScopeAlertsDecide: true},
	})

	svc := NewAuthService(store, key, time.Hour)

	resp, err := svc.GenerateToken(context.Background(), "hanako", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.EqualValues(t, 3600, resp.ExpiresIn)

	claims, err := svc.VerifyToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "mod-1", claims.UserID)
	assert.True(t, claims.Scopes[domain.ScopeAlertsDecide])

	_, err = svc.GenerateToken(context.Background(), "hanako", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.GenerateToken(context.Background(), "nobody", "s3cret")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

type fakeRunner struct {
	rec  domain.AnalysisRecord
	err  error
	opts engine.RunOptions
}

func (f *fakeRunner) Run(_ context.Context, opts engine.RunOptions) (domain.AnalysisRecord, error) {
	f.opts = opts
	return f.rec, f.err
}

func saveAnalysis(t *testing.T, store *memory.Store, date time.Time, guild string, health domain.CommunityHealth, channels int) domain.AnalysisRecord {
	t.Helper()
	rec := domain.AnalysisRecord{AnalysisDate: date, GuildIDs: []string{guild}}
	rec.Analysis.CommunityHealth = health
	for i := 0; i < channels; i++ {
		rec.Analysis.ChannelActivity = append(rec.Analysis.ChannelActivity, domain.ChannelRank{Channel: string(rune('a' + i)), Count: channels - i})
	}
	saved, err := store.SaveAnalysis(context.Background(), rec)
	require.NoError(t, err)
	return saved
}

func TestAnalysisServiceHistoryAndGet(t *testing.T) {
	store := memory.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		saveAnalysis(t, store, base.Add(time.Duration(i)*time.Hour), "g1", domain.CommunityHealth{}, 0)
	}
	other := saveAnalysis(t, store, base.Add(-time.Hour), "g2", domain.CommunityHealth{}, 0)

	svc := NewAnalysisService(&fakeRunner{}, store, store, zap.NewNop())

	list, err := svc.History(context.Background(), repository.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, list, DefaultHistoryLimit)
	assert.True(t, list[0].AnalysisDate.After(list[1].AnalysisDate), "newest first")

	list, err = svc.History(context.Background(), repository.HistoryQuery{GuildID: "g2"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)

	got, err := svc.Get(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, got.GuildIDs)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}

func TestAnalysisServiceRunNow(t *testing.T) {
	runner := &fakeRunner{rec: domain.AnalysisRecord{ID: "a1", LogCount: 3}}
	svc := NewAnalysisService(runner, memory.New(), memory.New(), zap.NewNop())

	rec, err := svc.RunNow(context.Background(), engine.RunOptions{GuildID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "a1", rec.ID)
	assert.Equal(t, "g1", runner.opts.GuildID)

	runner.err = engine.ErrSourceUnavailable
	_, err = svc.RunNow(context.Background(), engine.RunOptions{})
	assert.ErrorIs(t, err, engine.ErrSourceUnavailable)
}

func TestDashboardStats(t *testing.T) {
	store := memory.New()
	svc := NewAnalysisService(&fakeRunner{}, store, store, zap.NewNop())

	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats.Health, "no analysis yet")
	assert.Zero(t, stats.TotalPending)
	assert.NotNil(t, stats.TopChannels)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	saveAnalysis(t, store, base, "g1", domain.CommunityHealth{Overall: 10}, 2)
	latest := saveAnalysis(t, store, base.Add(24*time.Hour), "g1", domain.CommunityHealth{Overall: 72}, 7)

	require.NoError(t, store.SaveAlerts(context.Background(), []domain.ModerationAlert{
		{ID: "x1", Severity: domain.SeverityHigh, Status: domain.AlertPending},
		{ID: "x2", Severity: domain.SeverityHigh, Status: domain.AlertPending},
		{ID: "x3", Severity: domain.SeverityLow, Status: domain.AlertPending},
		{ID: "x4", Severity: domain.SeverityLow, Status: domain.AlertReviewed},
	}))

	stats, err = svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, latest.ID, stats.LatestAnalysisID)
	require.NotNil(t, stats.Health)
	assert.Equal(t, 72, stats.Health.Overall)
	assert.Len(t, stats.TopChannels, dashboardChannels)
	assert.Equal(t, 3, stats.TotalPending)
	assert.Equal(t, 2, stats.PendingAlerts[domain.SeverityHigh])
}

func TestAlertServiceDecide(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.SaveAlerts(context.Background(), []domain.ModerationAlert{
		{ID: "a1", Severity: domain.SeverityMedium, Status: domain.AlertPending, DetectedAt: time.Now()},
	}))
	svc := NewAlertService(store, zap.NewNop())

	pending, err := svc.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	a, err := svc.Decide(context.Background(), "a1", domain.AlertDismissed, "mod-1", "誤検知")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertDismissed, a.Status)
	require.NotNil(t, a.ReviewerID)
	assert.Equal(t, "mod-1", *a.ReviewerID)

	_, err = svc.Decide(context.Background(), "a1", domain.AlertReviewed, "mod-2", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	_, err = svc.Decide(context.Background(), "nope", domain.AlertReviewed, "mod-2", "")
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)

	pending, err = svc.List(context.Background(), domain.AlertPending, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAlertServiceWrapsStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := NewAlertService(failingAlerts{err: boom}, zap.NewNop())
	_, err := svc.List(context.Background(), "", 0)
	assert.ErrorIs(t, err, boom)
}

type failingAlerts struct {
	repository.AlertStore
	err error
}

func (f failingAlerts) ListAlerts(context.Context, domain.AlertStatus, int) ([]domain.ModerationAlert, error) {
	return nil, f.err
}

type recordingNames struct {
	calls [][]string
}

func (r *recordingNames) Resolve(_ context.Context, ids []string) map[string]string {
	r.calls = append(r.calls, append([]string(nil), ids...))
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = "name-" + id
	}
	return out
}

func TestBotActionHistory(t *testing.T) {
	store := memory.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		store.AppendBotActions(domain.BotAction{
			ActionType: "reply",
			Status:     "sent",
			UserID:     "u1",
			Username:   "stale",
			GuildID:    "g1",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	store.AppendBotActions(
		domain.BotAction{ID: "latest", Status: "failed", UserID: "u2", BotCharacter: "ずんだもん", GuildID: "g1", Timestamp: base.Add(time.Hour)},
		domain.BotAction{ID: "payload", ActionType: "greet", Payload: map[string]any{"character": "めたん"}, GuildID: "g1", Timestamp: base.Add(-time.Hour)},
	)

	names := &recordingNames{}
	svc := NewBotActionService(store, names, zap.NewNop())

	h, err := svc.History(context.Background(), repository.BotActionQuery{})
	require.NoError(t, err)
	assert.Equal(t, 14, h.Count)
	assert.Equal(t, 14, h.Stats.Total)
	assert.Equal(t, "latest", h.Actions[0].ID)
	assert.Equal(t, "name-u2", h.Actions[0].Username)
	assert.Equal(t, "name-u1", h.Actions[1].Username, "resolved name wins over stored hint")
	assert.Equal(t, "Unknown", h.Actions[13].Username, "no user id")

	assert.Equal(t, map[string]int{"reply": 12, "unknown": 1, "greet": 1}, h.Stats.ByActionType)
	assert.Equal(t, map[string]int{"sent": 12, "failed": 1, "unknown": 1}, h.Stats.ByStatus)
	assert.Equal(t, map[string]int{"ずんだもん": 1, "めたん": 1, "unknown": 12}, h.Stats.ByCharacter)
	require.Len(t, h.Stats.RecentActivity, 10)
	assert.Equal(t, "latest", h.Stats.RecentActivity[0].ID)

	// Один вызов резолвера на всю выдачу, пустые userId не передаются
	require.Len(t, names.calls, 1)
	assert.NotContains(t, names.calls[0], "")
}

func TestBotActionHistoryLimits(t *testing.T) {
	store := memory.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		store.AppendBotActions(domain.BotAction{ActionType: "reply", GuildID: "g1", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	svc := NewBotActionService(store, &recordingNames{}, zap.NewNop())

	h, err := svc.History(context.Background(), repository.BotActionQuery{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBotActionLimit, h.Count)

	h, err = svc.History(context.Background(), repository.BotActionQuery{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxBotActionLimit, h.Count)

	h, err = svc.History(context.Background(), repository.BotActionQuery{GuildID: "other"})
	require.NoError(t, err)
	assert.Zero(t, h.Count)
	assert.NotNil(t, h.Stats.RecentActivity)
}
