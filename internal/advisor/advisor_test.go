package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/guildpulse/internal/connectors"
	"github.com/xela07ax/guildpulse/internal/domain"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeBackend struct {
	text   string
	err    error
	delay  time.Duration
	prompt string
	params connectors.GenerationParams
}

func (f *fakeBackend) Generate(ctx context.Context, prompt string, params connectors.GenerationParams) (string, error) {
	f.prompt, f.params = prompt, params
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

type sourceCounter map[string]int

func (s sourceCounter) AdviceGenerated(src string) { s[src]++ }

func quietAnalysis() domain.AnalysisResult {
	return domain.AnalysisResult{
		UserPostRanking: []domain.UserRank{{Username: "a", Count: 1, RatioPercent: 25}},
		CommunityHealth: domain.CommunityHealth{Participation: 40, Engagement: 60, Safety: 100, Overall: 67},
	}
}

func newGen(b connectors.TextGenerator, opts ...Option) *Generator {
	opts = append([]Option{WithBackend(b), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewGenerator(zap.NewNop(), opts...)
}

func TestGenerateUsesModelOutput(t *testing.T) {
	b := &fakeBackend{text: "以下が提案です:\n```json\n[{\"type\":\"structure\",\"priority\":\"low\",\"title\":\"T\",\"message\":\"M\",\"action\":\"A\"}]\n```"}
	src := sourceCounter{}

	items := newGen(b, WithReporter(src)).Generate(context.Background(), quietAnalysis())

	require.Len(t, items, 1)
	assert.Equal(t, domain.AdviceItem{
		Type: domain.AdviceStructure, Priority: domain.PriorityLow,
		Title: "T", Message: "M", Action: "A", Icon: "view_list", GeneratedAt: fixedNow,
	}, items[0])
	assert.Equal(t, 1, src[SourceModel])
	assert.Equal(t, DefaultMaxOutputTokens, b.params.MaxOutputTokens)
	assert.Contains(t, b.prompt, "コミュニティ健康度")
}

func TestGenerateBackendErrorFallsBackToSummary(t *testing.T) {
	src := sourceCounter{}
	items := newGen(&fakeBackend{err: errors.New("unavailable")}, WithReporter(src)).
		Generate(context.Background(), quietAnalysis())

	require.Len(t, items, 1)
	assert.Equal(t, domain.AdviceHealth, items[0].Type)
	assert.Equal(t, domain.PriorityInfo, items[0].Priority)
	assert.Equal(t, "health_and_safety", items[0].Icon)
	assert.Equal(t, 1, src[SourceFallback])
}

func TestGenerateTimeoutFallsBack(t *testing.T) {
	b := &fakeBackend{text: `[{"type":"health"}]`, delay: time.Second}
	items := newGen(b, WithTimeout(20*time.Millisecond)).Generate(context.Background(), quietAnalysis())

	require.Len(t, items, 1)
	assert.Equal(t, "コミュニティ健康度レポート", items[0].Title)
}

func TestGenerateWithoutBackend(t *testing.T) {
	items := NewGenerator(zap.NewNop()).Generate(context.Background(), domain.AnalysisResult{})
	require.NotEmpty(t, items)
	// engagement 0 < 50 плюс сводка
	assert.Equal(t, domain.AdviceEngagement, items[0].Type)
	assert.Equal(t, domain.AdviceHealth, items[len(items)-1].Type)
}

func TestGenerateRejectsInvalidResponses(t *testing.T) {
	cases := map[string]string{
		"no array":       "申し訳ありませんが回答できません",
		"not json":       "[this is not json]",
		"empty array":    "[]",
		"unknown type":   `[{"type":"marketing","priority":"high"}]`,
		"unknown prio":   `[{"type":"health","priority":"urgent"}]`,
		"wrong shape":    `[{"type":1}]`,
		"object list":    `[[1,2],[3]]`,
		"null element":   `[null]`,
		"trailing null":  `[{"type":"health"},null]`,
		"scalar element": `[{"type":"health"},"extra"]`,
		"too many items": "[" + strings.Repeat(`{"type":"health"},`, 5) + `{"type":"health"}]`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			src := sourceCounter{}
			items := newGen(&fakeBackend{text: text}, WithReporter(src)).Generate(context.Background(), quietAnalysis())
			require.Len(t, items, 1)
			assert.Equal(t, domain.AdviceHealth, items[0].Type)
			assert.Equal(t, 1, src[SourceFallback])
		})
	}
}

func TestParseAdviceDefaults(t *testing.T) {
	items, err := ParseAdvice(`[{}, {"type":"moderation","priority":"critical","title":"  "}]`, fixedNow)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, domain.AdviceItem{
		Type: domain.AdviceHealth, Priority: domain.PriorityMedium,
		Title: "アドバイス 1", Message: defaultMessage, Action: defaultAction,
		Icon: "health_and_safety", GeneratedAt: fixedNow,
	}, items[0])
	assert.Equal(t, "アドバイス 2", items[1].Title)
	assert.Equal(t, "warning", items[1].Icon)
}

func TestParseAdviceErrors(t *testing.T) {
	_, err := ParseAdvice("nothing", fixedNow)
	assert.ErrorIs(t, err, ErrNoJSONArray)

	_, err = ParseAdvice("[]", fixedNow)
	assert.ErrorIs(t, err, ErrEmptyAdvice)

	_, err = ParseAdvice(`[{"type":"engagement"}, null]`, fixedNow)
	assert.ErrorIs(t, err, ErrMalformedShape)

	_, err = ParseAdvice(`[{"type":"x"}]`, fixedNow)
	assert.ErrorIs(t, err, ErrUnknownEnum)

	_, err = ParseAdvice(`[{"title":false}]`, fixedNow)
	assert.ErrorIs(t, err, ErrMalformedShape)
}

func TestFallbackRules(t *testing.T) {
	a := domain.AnalysisResult{
		UserPostRanking: []domain.UserRank{{Username: "loud", Count: 8, RatioPercent: 80}},
		SuspiciousContent: []domain.SuspiciousContent{
			{Severity: domain.SeverityLow}, {Severity: domain.SeverityHigh},
		},
		CommunityHealth: domain.CommunityHealth{Participation: 10, Engagement: 20, Safety: 90},
	}

	items := FallbackAdvice(a, fixedNow)
	require.Len(t, items, 4)

	assert.Equal(t, domain.AdviceParticipation, items[0].Type)
	assert.Equal(t, domain.PriorityMedium, items[0].Priority)
	assert.Contains(t, items[0].Message, "80.0%")

	assert.Equal(t, domain.AdviceEngagement, items[1].Type)
	assert.Equal(t, domain.PriorityHigh, items[1].Priority)

	assert.Equal(t, domain.AdviceModeration, items[2].Type)
	assert.Equal(t, domain.PriorityCritical, items[2].Priority)
	assert.Contains(t, items[2].Message, "2件")

	assert.Equal(t, domain.AdviceHealth, items[3].Type)
	assert.Equal(t, "参加度: 10%, エンゲージメント: 20%, 安全性: 90%", items[3].Message)
	for _, it := range items {
		assert.NotEmpty(t, it.Icon)
		assert.Equal(t, fixedNow, it.GeneratedAt)
	}
}

func TestFallbackModerationWithoutHighSeverity(t *testing.T) {
	a := quietAnalysis()
	a.SuspiciousContent = []domain.SuspiciousContent{{Severity: domain.SeverityMedium}}

	items := FallbackAdvice(a, fixedNow)
	require.Len(t, items, 2)
	assert.Equal(t, domain.PriorityHigh, items[0].Priority)
}

func TestBuildPromptLimits(t *testing.T) {
	a := domain.AnalysisResult{}
	for i := range 8 {
		a.UserPostRanking = append(a.UserPostRanking, domain.UserRank{Username: string(rune('a' + i)), Count: 8 - i})
		a.NeglectedUsers = append(a.NeglectedUsers, domain.NeglectedUser{Username: "n" + string(rune('a'+i)), Posts: 3})
	}
	p := BuildPrompt(a)

	assert.Contains(t, p, "5. e: 4投稿")
	assert.NotContains(t, p, "6. f")
	assert.Contains(t, p, "nc: 3投稿")
	assert.NotContains(t, p, "nd: 3投稿")
}
