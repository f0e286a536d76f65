package analytics

import (
	"context"
	"math"
	"sort"

	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/risk"
)

const (
	// Порог "активного ядра" для participation: 20 авторов = 100
	participationTarget = 20.0
	// Пользователи с меньшим числом постов не попадают в neglectedUsers
	neglectMinPosts = 3
	safetyPenalty   = 5
)

// NameResolver — зависимость от identity.Resolver.
type NameResolver interface {
	Resolve(ctx context.Context, userIDs []string) map[string]string
}

// Aggregator превращает снимок событий в AnalysisResult. Состояния между прогонами нет.
type Aggregator struct {
	names   NameResolver
	scanner *risk.Scanner
}

func NewAggregator(names NameResolver, scanner *risk.Scanner) *Aggregator {
	return &Aggregator{names: names, scanner: scanner}
}

type userStat struct {
	posts     int
	reactions int
}

// counter сохраняет порядок первого появления ключа для стабильной сортировки
type counter[T any] struct {
	order []string
	byKey map[string]*T
}

func newCounter[T any]() *counter[T] {
	return &counter[T]{byKey: make(map[string]*T)}
}

func (c *counter[T]) get(key string) *T {
	if v, ok := c.byKey[key]; ok {
		return v
	}
	v := new(T)
	c.byKey[key] = v
	c.order = append(c.order, key)
	return v
}

func (a *Aggregator) Aggregate(ctx context.Context, entries []domain.LogEntry) domain.AnalysisResult {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.UserID != "" {
			ids = append(ids, e.UserID)
		}
	}
	names := a.names.Resolve(ctx, ids)

	users := newCounter[userStat]()
	channels := newCounter[int]()
	suspicious := make([]domain.SuspiciousContent, 0)

	for _, e := range entries {
		username := effectiveName(e, names)

		if e.Kind == domain.KindMessage && e.UserID != "" {
			st := users.get(username)
			st.posts++
			st.reactions += e.ReactionCount()
		}

		if e.ChannelName != "" {
			*channels.get(e.ChannelName)++
		}

		if e.Content != "" {
			if f := a.scanner.Scan(e.Content, risk.RankingContext); !f.Empty() {
				suspicious = append(suspicious, domain.SuspiciousContent{
					Username:     username,
					Content:      e.Content,
					Severity:     f.Severity,
					MatchedWords: f.Matched,
				})
			}
		}
	}

	return domain.AnalysisResult{
		UserPostRanking:   userRanking(users),
		ChannelActivity:   channelRanking(channels),
		NeglectedUsers:    neglected(users),
		SuspiciousContent: suspicious,
		CommunityHealth:   health(users, len(suspicious)),
	}
}

func effectiveName(e domain.LogEntry, names map[string]string) string {
	if n, ok := names[e.UserID]; ok && n != "" {
		return n
	}
	if e.DisplayNameHint != "" {
		return e.DisplayNameHint
	}
	return domain.FallbackName(e.UserID)
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func userRanking(users *counter[userStat]) []domain.UserRank {
	total := 0
	for _, k := range users.order {
		total += users.byKey[k].posts
	}
	out := make([]domain.UserRank, 0, len(users.order))
	for _, k := range users.order {
		n := users.byKey[k].posts
		out = append(out, domain.UserRank{Username: k, Count: n, RatioPercent: ratio(n, total)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func channelRanking(channels *counter[int]) []domain.ChannelRank {
	total := 0
	for _, k := range channels.order {
		total += *channels.byKey[k]
	}
	out := make([]domain.ChannelRank, 0, len(channels.order))
	for _, k := range channels.order {
		n := *channels.byKey[k]
		out = append(out, domain.ChannelRank{Channel: k, Count: n, RatioPercent: ratio(n, total)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func neglected(users *counter[userStat]) []domain.NeglectedUser {
	out := make([]domain.NeglectedUser, 0)
	for _, k := range users.order {
		st := users.byKey[k]
		if st.posts < neglectMinPosts {
			continue
		}
		out = append(out, domain.NeglectedUser{
			Username:    k,
			Posts:       st.posts,
			Reactions:   st.reactions,
			NeglectRate: float64(st.reactions) / float64(st.posts),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NeglectRate < out[j].NeglectRate })
	return out
}

// health округляет каждый показатель, overall считается по уже округленным значениям.
func health(users *counter[userStat], suspicious int) domain.CommunityHealth {
	posts, reactions := 0, 0
	for _, k := range users.order {
		posts += users.byKey[k].posts
		reactions += users.byKey[k].reactions
	}

	participation := clampRound(float64(len(users.order)) / participationTarget * 100)
	engagement := clampRound(float64(reactions) / float64(max(1, posts)) * 10)
	safety := clampRound(float64(100 - safetyPenalty*suspicious))
	overall := clampRound(float64(participation+engagement+safety) / 3)

	return domain.CommunityHealth{
		Participation: participation,
		Engagement:    engagement,
		Safety:        safety,
		Overall:       overall,
	}
}

func clampRound(v float64) int {
	return int(math.Round(math.Min(100, math.Max(0, v))))
}
