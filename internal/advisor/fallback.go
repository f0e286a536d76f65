package advisor

import (
	"fmt"
	"time"

	"github.com/xela07ax/guildpulse/internal/domain"
)

const (
	dominantRatioThreshold = 30.0
	lowEngagementThreshold = 50
)

// FallbackAdvice — детерминированные правила. Всегда возвращает минимум сводку health/info.
func FallbackAdvice(a domain.AnalysisResult, now time.Time) []domain.AdviceItem {
	items := make([]domain.AdviceItem, 0, 4)
	add := func(t domain.AdviceType, p domain.Priority, title, message, action string) {
		items = append(items, domain.AdviceItem{
			Type: t, Priority: p, Title: title, Message: message, Action: action,
			Icon: domain.IconFor(t), GeneratedAt: now,
		})
	}

	if len(a.UserPostRanking) > 0 && a.UserPostRanking[0].RatioPercent > dominantRatioThreshold {
		add(domain.AdviceParticipation, domain.PriorityMedium,
			"参加バランスの改善",
			fmt.Sprintf("特定ユーザーの投稿が集中しています（%.1f%%）。他のメンバーの発言を促進する施策が必要です。", a.UserPostRanking[0].RatioPercent),
			"質問投稿やアイスブレイク企画で他のメンバーの参加を促してください")
	}

	h := a.CommunityHealth
	if h.Engagement < lowEngagementThreshold {
		add(domain.AdviceEngagement, domain.PriorityHigh,
			"エンゲージメント向上が必要",
			fmt.Sprintf("コミュニティのエンゲージメントが低下しています（%d%%）。リアクションやコメントの促進が重要です。", h.Engagement),
			"モデレーターから積極的なリアクションを行い、メンバーにも参加を呼びかけてください")
	}

	if n := len(a.SuspiciousContent); n > 0 {
		priority := domain.PriorityHigh
		if a.CountBySeverity(domain.SeverityHigh) > 0 {
			priority = domain.PriorityCritical
		}
		add(domain.AdviceModeration, priority,
			"不適切表現への対応",
			fmt.Sprintf("不適切な表現が%d件検出されました。コミュニティルールの周知が必要です。", n),
			"該当ユーザーへの個別指導とガイドラインの再共有を実施してください")
	}

	add(domain.AdviceHealth, domain.PriorityInfo,
		"コミュニティ健康度レポート",
		fmt.Sprintf("参加度: %d%%, エンゲージメント: %d%%, 安全性: %d%%", h.Participation, h.Engagement, h.Safety),
		"定期的な健康度チェックを継続し、数値の改善を目指してください")

	return items
}
