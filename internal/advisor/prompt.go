package advisor

import (
	"fmt"
	"strings"

	"github.com/xela07ax/guildpulse/internal/domain"
)

const maxAdviceItems = 5

// BuildPrompt встраивает в запрос топ-5 авторов и каналов, топ-3 "незамеченных",
// счетчики находок по severity и показатели здоровья.
func BuildPrompt(a domain.AnalysisResult) string {
	var b strings.Builder

	b.WriteString("あなたはDiscordコミュニティの運営アドバイザーです。以下のDiscordログ分析結果を基に、コミュニティ運営の改善案を5つ以内で提案してください。\n\n")
	b.WriteString("【分析結果】\n■投稿ランキング上位5名:\n")
	for i, u := range head(a.UserPostRanking, 5) {
		fmt.Fprintf(&b, "%d. %s: %d投稿 (%.1f%%)\n", i+1, u.Username, u.Count, u.RatioPercent)
	}

	b.WriteString("\n■チャンネル別アクティビティ:\n")
	for _, ch := range head(a.ChannelActivity, 5) {
		fmt.Fprintf(&b, "#%s: %d件 (%.1f%%)\n", ch.Channel, ch.Count, ch.RatioPercent)
	}

	b.WriteString("\n■リアクション不足ユーザー（上位3名）:\n")
	for _, u := range head(a.NeglectedUsers, 3) {
		fmt.Fprintf(&b, "%s: %d投稿に対し%dリアクション (平均%.2f/投稿)\n", u.Username, u.Posts, u.Reactions, u.NeglectRate)
	}

	b.WriteString("\n■不適切表現検知:\n")
	fmt.Fprintf(&b, "- 総件数: %d件\n", len(a.SuspiciousContent))
	fmt.Fprintf(&b, "- 高リスク: %d件\n", a.CountBySeverity(domain.SeverityHigh))
	fmt.Fprintf(&b, "- 中リスク: %d件\n", a.CountBySeverity(domain.SeverityMedium))
	fmt.Fprintf(&b, "- 低リスク: %d件\n", a.CountBySeverity(domain.SeverityLow))

	h := a.CommunityHealth
	b.WriteString("\n■コミュニティ健康度:\n")
	fmt.Fprintf(&b, "- 参加度: %d%%\n- エンゲージメント: %d%%\n- 安全性: %d%%\n- 総合: %d%%\n",
		h.Participation, h.Engagement, h.Safety, h.Overall)

	b.WriteString(`
【アドバイス要件】
1. 各提案は「タイトル」「説明」「具体的なアクション」の形式で記述
2. 優先度を「critical/high/medium/low/info」のいずれかで設定
3. アドバイスタイプを「participation/engagement/moderation/structure/health」のいずれかで分類
4. 日本語で回答し、実用的で具体的な提案を行う
5. JSON配列のみを出力（最大5件、下記例を参考）

出力例:
[
  {
    "type": "engagement",
    "priority": "high",
    "title": "エンゲージメント向上策",
    "message": "具体的な問題と解決方針の説明",
    "action": "具体的に実行すべきアクション"
  }
]
`)
	return b.String()
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
