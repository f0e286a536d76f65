package domain

import "time"

// Severity уровень находки ContentSafetyScanner
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type UserRank struct {
	Username     string  `json:"username"`
	Count        int     `json:"count"`
	RatioPercent float64 `json:"ratio"`
}

type ChannelRank struct {
	Channel      string  `json:"channel"`
	Count        int     `json:"count"`
	RatioPercent float64 `json:"ratio"`
}

// NeglectedUser — автор, чьи сообщения редко получают реакции.
type NeglectedUser struct {
	Username    string  `json:"username"`
	Posts       int     `json:"posts"`
	Reactions   int     `json:"reactions"`
	NeglectRate float64 `json:"neglectRate"` // reactions / posts
}

type SuspiciousContent struct {
	Username     string   `json:"username"`
	Content      string   `json:"content"`
	Severity     Severity `json:"severity"`
	MatchedWords []string `json:"words"`
}

// CommunityHealth — все значения целые и зажаты в [0,100]
type CommunityHealth struct {
	Participation int `json:"participation"`
	Engagement    int `json:"engagement"`
	Safety        int `json:"safety"`
	Overall       int `json:"overall"`
}

// AnalysisResult результат StatsAggregator
type AnalysisResult struct {
	UserPostRanking   []UserRank          `json:"userPostRanking"`
	ChannelActivity   []ChannelRank       `json:"channelActivity"`
	NeglectedUsers    []NeglectedUser     `json:"neglectedUsers"`
	SuspiciousContent []SuspiciousContent `json:"suspiciousContent"`
	CommunityHealth   CommunityHealth     `json:"communityHealth"`
}

// CountBySeverity считает находки заданного уровня.
func (r AnalysisResult) CountBySeverity(s Severity) int {
	n := 0
	for _, c := range r.SuspiciousContent {
		if c.Severity == s {
			n++
		}
	}
	return n
}

// AnalysisRecord — то, что сохраняется в хранилище после прогона анализа.
type AnalysisRecord struct {
	ID           string         `json:"id"`
	Analysis     AnalysisResult `json:"analysis"`
	Advice       []AdviceItem   `json:"aiAdvices"`
	LogCount     int            `json:"logCount"`
	AnalysisDate time.Time      `json:"analysisDate"`
	GuildIDs     []string       `json:"guildIds"`
	Channels     []string       `json:"channels"`
	CreatedAt    time.Time      `json:"createdAt"` // Проставляет хранилище
}
