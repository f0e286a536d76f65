package domain

import "time"

// DashboardStats — сводка для главной страницы консоли модератора.
type DashboardStats struct {
	LatestAnalysisID string           `json:"latest_analysis_id,omitempty"`
	AnalysisDate     *time.Time       `json:"analysis_date,omitempty"`
	Health           *CommunityHealth `json:"health,omitempty"` // nil, если анализ еще не запускался
	PendingAlerts    map[Severity]int `json:"pending_alerts"`
	TotalPending     int              `json:"total_pending"`
	TopChannels      []ChannelRank    `json:"top_channels"`
}
