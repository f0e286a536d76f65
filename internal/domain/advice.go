package domain

import "time"

type AdviceType string

const (
	AdviceParticipation AdviceType = "participation"
	AdviceEngagement    AdviceType = "engagement"
	AdviceModeration    AdviceType = "moderation"
	AdviceStructure     AdviceType = "structure"
	AdviceHealth        AdviceType = "health"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityInfo     Priority = "info"
)

// DefaultIcon используется для неизвестных типов
const DefaultIcon = "info"

// Закрытая таблица иконок по типу совета
var adviceIcons = map[AdviceType]string{
	AdviceParticipation: "group_work",
	AdviceEngagement:    "favorite",
	AdviceModeration:    "warning",
	AdviceStructure:     "view_list",
	AdviceHealth:        "health_and_safety",
}

// IconFor всегда возвращает непустую иконку.
func IconFor(t AdviceType) string {
	if icon, ok := adviceIcons[t]; ok {
		return icon
	}
	return DefaultIcon
}

func (t AdviceType) Valid() bool {
	_, ok := adviceIcons[t]
	return ok
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityInfo:
		return true
	}
	return false
}

// AdviceItem — одна рекомендация для модераторов.
type AdviceItem struct {
	Type        AdviceType `json:"type"`
	Priority    Priority   `json:"priority"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Action      string     `json:"action"`
	Icon        string     `json:"icon"`
	GeneratedAt time.Time  `json:"timestamp"`
}
