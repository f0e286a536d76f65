package domain

import "time"

// BotAction — одно действие бота в ответ на сообщение участника (коллекция bot_actions).
type BotAction struct {
	ID              string         `json:"id"`
	ActionType      string         `json:"actionType"`
	Status          string         `json:"status,omitempty"`
	UserID          string         `json:"userId"`
	Username        string         `json:"username"` // Заполняется резолвером при выдаче
	GuildID         string         `json:"guildId"`
	GuildName       string         `json:"guildName"`
	ChannelID       string         `json:"channelId"`
	ChannelName     string         `json:"channelName"`
	OriginalMessage string         `json:"originalMessage,omitempty"`
	BotResponse     string         `json:"botResponse,omitempty"`
	BotCharacter    string         `json:"botCharacter,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Character — botCharacter, иначе payload.character, иначе пусто.
func (a BotAction) Character() string {
	if a.BotCharacter != "" {
		return a.BotCharacter
	}
	if c, ok := a.Payload["character"].(string); ok {
		return c
	}
	return ""
}

// BotActionStats — разбивка выдачи истории по типу, статусу и персонажу.
type BotActionStats struct {
	Total          int            `json:"total"`
	ByActionType   map[string]int `json:"byActionType"`
	ByStatus       map[string]int `json:"byStatus"`
	ByCharacter    map[string]int `json:"byCharacter"`
	RecentActivity []BotAction    `json:"recentActivity"`
}

// BotActionHistory — ответ истории действий бота.
type BotActionHistory struct {
	Actions []BotAction    `json:"data"`
	Count   int            `json:"count"`
	Stats   BotActionStats `json:"stats"`
}
