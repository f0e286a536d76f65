package domain

import (
	"encoding/json"
	"time"
)

// EntryKind тип события платформы
type EntryKind string

const (
	KindMessage  EntryKind = "message"
	KindReaction EntryKind = "reaction"
	KindUnknown  EntryKind = "unknown" // Всё, что не сообщение и не реакция
)

// LogEntry — одно наблюдаемое событие чата (сообщение, реакция и т.д.).
// После чтения из источника не изменяется.
type LogEntry struct {
	ID              string         `json:"id,omitempty"`
	Kind            EntryKind      `json:"type"`
	UserID          string         `json:"userId"`
	DisplayNameHint string         `json:"username,omitempty"` // Может быть устаревшим
	GuildID         string         `json:"guildId"`
	GuildName       string         `json:"guildName"`
	ChannelID       string         `json:"channelId"`
	ChannelName     string         `json:"channelName"`
	Content         string         `json:"content,omitempty"`
	OccurredAt      time.Time      `json:"timestamp"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Keywords        []string       `json:"keywords,omitempty"`
}

// ReactionCount достает metadata.reactionCount, 0 если поля нет или тип не числовой.
func (e LogEntry) ReactionCount() int {
	raw, ok := e.Metadata["reactionCount"]
	if !ok {
		return 0
	}
	// После JSON числа приходят как float64, из БД и тестов — как int
	switch v := raw.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

// Normalize проставляет значения по умолчанию для неполных записей источника.
func (e LogEntry) Normalize(now time.Time) LogEntry {
	if e.Kind == "" {
		e.Kind = KindUnknown
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if e.Keywords == nil {
		e.Keywords = []string{}
	}
	return e
}

// FallbackName синтезирует имя "User_" + первые 8 символов идентификатора.
func FallbackName(userID string) string {
	r := []rune(userID)
	if len(r) > 8 {
		r = r[:8]
	}
	return "User_" + string(r)
}
