package domain

import (
	"errors"
	"time"
)

// Статусы State Machine для алертов модерации
type AlertStatus string

const (
	AlertPending   AlertStatus = "pending"
	AlertReviewed  AlertStatus = "reviewed"
	AlertDismissed AlertStatus = "dismissed"
)

const AlertTypeSuspiciousContent = "suspicious_content"

var (
	ErrInvalidTransition = errors.New("invalid alert status transition")
	ErrAlreadyProcessed  = errors.New("moderation alert already processed")
	ErrAlertNotFound     = errors.New("moderation alert not found")
)

// ModerationAlert создается ModerationTrigger один раз на каждое подходящее событие.
// Status дальше меняет только процесс модерации.
type ModerationAlert struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Severity     Severity    `json:"severity"`
	UserID       string      `json:"userId"`
	Username     string      `json:"username"`
	GuildID      string      `json:"guildId"`
	GuildName    string      `json:"guildName"`
	ChannelID    string      `json:"channelId"`
	ChannelName  string      `json:"channelName"`
	Content      string      `json:"content"`
	MatchedWords []string    `json:"suspiciousWords"`
	DetectedAt   time.Time   `json:"timestamp"`
	Status       AlertStatus `json:"status"`
	AutoDetected bool        `json:"autoDetected"`

	ReviewerID *string    `json:"reviewerId,omitempty"`
	Comment    *string    `json:"comment,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// CanTransitionTo проверяет правила конечного автомата
func (a *ModerationAlert) CanTransitionTo(next AlertStatus) error {
	if a.Status != AlertPending {
		return ErrAlreadyProcessed
	}
	if next != AlertReviewed && next != AlertDismissed {
		return ErrInvalidTransition
	}
	return nil
}
