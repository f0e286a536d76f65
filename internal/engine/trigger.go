package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/risk"
	"go.uber.org/zap"
)

// AuthorResolver возвращает отображаемое имя автора.
// identity.Resolver никогда не возвращает пустую строку, сторонняя реализация может.
type AuthorResolver interface {
	ResolveOne(ctx context.Context, userID string) string
}

// AlertSink принимает алерт на сохранение. Реализует alertlog.Journal.
type AlertSink interface {
	Submit(alert domain.ModerationAlert)
}

// ModerationTrigger — реактивный путь: одно новое событие, одна проверка.
// Повторная доставка того же события дает повторный алерт, дедупликации нет.
type ModerationTrigger struct {
	names   AuthorResolver
	scanner *risk.Scanner
	sink    AlertSink
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewModerationTrigger(names AuthorResolver, scanner *risk.Scanner, sink AlertSink, metrics *Metrics, logger *zap.Logger) *ModerationTrigger {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &ModerationTrigger{
		names:   names,
		scanner: scanner,
		sink:    sink,
		metrics: metrics,
		logger:  logger.Named("trigger"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle возвращает созданный алерт или nil, если событие чистое.
func (t *ModerationTrigger) Handle(ctx context.Context, e domain.LogEntry) *domain.ModerationAlert {
	if e.Content == "" {
		return nil
	}

	// Пустой ответ резолвера: имя из события, затем синтетическое
	username := t.names.ResolveOne(ctx, e.UserID)
	if username == "" {
		username = e.DisplayNameHint
	}
	if username == "" {
		username = domain.FallbackName(e.UserID)
	}

	t.logger.Debug("new interaction",
		zap.String("entry_id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.String("user_id", e.UserID),
		zap.String("username", username),
		zap.String("guild", e.GuildName),
	)

	f := t.scanner.Scan(e.Content, risk.TriggerContext)
	if f.Empty() {
		return nil
	}

	alert := domain.ModerationAlert{
		ID:           uuid.New().String(),
		Type:         domain.AlertTypeSuspiciousContent,
		Severity:     f.Severity,
		UserID:       e.UserID,
		Username:     username,
		GuildID:      e.GuildID,
		GuildName:    e.GuildName,
		ChannelID:    e.ChannelID,
		ChannelName:  e.ChannelName,
		Content:      e.Content,
		MatchedWords: f.Matched,
		DetectedAt:   t.now(),
		Status:       domain.AlertPending,
		AutoDetected: true,
	}
	t.sink.Submit(alert)
	t.metrics.ModerationAlerts.WithLabelValues(string(f.Severity)).Inc()

	t.logger.Warn("suspicious content detected",
		zap.String("user_id", e.UserID),
		zap.String("username", username),
		zap.String("guild", e.GuildName),
		zap.String("severity", string(f.Severity)),
		zap.Strings("words", f.Matched),
	)
	return &alert
}
