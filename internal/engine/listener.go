package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/guildpulse/internal/domain"
	"go.uber.org/zap"
)

const (
	resubscribeDelay = 5 * time.Second
	reconnectDelay   = time.Second
)

// ListenResilient — "живучая" подписка на канал Redis: переподписывается после
// обрыва и выходит только по отмене ctx.
func ListenResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onMessage func(payload string),
) {
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			if !sleepCtx(ctx, resubscribeDelay) {
				return
			}
			continue
		}
		logger.Info("subscribed", zap.String("chan", channel))

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				onMessage(msg.Payload)
			}
		}

		pubsub.Close()
		logger.Warn("subscription lost, reconnecting", zap.String("chan", channel))
		if !sleepCtx(ctx, reconnectDelay) {
			return
		}
	}
}

// EntryHandler разбирает JSON-событие из канала и отдает его триггеру.
// Битое сообщение логируется и пропускается.
func EntryHandler(ctx context.Context, trigger *ModerationTrigger, logger *zap.Logger) func(payload string) {
	return func(payload string) {
		var e domain.LogEntry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			logger.Error("invalid entry payload", zap.Error(err), zap.Int("size", len(payload)))
			return
		}
		trigger.Handle(ctx, e.Normalize(time.Now().UTC()))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
