package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultBotActionLimit = 50
	MaxBotActionLimit     = 100
	recentActivitySize    = 10
	unknownLabel          = "unknown"
	unknownUsername       = "Unknown"
)

// NameResolver — пакетное разрешение имен (identity.Resolver). Не падает: недоступные имена синтезируются.
type NameResolver interface {
	Resolve(ctx context.Context, userIDs []string) map[string]string
}

// BotActionService — история действий бота с актуальными именами авторов.
type BotActionService struct {
	store  repository.BotActionStore
	names  NameResolver
	logger *zap.Logger
}

func NewBotActionService(store repository.BotActionStore, names NameResolver, logger *zap.Logger) *BotActionService {
	return &BotActionService{store: store, names: names, logger: logger.Named("bot-action-service")}
}

func (s *BotActionService) History(ctx context.Context, q repository.BotActionQuery) (*domain.BotActionHistory, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultBotActionLimit
	}
	if q.Limit > MaxBotActionLimit {
		q.Limit = MaxBotActionLimit
	}

	actions, err := s.store.ListBotActions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("bot_action_service: list: %w", err)
	}

	ids := make([]string, 0, len(actions))
	for _, a := range actions {
		if a.UserID != "" {
			ids = append(ids, a.UserID)
		}
	}
	names := s.names.Resolve(ctx, ids)

	stats := domain.BotActionStats{
		Total:          len(actions),
		ByActionType:   make(map[string]int),
		ByStatus:       make(map[string]int),
		ByCharacter:    make(map[string]int),
		RecentActivity: []domain.BotAction{},
	}
	for i := range actions {
		a := &actions[i]
		switch {
		case a.UserID != "":
			a.Username = names[a.UserID]
		case a.Username == "":
			a.Username = unknownUsername
		}
		stats.ByActionType[orUnknown(a.ActionType)]++
		stats.ByStatus[orUnknown(a.Status)]++
		stats.ByCharacter[orUnknown(a.Character())]++
	}
	stats.RecentActivity = append(stats.RecentActivity, actions[:min(recentActivitySize, len(actions))]...)

	s.logger.Info("bot action history served",
		zap.Int("count", len(actions)),
		zap.String("guild_id", q.GuildID),
		zap.String("action_type", q.ActionType),
		zap.String("status", q.Status))

	return &domain.BotActionHistory{Actions: actions, Count: len(actions), Stats: stats}, nil
}

func orUnknown(v string) string {
	if v == "" {
		return unknownLabel
	}
	return v
}
