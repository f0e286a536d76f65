package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
)

const defaultBotActionLimit = 50

// ListBotActions — история действий бота с динамическими фильтрами, новые первыми.
func (s *Store) ListBotActions(ctx context.Context, q repository.BotActionQuery) ([]domain.BotAction, error) {
	const op = "postgres.ListBotActions"

	var (
		where []string
		args  []any
	)
	eq := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	eq("guild_id", q.GuildID)
	eq("action_type", q.ActionType)
	eq("status", q.Status)
	eq("user_id", q.UserID)
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !q.Until.IsZero() {
		args = append(args, q.Until)
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := `SELECT id, action_type, status, user_id, username, guild_id, guild_name, channel_id,
	                 channel_name, original_message, bot_response, bot_character, payload, metadata, timestamp
	          FROM bot_actions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultBotActionLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := make([]domain.BotAction, 0, limit)
	for rows.Next() {
		a, err := scanBotAction(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func scanBotAction(row pgx.Row) (domain.BotAction, error) {
	var (
		a                             domain.BotAction
		status, userID, username      *string
		guildID, guildName            *string
		channelID, channelName        *string
		original, response, character *string
		payload, metadata             []byte
	)
	if err := row.Scan(&a.ID, &a.ActionType, &status, &userID, &username, &guildID, &guildName,
		&channelID, &channelName, &original, &response, &character, &payload, &metadata, &a.Timestamp); err != nil {
		return a, err
	}
	a.Status = deref(status)
	a.UserID = deref(userID)
	a.Username = deref(username)
	a.GuildID = deref(guildID)
	a.GuildName = deref(guildName)
	a.ChannelID = deref(channelID)
	a.ChannelName = deref(channelName)
	a.OriginalMessage = deref(original)
	a.BotResponse = deref(response)
	a.BotCharacter = deref(character)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return a, fmt.Errorf("decode payload of %s: %w", a.ID, err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return a, fmt.Errorf("decode metadata of %s: %w", a.ID, err)
		}
	}
	return a, nil
}
