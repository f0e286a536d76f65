package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
)

const defaultEntryLimit = 1000

// FindUsersByIDs — запрос на равенство по списку, не более MaxInValues значений.
func (s *Store) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.UserRecord, error) {
	const op = "postgres.FindUsersByIDs"
	if len(ids) > repository.MaxInValues {
		return nil, repository.Unsupported(op, fmt.Errorf("%d values exceed limit %d", len(ids), repository.MaxInValues))
	}
	if len(ids) == 0 {
		return []domain.UserRecord{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, COALESCE(display_name, ''), COALESCE(username, '') FROM users WHERE user_id = ANY($1)`, ids)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := make([]domain.UserRecord, 0, len(ids))
	for rows.Next() {
		var u domain.UserRecord
		if err := rows.Scan(&u.UserID, &u.DisplayName, &u.Username); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// RecentEntries выбирает события из interactions.
// Ordered=true требует индекса по timestamp; без него вызывающий повторяет запрос без сортировки.
func (s *Store) RecentEntries(ctx context.Context, q repository.EntryQuery) ([]domain.LogEntry, error) {
	const op = "postgres.RecentEntries"

	var (
		where []string
		args  []any
	)
	if q.GuildID != "" {
		args = append(args, q.GuildID)
		where = append(where, fmt.Sprintf("guild_id = $%d", len(args)))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !q.Until.IsZero() {
		args = append(args, q.Until)
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := `SELECT id, type, user_id, username, guild_id, guild_name, channel_id, channel_name,
	                 content, timestamp, metadata, keywords
	          FROM interactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Ordered {
		query += " ORDER BY timestamp DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultEntryLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	out := make([]domain.LogEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, e.Normalize(now))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func scanEntry(row pgx.Row) (domain.LogEntry, error) {
	var (
		e           domain.LogEntry
		kind        *string
		userID      *string
		username    *string
		guildID     *string
		guildName   *string
		channelID   *string
		channelName *string
		content     *string
		occurredAt  *time.Time
		metadata    []byte
		keywords    []string
	)
	if err := row.Scan(&e.ID, &kind, &userID, &username, &guildID, &guildName,
		&channelID, &channelName, &content, &occurredAt, &metadata, &keywords); err != nil {
		return e, err
	}

	// Неполные строки допустимы: пустые поля заполняются в Normalize
	e.Kind = domain.EntryKind(deref(kind))
	e.UserID = deref(userID)
	e.DisplayNameHint = deref(username)
	e.GuildID = deref(guildID)
	e.GuildName = deref(guildName)
	e.ChannelID = deref(channelID)
	e.ChannelName = deref(channelName)
	e.Content = deref(content)
	if occurredAt != nil {
		e.OccurredAt = *occurredAt
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return e, fmt.Errorf("decode metadata of %s: %w", e.ID, err)
		}
	}
	e.Keywords = keywords
	return e, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
