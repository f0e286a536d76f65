package postgres

/*
Очередь алертов модерации: пакетная вставка от журнала алертов
и переходы статусов, которые выполняет модератор из консоли.
*/

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/guildpulse/internal/domain"
)

const alertColumns = `id, type, severity, user_id, username, guild_id, guild_name, channel_id, channel_name,
	content, matched_words, detected_at, status, auto_detected, reviewer_id, comment, updated_at`

// SaveAlerts вставляет пачку алертов одним запросом.
func (s *Store) SaveAlerts(ctx context.Context, alerts []domain.ModerationAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	// Количество колонок, которые пишет вставка
	const numFields = 14
	placeholders := make([]string, 0, len(alerts))
	vals := make([]any, 0, len(alerts)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, a := range alerts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Status == "" {
			a.Status = domain.AlertPending
		}
		p := i * numFields
		ph := make([]string, numFields)
		for k := range ph {
			ph[k] = fmt.Sprintf("$%d", p+k+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		vals = append(vals,
			a.ID, a.Type, string(a.Severity), a.UserID, a.Username, a.GuildID, a.GuildName,
			a.ChannelID, a.ChannelName, a.Content, nonNil(a.MatchedWords), a.DetectedAt,
			string(a.Status), a.AutoDetected,
		)
	}

	query := fmt.Sprintf(`INSERT INTO moderation_alerts
		(id, type, severity, user_id, username, guild_id, guild_name, channel_id, channel_name,
		 content, matched_words, detected_at, status, auto_detected)
		VALUES %s ON CONFLICT (id) DO NOTHING`, strings.Join(placeholders, ", "))

	_, err := s.pool.Exec(ctx, query, vals...)
	return classify("postgres.SaveAlerts", err)
}

func (s *Store) GetAlert(ctx context.Context, id string) (*domain.ModerationAlert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM moderation_alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, classify("postgres.GetAlert", err)
	}
	return &a, nil
}

// ListAlerts — очередь решений, новые первыми.
func (s *Store) ListAlerts(ctx context.Context, status domain.AlertStatus, limit int) ([]domain.ModerationAlert, error) {
	const op = "postgres.ListAlerts"

	query := `SELECT ` + alertColumns + ` FROM moderation_alerts`
	var args []any
	if status != "" {
		args = append(args, string(status))
		query += " WHERE status = $1"
	}
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY detected_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	// Пустой слайс, чтобы в JSON был [] вместо null
	results := make([]domain.ModerationAlert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return results, nil
}

// UpdateAlertStatus атомарно переводит алерт из pending.
// Если строка не обновилась, перечитываем алерт, чтобы отличить "не найден" от "уже обработан".
func (s *Store) UpdateAlertStatus(ctx context.Context, id string, status domain.AlertStatus, reviewerID, comment string) (*domain.ModerationAlert, error) {
	const op = "postgres.UpdateAlertStatus"

	pending := domain.ModerationAlert{Status: domain.AlertPending}
	if err := pending.CanTransitionTo(status); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE moderation_alerts
		SET status = $1, reviewer_id = $2, comment = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'pending'
		RETURNING `+alertColumns,
		string(status), reviewerID, comment, id)

	a, err := scanAlert(row)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify(op, err)
	}

	current, getErr := s.GetAlert(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, current.CanTransitionTo(status)
}

func (s *Store) CountPendingBySeverity(ctx context.Context) (map[domain.Severity]int, error) {
	const op = "postgres.CountPendingBySeverity"
	rows, err := s.pool.Query(ctx,
		`SELECT severity, COUNT(*) FROM moderation_alerts WHERE status = 'pending' GROUP BY severity`)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	out := make(map[domain.Severity]int)
	for rows.Next() {
		var (
			sev   string
			count int
		)
		if err := rows.Scan(&sev, &count); err != nil {
			return nil, classify(op, err)
		}
		out[domain.Severity(sev)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func scanAlert(row pgx.Row) (domain.ModerationAlert, error) {
	var (
		a        domain.ModerationAlert
		severity string
		status   string
	)
	err := row.Scan(
		&a.ID, &a.Type, &severity, &a.UserID, &a.Username, &a.GuildID, &a.GuildName,
		&a.ChannelID, &a.ChannelName, &a.Content, &a.MatchedWords, &a.DetectedAt,
		&status, &a.AutoDetected,
		&a.ReviewerID, &a.Comment, &a.UpdatedAt, // NULL -> nil
	)
	a.Severity = domain.Severity(severity)
	a.Status = domain.AlertStatus(status)
	return a, err
}
