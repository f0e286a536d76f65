package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/guildpulse/internal/domain"
)

// GetModeratorByUsername ищет учетную запись консоли. Отсутствие записи — (nil, nil).
func (s *Store) GetModeratorByUsername(ctx context.Context, username string) (*domain.Moderator, error) {
	query := `SELECT id, username, password_hash, role, scopes, created_at FROM moderators WHERE username = $1`

	var (
		m      domain.Moderator
		scopes []byte
	)
	err := s.pool.QueryRow(ctx, query, username).Scan(
		&m.ID, &m.Username, &m.PasswordHash, &m.Role, &scopes, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("postgres.GetModeratorByUsername", err)
	}

	// Права хранятся как JSONB: {"analysis.run": true}
	if len(scopes) > 0 {
		if err := json.Unmarshal(scopes, &m.Scopes); err != nil {
			return nil, fmt.Errorf("postgres: decode scopes of %s: %w", m.Username, err)
		}
	}
	return &m, nil
}
