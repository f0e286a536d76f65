package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
)

const analysisColumns = `id, analysis, advice, log_count, analysis_date, guild_ids, channels, created_at`

// SaveAnalysis пишет запись одним INSERT: запись либо сохранена целиком, либо нет.
func (s *Store) SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) (domain.AnalysisRecord, error) {
	const op = "postgres.SaveAnalysis"
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return rec, fmt.Errorf("postgres: encode analysis: %w", err)
	}
	advice, err := json.Marshal(rec.Advice)
	if err != nil {
		return rec, fmt.Errorf("postgres: encode advice: %w", err)
	}

	// created_at проставляет сервер
	err = s.pool.QueryRow(ctx, `
		INSERT INTO analyses (id, analysis, advice, log_count, analysis_date, guild_ids, channels, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`,
		rec.ID, analysis, advice, rec.LogCount, rec.AnalysisDate, nonNil(rec.GuildIDs), nonNil(rec.Channels),
	).Scan(&rec.CreatedAt)
	if err != nil {
		return rec, classify(op, err)
	}
	return rec, nil
}

func (s *Store) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	const op = "postgres.GetAnalysis"
	row := s.pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)

	rec, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(op, err)
	}
	return &rec, nil
}

// ListAnalyses — история прогонов, новые первыми.
func (s *Store) ListAnalyses(ctx context.Context, q repository.HistoryQuery) ([]domain.AnalysisRecord, error) {
	const op = "postgres.ListAnalyses"

	query := `SELECT ` + analysisColumns + ` FROM analyses`
	var args []any
	if q.GuildID != "" {
		args = append(args, q.GuildID)
		query += " WHERE $1 = ANY(guild_ids)"
	}
	query += " ORDER BY analysis_date DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	results := make([]domain.AnalysisRecord, 0)
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return results, nil
}

func scanAnalysis(row pgx.Row) (domain.AnalysisRecord, error) {
	var (
		rec      domain.AnalysisRecord
		analysis []byte
		advice   []byte
	)
	if err := row.Scan(&rec.ID, &analysis, &advice, &rec.LogCount, &rec.AnalysisDate,
		&rec.GuildIDs, &rec.Channels, &rec.CreatedAt); err != nil {
		return rec, err
	}
	if err := json.Unmarshal(analysis, &rec.Analysis); err != nil {
		return rec, fmt.Errorf("decode analysis %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(advice, &rec.Advice); err != nil {
		return rec, fmt.Errorf("decode advice %s: %w", rec.ID, err)
	}
	return rec, nil
}

// nonNil — text[] NOT NULL не принимает nil-слайс
func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
