package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
)

// Store — in-memory реализация repository.Store для локальной разработки и тестов.
// Записи анализа хранятся в сериализованном виде, как в документном хранилище.
type Store struct {
	mu         sync.RWMutex
	users      map[string]domain.UserRecord
	entries    []domain.LogEntry
	analyses   map[string][]byte
	alerts     map[string]domain.ModerationAlert
	alertOrder []string
	moderators map[string]domain.Moderator
	botActions []domain.BotAction

	noOrdering bool
	now        func() time.Time
}

type Option func(*Store)

// WithOrderingUnsupported эмулирует отсутствующий индекс по timestamp.
func WithOrderingUnsupported() Option {
	return func(s *Store) { s.noOrdering = true }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		users:      make(map[string]domain.UserRecord),
		analyses:   make(map[string][]byte),
		alerts:     make(map[string]domain.ModerationAlert),
		moderators: make(map[string]domain.Moderator),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutUsers добавляет или заменяет профили участников.
func (s *Store) PutUsers(users ...domain.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.UserID] = u
	}
}

// AppendEntries дописывает события в коллекцию.
func (s *Store) AppendEntries(entries ...domain.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		s.entries = append(s.entries, e)
	}
}

func (s *Store) PutModerator(m domain.Moderator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moderators[m.Username] = m
}

// AppendBotActions добавляет действия бота в историю.
func (s *Store) AppendBotActions(actions ...domain.BotAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		s.botActions = append(s.botActions, a)
	}
}

func (s *Store) ListBotActions(ctx context.Context, q repository.BotActionQuery) ([]domain.BotAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.Transport("memory.ListBotActions", err)
	}

	s.mu.RLock()
	out := make([]domain.BotAction, 0, len(s.botActions))
	for _, a := range s.botActions {
		switch {
		case q.GuildID != "" && a.GuildID != q.GuildID,
			q.ActionType != "" && a.ActionType != q.ActionType,
			q.Status != "" && a.Status != q.Status,
			q.UserID != "" && a.UserID != q.UserID,
			!q.Since.IsZero() && a.Timestamp.Before(q.Since),
			!q.Until.IsZero() && a.Timestamp.After(q.Until):
			continue
		}
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.UserRecord, error) {
	if len(ids) > repository.MaxInValues {
		return nil, repository.Unsupported("memory.FindUsersByIDs",
			fmt.Errorf("%d values exceed limit %d", len(ids), repository.MaxInValues))
	}
	if err := ctx.Err(); err != nil {
		return nil, repository.Transport("memory.FindUsersByIDs", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserRecord, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) RecentEntries(ctx context.Context, q repository.EntryQuery) ([]domain.LogEntry, error) {
	if q.Ordered && s.noOrdering {
		return nil, repository.Unsupported("memory.RecentEntries", fmt.Errorf("no index on timestamp"))
	}
	if err := ctx.Err(); err != nil {
		return nil, repository.Transport("memory.RecentEntries", err)
	}

	s.mu.RLock()
	out := make([]domain.LogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if q.GuildID != "" && e.GuildID != q.GuildID {
			continue
		}
		if !q.Since.IsZero() && e.OccurredAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && e.OccurredAt.After(q.Until) {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	if q.Ordered {
		sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	now := s.now()
	for i := range out {
		out[i] = out[i].Normalize(now)
	}
	return out, nil
}

func (s *Store) SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) (domain.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return rec, repository.Transport("memory.SaveAnalysis", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = s.now()

	raw, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("memory: encode analysis: %w", err)
	}

	s.mu.Lock()
	s.analyses[rec.ID] = raw
	s.mu.Unlock()
	return rec, nil
}

func (s *Store) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	s.mu.RLock()
	raw, ok := s.analyses[id]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	var rec domain.AnalysisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("memory: decode analysis: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListAnalyses(ctx context.Context, q repository.HistoryQuery) ([]domain.AnalysisRecord, error) {
	s.mu.RLock()
	raws := make([][]byte, 0, len(s.analyses))
	for _, raw := range s.analyses {
		raws = append(raws, raw)
	}
	s.mu.RUnlock()

	out := make([]domain.AnalysisRecord, 0, len(raws))
	for _, raw := range raws {
		var rec domain.AnalysisRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("memory: decode analysis: %w", err)
		}
		if q.GuildID != "" && !slices.Contains(rec.GuildIDs, q.GuildID) {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AnalysisDate.After(out[j].AnalysisDate) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) SaveAlerts(ctx context.Context, alerts []domain.ModerationAlert) error {
	if err := ctx.Err(); err != nil {
		return repository.Transport("memory.SaveAlerts", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alerts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if _, exists := s.alerts[a.ID]; !exists {
			s.alertOrder = append(s.alertOrder, a.ID)
		}
		s.alerts[a.ID] = a
	}
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id string) (*domain.ModerationAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrAlertNotFound
	}
	return &a, nil
}

// ListAlerts отдает алерты новыми первыми; пустой статус — все.
func (s *Store) ListAlerts(ctx context.Context, status domain.AlertStatus, limit int) ([]domain.ModerationAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ModerationAlert, 0)
	for i := len(s.alertOrder) - 1; i >= 0; i-- {
		a := s.alerts[s.alertOrder[i]]
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UpdateAlertStatus(ctx context.Context, id string, status domain.AlertStatus, reviewerID, comment string) (*domain.ModerationAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrAlertNotFound
	}
	if err := a.CanTransitionTo(status); err != nil {
		return nil, err
	}

	now := s.now()
	a.Status = status
	a.ReviewerID = &reviewerID
	a.Comment = &comment
	a.UpdatedAt = &now
	s.alerts[id] = a
	return &a, nil
}

func (s *Store) CountPendingBySeverity(ctx context.Context) (map[domain.Severity]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.Severity]int)
	for _, a := range s.alerts {
		if a.Status == domain.AlertPending {
			out[a.Severity]++
		}
	}
	return out, nil
}

func (s *Store) GetModeratorByUsername(ctx context.Context, username string) (*domain.Moderator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.moderators[username]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) Close() {}
