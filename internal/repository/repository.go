package repository

/*
Контракты хранилища записей. Ядро анализа знает только эти интерфейсы:
Postgres (прод) и in-memory (локальная разработка, тесты) взаимозаменяемы.
*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/guildpulse/internal/domain"
)

// MaxInValues — предел значений в одном запросе на равенство по нескольким значениям.
const MaxInValues = 10

var (
	// ErrQueryUnsupported — запрос не поддерживается (нет индекса, таблицы или колонки).
	ErrQueryUnsupported = errors.New("query unsupported or index missing")
	// ErrTransport — сеть, таймаут, недоступность сервера.
	ErrTransport = errors.New("store transport failure")
	ErrNotFound  = errors.New("record not found")
)

// StoreError несет операцию и класс ошибки (Kind) поверх исходной причины.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Unsupported(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrQueryUnsupported, Err: err}
}

func Transport(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrTransport, Err: err}
}

// UserDirectory — точечный поиск профилей, не более MaxInValues идентификаторов за вызов.
type UserDirectory interface {
	FindUsersByIDs(ctx context.Context, ids []string) ([]domain.UserRecord, error)
}

// EntryQuery описывает выборку из коллекции событий.
type EntryQuery struct {
	Limit   int
	Ordered bool // true — сортировка по времени, новые первыми (требует индекса)
	GuildID string
	Since   time.Time
	Until   time.Time
}

// EntrySource отдает ограниченный снимок событий.
type EntrySource interface {
	RecentEntries(ctx context.Context, q EntryQuery) ([]domain.LogEntry, error)
}

type HistoryQuery struct {
	Limit   int
	GuildID string // фильтр "guildIds содержит"
}

// AnalysisStore хранит результаты прогонов. SaveAnalysis пишет запись целиком или не пишет ничего.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) (domain.AnalysisRecord, error)
	GetAnalysis(ctx context.Context, id string) (*domain.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, q HistoryQuery) ([]domain.AnalysisRecord, error)
}

type AlertStore interface {
	SaveAlerts(ctx context.Context, alerts []domain.ModerationAlert) error
	GetAlert(ctx context.Context, id string) (*domain.ModerationAlert, error)
	ListAlerts(ctx context.Context, status domain.AlertStatus, limit int) ([]domain.ModerationAlert, error)
	// UpdateAlertStatus меняет статус только у алерта в статусе pending.
	UpdateAlertStatus(ctx context.Context, id string, status domain.AlertStatus, reviewerID, comment string) (*domain.ModerationAlert, error)
	CountPendingBySeverity(ctx context.Context) (map[domain.Severity]int, error)
}

// BotActionQuery — фильтры истории действий бота, все необязательные.
type BotActionQuery struct {
	Limit      int
	GuildID    string
	ActionType string
	Status     string
	UserID     string
	Since      time.Time
	Until      time.Time
}

// BotActionStore отдает действия бота, новые первыми.
type BotActionStore interface {
	ListBotActions(ctx context.Context, q BotActionQuery) ([]domain.BotAction, error)
}

type ModeratorStore interface {
	GetModeratorByUsername(ctx context.Context, username string) (*domain.Moderator, error)
}

// Store — полный набор коллекций, который умеет каждая реализация.
type Store interface {
	UserDirectory
	EntrySource
	AnalysisStore
	AlertStore
	BotActionStore
	ModeratorStore
	Close()
}
