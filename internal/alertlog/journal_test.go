package alertlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository/memory"
	"go.uber.org/zap"
)

type recordingStorage struct {
	mu      sync.Mutex
	batches [][]domain.ModerationAlert
	err     error
}

func (r *recordingStorage) SaveAlerts(_ context.Context, alerts []domain.ModerationAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]domain.ModerationAlert(nil), alerts...))
	return r.err
}

func (r *recordingStorage) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func alert(i int) domain.ModerationAlert {
	return domain.ModerationAlert{ID: fmt.Sprintf("a%d", i), Status: domain.AlertPending, Severity: domain.SeverityMedium}
}

func TestJournalFlushesOnBatchSizeAndStop(t *testing.T) {
	repo := &recordingStorage{}
	j := NewJournal(repo, Config{BatchSize: 10, FlushInterval: time.Hour}, nil, zap.NewNop())
	j.Start()

	for i := range 25 {
		j.Submit(alert(i))
	}
	j.Stop()

	assert.Equal(t, 25, repo.total())
	require.GreaterOrEqual(t, len(repo.batches), 3)
	assert.Len(t, repo.batches[0], 10)
}

func TestJournalFlushesOnTicker(t *testing.T) {
	repo := &recordingStorage{}
	j := NewJournal(repo, Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil, zap.NewNop())
	j.Start()
	defer j.Stop()

	j.Submit(alert(1))
	assert.Eventually(t, func() bool { return repo.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestJournalDropsAfterStop(t *testing.T) {
	repo := &recordingStorage{}
	j := NewJournal(repo, Config{}, nil, zap.NewNop())
	j.Start()
	j.Stop()
	j.Stop() // повторный вызов безопасен

	j.Submit(alert(1))
	assert.Equal(t, 0, repo.total())
}

func TestJournalSurvivesStorageErrors(t *testing.T) {
	repo := &recordingStorage{err: errors.New("db down")}
	j := NewJournal(repo, Config{BatchSize: 1}, nil, zap.NewNop())
	j.Start()

	j.Submit(alert(1))
	j.Submit(alert(2))
	j.Stop()

	assert.Equal(t, 2, repo.total())
}

func TestJournalWritesToStore(t *testing.T) {
	store := memory.New()
	j := NewJournal(store, Config{}, nil, zap.NewNop())
	j.Start()

	j.Submit(alert(1))
	j.Stop()

	got, err := store.GetAlert(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertPending, got.Status)
	assert.False(t, got.DetectedAt.IsZero())
}
