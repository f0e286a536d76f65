package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/guildpulse/internal/domain"
	"go.uber.org/zap"
)

type countingDirectory struct {
	users map[string]domain.UserRecord
	calls [][]string
	err   error
}

func (d *countingDirectory) FindUsersByIDs(_ context.Context, ids []string) ([]domain.UserRecord, error) {
	d.calls = append(d.calls, append([]string(nil), ids...))
	if d.err != nil {
		return nil, d.err
	}
	var out []domain.UserRecord
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestCachedDirectory(t *testing.T) {
	dir := &countingDirectory{users: map[string]domain.UserRecord{
		"u1": {UserID: "u1", DisplayName: "さくら"},
		"u2": {UserID: "u2", Username: "taro"},
	}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCachedDirectory(dir, time.Minute, zap.NewNop())
	c.now = func() time.Time { return now }

	got, err := c.FindUsersByIDs(context.Background(), []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Второй вызов: u1 и u2 из кэша, ghost снова в хранилище
	got, err = c.FindUsersByIDs(context.Background(), []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, dir.calls, 2)
	assert.Equal(t, []string{"ghost"}, dir.calls[1])

	// Просроченные записи запрашиваются заново
	now = now.Add(2 * time.Minute)
	_, err = c.FindUsersByIDs(context.Background(), []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, dir.calls[2])

	c.Purge()
	_, err = c.FindUsersByIDs(context.Background(), []string{"u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, dir.calls[3])
}

func TestCachedDirectoryPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	c := NewCachedDirectory(&countingDirectory{err: boom}, 0, zap.NewNop())

	_, err := c.FindUsersByIDs(context.Background(), []string{"u1"})
	assert.ErrorIs(t, err, boom)
}
