package identity

import (
	"context"
	"sync"
	"time"

	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 10 * time.Minute

type cachedUser struct {
	rec       domain.UserRecord
	expiresAt time.Time
}

// CachedDirectory — in-memory кэш записей пользователей поверх UserDirectory.
// Кэшируются только найденные записи: отсутствующий пользователь каждый раз идет в хранилище.
type CachedDirectory struct {
	mu    sync.RWMutex
	users map[string]cachedUser

	next   repository.UserDirectory
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

var _ repository.UserDirectory = (*CachedDirectory)(nil)

func NewCachedDirectory(next repository.UserDirectory, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedDirectory{
		users:  make(map[string]cachedUser),
		next:   next,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Named("directory-cache"),
	}
}

// FindUsersByIDs отдает записи из памяти, промахи дозапрашивает одним вызовом.
// Ошибка хранилища возвращается как есть: частичный ответ не отдаем.
func (c *CachedDirectory) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.UserRecord, error) {
	now := c.now()
	out := make([]domain.UserRecord, 0, len(ids))
	var misses []string

	c.mu.RLock()
	for _, id := range ids {
		if u, ok := c.users[id]; ok && now.Before(u.expiresAt) {
			out = append(out, u.rec)
			continue
		}
		misses = append(misses, id)
	}
	c.mu.RUnlock()

	if len(misses) == 0 {
		return out, nil
	}

	found, err := c.next.FindUsersByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, u := range found {
		c.users[u.UserID] = cachedUser{rec: u, expiresAt: now.Add(c.ttl)}
	}
	c.mu.Unlock()

	c.logger.Debug("directory cache fill", zap.Int("hits", len(out)), zap.Int("misses", len(misses)))
	return append(out, found...), nil
}

// Purge сбрасывает кэш целиком (например, после массового переименования).
func (c *CachedDirectory) Purge() {
	c.mu.Lock()
	c.users = make(map[string]cachedUser)
	c.mu.Unlock()
}
