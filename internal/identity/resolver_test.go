package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository/memory"
	"go.uber.org/zap"
)

// fakeDirectory записывает размеры запросов и валит пачку, содержащую failOn.
type fakeDirectory struct {
	mu     sync.Mutex
	sizes  []int
	failOn string
	users  map[string]domain.UserRecord
}

func (f *fakeDirectory) FindUsersByIDs(_ context.Context, ids []string) ([]domain.UserRecord, error) {
	f.mu.Lock()
	f.sizes = append(f.sizes, len(ids))
	f.mu.Unlock()

	out := make([]domain.UserRecord, 0, len(ids))
	for _, id := range ids {
		if id == f.failOn {
			return nil, errors.New("backend unavailable")
		}
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type countingReporter struct {
	mu    sync.Mutex
	total int
}

func (c *countingReporter) IdentityFallback(n int, _ error) {
	c.mu.Lock()
	c.total += n
	c.mu.Unlock()
}

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%03d-abcdef", i)
	}
	return ids
}

func TestResolveBatchesAndSurvivesFailedBatch(t *testing.T) {
	ids := makeIDs(25)
	users := make(map[string]domain.UserRecord)
	for _, id := range ids {
		users[id] = domain.UserRecord{UserID: id, DisplayName: "name-" + id}
	}
	dir := &fakeDirectory{users: users, failOn: ids[12]} // вторая пачка
	rep := &countingReporter{}

	r := NewResolver(dir, zap.NewNop(), WithReporter(rep))
	names := r.Resolve(context.Background(), ids)

	sizes := append([]int(nil), dir.sizes...)
	sort.Ints(sizes)
	assert.Equal(t, []int{5, 10, 10}, sizes)

	require.Len(t, names, 25)
	for i, id := range ids {
		if i >= 10 && i < 20 {
			assert.Equal(t, domain.FallbackName(id), names[id])
		} else {
			assert.Equal(t, "name-"+id, names[id])
		}
	}
	assert.Equal(t, 10, rep.total)
}

func TestResolveDeduplicates(t *testing.T) {
	dir := &fakeDirectory{users: map[string]domain.UserRecord{}}
	r := NewResolver(dir, zap.NewNop())

	names := r.Resolve(context.Background(), []string{"a", "b", "a", "b", "a"})
	assert.Len(t, names, 2)
	assert.Equal(t, []int{2}, dir.sizes)
}

func TestResolveNamePrecedence(t *testing.T) {
	store := memory.New()
	store.PutUsers(
		domain.UserRecord{UserID: "1", DisplayName: "Display", Username: "user"},
		domain.UserRecord{UserID: "2", Username: "only-username"},
		domain.UserRecord{UserID: "3333333333333"},
	)

	r := NewResolver(store, zap.NewNop())
	names := r.Resolve(context.Background(), []string{"1", "2", "3333333333333", "absent-user-id"})

	assert.Equal(t, "Display", names["1"])
	assert.Equal(t, "only-username", names["2"])
	assert.Equal(t, "User_33333333", names["3333333333333"])
	assert.Equal(t, "User_absent-u", names["absent-user-id"])
}

func TestResolveEmptyInput(t *testing.T) {
	dir := &fakeDirectory{}
	names := NewResolver(dir, zap.NewNop()).Resolve(context.Background(), nil)
	assert.Empty(t, names)
	assert.Empty(t, dir.sizes)
}

func TestResolveTotalOutage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := memory.New()
	store.PutUsers(domain.UserRecord{UserID: "u1", DisplayName: "Alice"})

	got := NewResolver(store, zap.NewNop()).ResolveOne(ctx, "u1")
	assert.Equal(t, "User_u1", got)
}
