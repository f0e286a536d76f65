package identity

import (
	"context"

	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FallbackReporter получает сведения о деградации к синтетическим именам.
// Реализует engine.Metrics.
type FallbackReporter interface {
	IdentityFallback(count int, cause error)
}

type nopReporter struct{}

func (nopReporter) IdentityFallback(int, error) {}

// Resolver сопоставляет userId с отображаемым именем пачками по MaxInValues.
type Resolver struct {
	dir         repository.UserDirectory
	logger      *zap.Logger
	reporter    FallbackReporter
	batchSize   int
	parallelism int
}

type Option func(*Resolver)

func WithReporter(r FallbackReporter) Option {
	return func(res *Resolver) {
		if r != nil {
			res.reporter = r
		}
	}
}

// WithParallelism ограничивает число одновременных запросов к хранилищу.
func WithParallelism(n int) Option {
	return func(res *Resolver) {
		if n > 0 {
			res.parallelism = n
		}
	}
}

func NewResolver(dir repository.UserDirectory, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		dir:         dir,
		logger:      logger.Named("resolver"),
		reporter:    nopReporter{},
		batchSize:   repository.MaxInValues,
		parallelism: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve никогда не возвращает ошибку: каждый входной id присутствует в результате,
// либо с реальным именем, либо с именем User_<8 символов>.
func (r *Resolver) Resolve(ctx context.Context, userIDs []string) map[string]string {
	ids := dedupe(userIDs)
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}

	batches := chunk(ids, r.batchSize)
	found := make([][]domain.UserRecord, len(batches))

	// Пачки независимы друг от друга: отказ одной не влияет на остальные
	g := new(errgroup.Group)
	g.SetLimit(r.parallelism)
	for i, batch := range batches {
		g.Go(func() error {
			records, err := r.dir.FindUsersByIDs(ctx, batch)
			if err != nil {
				r.logger.Warn("identity batch lookup failed, using fallback names",
					zap.Int("batch", i),
					zap.Int("size", len(batch)),
					zap.Error(err),
				)
				r.reporter.IdentityFallback(len(batch), err)
				return nil
			}
			found[i] = records
			return nil
		})
	}
	_ = g.Wait()

	for _, records := range found {
		for _, rec := range records {
			names[rec.UserID] = rec.Name()
		}
	}

	missing := 0
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			names[id] = domain.FallbackName(id)
			missing++
		}
	}
	if missing > 0 {
		r.logger.Debug("identities resolved with fallback", zap.Int("total", len(ids)), zap.Int("fallback", missing))
	}
	return names
}

// ResolveOne — удобная обертка для реактивного пути с единственным автором.
func (r *Resolver) ResolveOne(ctx context.Context, userID string) string {
	return r.Resolve(ctx, []string{userID})[userID]
}

// dedupe сохраняет порядок первого появления
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunk(ids []string, size int) [][]string {
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
