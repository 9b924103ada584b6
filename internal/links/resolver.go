package links

import (
	"context"
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"shortcut-service/internal/metrics"
	"shortcut-service/internal/shortener"
)

// DefaultCacheSize is the number of code to id entries a Resolver keeps.
const DefaultCacheSize = 10000

// Resolution is the result of a successful resolve.
type Resolution struct {
	Code   string
	Target string
	Visits int64
}

// Resolver turns short codes into targets and counts the visit.
//
// The code to id mapping never changes once assigned, so it is cached. Status
// is enforced by the store's conditional increment, which keeps retired codes
// unresolvable even when their id is cached.
type Resolver struct {
	store     Store
	generator *shortener.Generator
	logger    *slog.Logger

	index *lru.Cache[string, string]
	group singleflight.Group
}

// NewResolver returns a Resolver backed by store. generator is only used to
// reject malformed codes before any I/O.
func NewResolver(store Store, generator *shortener.Generator, cacheSize int, logger *slog.Logger) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	index, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		store:     store,
		generator: generator,
		logger:    logger,
		index:     index,
	}, nil
}

// Resolve returns the target of an active link and its visit count after
// counting this visit. Unknown, malformed and retired codes all return
// ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, code string) (*Resolution, error) {
	code = shortener.Normalize(code)
	if !r.generator.Valid(code) {
		metrics.Resolutions.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return nil, ErrNotFound
	}

	id, err := r.lookup(ctx, code)
	if err != nil {
		return nil, r.fail(code, err)
	}

	link, err := r.store.IncrementVisits(ctx, id)
	if err != nil {
		return nil, r.fail(code, err)
	}

	metrics.Resolutions.WithLabelValues(metrics.OutcomeOK).Inc()
	return &Resolution{
		Code:   link.Code,
		Target: link.Target,
		Visits: link.Visits,
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, code string) (string, error) {
	if id, ok := r.index.Get(code); ok {
		metrics.ResolverCache.WithLabelValues("hit").Inc()
		return id, nil
	}
	metrics.ResolverCache.WithLabelValues("miss").Inc()

	// The flight is shared, so it must outlive the caller that started it.
	// Each caller still stops waiting when its own ctx is done.
	flight := context.WithoutCancel(ctx)
	ch := r.group.DoChan(code, func() (interface{}, error) {
		link, err := r.store.FindByCode(flight, code)
		if err != nil {
			return nil, err
		}
		r.index.Add(code, link.ID)
		if !link.IsActive() {
			return nil, ErrNotFound
		}
		return link.ID, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Resolver) fail(code string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState) {
		metrics.Resolutions.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return ErrNotFound
	}
	metrics.Resolutions.WithLabelValues(metrics.OutcomeError).Inc()
	r.logger.Error("resolve failed", "code", code, "error", err)
	return err
}
