package shortener

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sundayezeilo/linkkeeper/internal/cache"
	"github.com/sundayezeilo/linkkeeper/internal/errx"
	"github.com/sundayezeilo/linkkeeper/internal/metrics"
)

const (
	DefaultCacheTTL        = time.Hour
	DefaultUnusedThreshold = 30 * 24 * time.Hour
)

type repository struct {
	store           Store
	cache           cache.Cache
	logger          *slog.Logger
	cacheTTL        time.Duration
	unusedThreshold time.Duration
	now             func() time.Time
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	Cache           cache.Cache // default: cache.Nop
	Logger          *slog.Logger
	CacheTTL        time.Duration // TTL for links without an expiry (default: 1h)
	UnusedThreshold time.Duration // idle time before a link counts as unused (default: 30 days)
	Clock           func() time.Time
}

// NewRepository returns a cache-then-store Repository.
func NewRepository(store Store, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	r := &repository{
		store:           store,
		cache:           config.Cache,
		logger:          config.Logger,
		cacheTTL:        config.CacheTTL,
		unusedThreshold: config.UnusedThreshold,
		now:             config.Clock,
	}
	if r.cache == nil {
		r.cache = cache.Nop{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = DefaultCacheTTL
	}
	if r.unusedThreshold <= 0 {
		r.unusedThreshold = DefaultUnusedThreshold
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r
}

func (r *repository) GetLink(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repository.GetLink"

	if link, ok := r.getFromCache(ctx, code); ok {
		return link, nil
	}

	link, err := r.store.Get(ctx, code)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	// not yet swept, but already past its expiry
	if link.Expired(r.now()) {
		return Link{}, errx.E(op, errx.NotFound, ErrLinkNotFound)
	}

	r.setToCache(ctx, link)
	return link, nil
}

func (r *repository) CodeTaken(ctx context.Context, code string) (bool, error) {
	const op = "shortener.repository.CodeTaken"

	if _, ok := r.getFromCache(ctx, code); ok {
		return true, nil
	}
	taken, err := r.store.Exists(ctx, code)
	if err != nil {
		return false, errx.Wrap(op, err)
	}
	return taken, nil
}

func (r *repository) CreateLink(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repository.CreateLink"

	now := r.now()
	link.CreatedAt = now
	link.UpdatedAt = now
	link.Clicks = 0
	link.LastUsedAt = nil
	link.IsActive = true

	created, err := r.store.Insert(ctx, link)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}

	r.setToCache(ctx, created)
	return created, nil
}

func (r *repository) UpdateLink(ctx context.Context, code string, upd LinkUpdate, updatedBy string) (Link, error) {
	const op = "shortener.repository.UpdateLink"

	if updatedBy == "" {
		return Link{}, errx.E(op, errx.Forbidden, ErrNotOwner)
	}

	now := r.now()
	updated, err := r.store.Update(ctx, code, func(current Link) (Link, error) {
		if !current.OwnedBy(updatedBy) {
			return Link{}, errx.E(op, errx.Forbidden, ErrNotOwner)
		}
		return upd.apply(current, now), nil
	})
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}

	r.setToCache(ctx, updated)
	return updated, nil
}

func (r *repository) DeleteLink(ctx context.Context, code string, deletedBy string) (bool, error) {
	const op = "shortener.repository.DeleteLink"

	if deletedBy == "" {
		return false, errx.E(op, errx.Forbidden, ErrNotOwner)
	}

	deleted, err := r.store.Delete(ctx, code, func(current Link) error {
		if !current.OwnedBy(deletedBy) {
			return errx.E(op, errx.Forbidden, ErrNotOwner)
		}
		return nil
	})
	if err != nil {
		return false, errx.Wrap(op, err)
	}

	if deleted {
		r.Evict(ctx, code)
	}
	return deleted, nil
}

// RecordClick is a no-op when the link vanished or was deactivated after lookup.
func (r *repository) RecordClick(ctx context.Context, code string) error {
	const op = "shortener.repository.RecordClick"

	link, found, err := r.store.IncrementClicks(ctx, code, r.now())
	if err != nil {
		return errx.Wrap(op, err)
	}
	if !found {
		return nil
	}

	if _, err := r.cache.Get(ctx, code); err == nil {
		r.setToCache(ctx, link)
	}
	return nil
}

func (r *repository) GetLinkStats(ctx context.Context, code string, requestedBy string) (Link, error) {
	const op = "shortener.repository.GetLinkStats"

	if requestedBy == "" {
		return Link{}, errx.E(op, errx.Forbidden, ErrNotOwner)
	}

	link, err := r.GetLink(ctx, code)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	if !link.OwnedBy(requestedBy) {
		return Link{}, errx.E(op, errx.Forbidden, ErrNotOwner)
	}
	return link, nil
}

func (r *repository) SearchByOriginalURL(ctx context.Context, originalURL string) ([]Link, error) {
	const op = "shortener.repository.SearchByOriginalURL"

	links, err := r.store.FindByOriginalURL(ctx, originalURL)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return links, nil
}

func (r *repository) ListExpired(ctx context.Context) ([]Link, error) {
	const op = "shortener.repository.ListExpired"

	links, err := r.store.ListInactive(ctx)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return links, nil
}

func (r *repository) CheckExpiredLinks(ctx context.Context) ([]string, error) {
	return r.Deactivate(ctx, ExpiredRule())
}

func (r *repository) CheckUnusedLinks(ctx context.Context) ([]string, error) {
	return r.Deactivate(ctx, UnusedRule(r.unusedThreshold))
}

// Deactivate flips every active link matching rule. Evicting the returned
// codes from the cache is left to the caller.
func (r *repository) Deactivate(ctx context.Context, rule Rule) ([]string, error) {
	const op = "shortener.repository.Deactivate"

	codes, err := r.store.Deactivate(ctx, rule, r.now())
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return codes, nil
}

// Evict drops cache entries. Failures are logged; the store stays authoritative.
func (r *repository) Evict(ctx context.Context, codes ...string) {
	if len(codes) == 0 {
		return
	}
	if err := r.cache.Delete(ctx, codes...); err != nil {
		r.logger.WarnContext(ctx, "cache eviction failed",
			"short_codes", codes,
			"error", err,
		)
	}
}

func (r *repository) getFromCache(ctx context.Context, code string) (Link, bool) {
	raw, err := r.cache.Get(ctx, code)
	if errors.Is(err, cache.ErrMiss) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return Link{}, false
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		r.logger.WarnContext(ctx, "cache read failed, falling back to store",
			"short_code", code,
			"error", err,
		)
		return Link{}, false
	}

	link, err := decodeLink(code, raw)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("corrupt").Inc()
		r.logger.WarnContext(ctx, "discarding corrupt cache entry",
			"short_code", code,
			"error", err,
		)
		r.Evict(ctx, code)
		return Link{}, false
	}

	if !link.IsActive || link.Expired(r.now()) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		r.Evict(ctx, code)
		return Link{}, false
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return link, true
}

// setToCache stores link with a TTL bounded by its expiry, or the default TTL
// when it has none. A link already past expiry is evicted instead.
func (r *repository) setToCache(ctx context.Context, link Link) {
	ttl := r.cacheTTL
	if link.ExpiresAt != nil {
		ttl = link.ExpiresAt.Sub(r.now())
	}
	if ttl <= 0 || !link.IsActive {
		r.Evict(ctx, link.ShortCode)
		return
	}

	raw, err := encodeLink(link)
	if err != nil {
		r.logger.WarnContext(ctx, "cache encode failed", "short_code", link.ShortCode, "error", err)
		return
	}
	if err := r.cache.Set(ctx, link.ShortCode, raw, ttl); err != nil {
		r.logger.WarnContext(ctx, "cache write failed",
			"short_code", link.ShortCode,
			"error", err,
		)
	}
}
