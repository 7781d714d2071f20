package shortener

import "context"

// Repository owns link persistence and keeps the cache coherent with the store.
// Reads go cache-first; writes go to the store and then refresh or evict the
// cache entry. Ownership is enforced here, before any mutation.
type Repository interface {
	GetLink(ctx context.Context, code string) (Link, error)
	CodeTaken(ctx context.Context, code string) (bool, error)
	CreateLink(ctx context.Context, link Link) (Link, error)
	UpdateLink(ctx context.Context, code string, upd LinkUpdate, updatedBy string) (Link, error)
	DeleteLink(ctx context.Context, code string, deletedBy string) (bool, error)
	RecordClick(ctx context.Context, code string) error
	GetLinkStats(ctx context.Context, code string, requestedBy string) (Link, error)
	SearchByOriginalURL(ctx context.Context, originalURL string) ([]Link, error)
	ListExpired(ctx context.Context) ([]Link, error)
	CheckExpiredLinks(ctx context.Context) ([]string, error)
	CheckUnusedLinks(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, rule Rule) ([]string, error)
	Evict(ctx context.Context, codes ...string)
}
