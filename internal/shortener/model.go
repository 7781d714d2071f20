package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link is a short code registered against an original URL.
// The same struct flows through the store, the cache and the service.
type Link struct {
	ID          uuid.UUID
	ShortCode   string
	OriginalURL string
	CreatedBy   *string // nil for anonymous links
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
	Clicks      int64
	IsActive    bool
}

// Expired reports whether the link has an expiry at or before now.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// OwnedBy reports whether principal owns the link. Anonymous links have no
// owner, so the check fails for everyone, and an empty principal never owns anything.
func (l Link) OwnedBy(principal string) bool {
	return principal != "" && l.CreatedBy != nil && *l.CreatedBy == principal
}

// LinkUpdate carries the optional fields of an edit. ClearExpiresAt removes
// the expiry; it must not be combined with ExpiresAt.
type LinkUpdate struct {
	OriginalURL    *string
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}

// apply returns l with the update applied at now. Clicks restart from zero so
// they count traversals of the current destination only.
func (u LinkUpdate) apply(l Link, now time.Time) Link {
	if u.OriginalURL != nil {
		l.OriginalURL = *u.OriginalURL
	}
	switch {
	case u.ClearExpiresAt:
		l.ExpiresAt = nil
	case u.ExpiresAt != nil:
		exp := *u.ExpiresAt
		l.ExpiresAt = &exp
	}
	l.Clicks = 0
	l.UpdatedAt = now
	return l
}

func ptr[T any](v T) *T { return &v }
