package shortener

import (
	"context"
	"time"
)

// Store is the durable source of truth for links. Every method is one unit of
// work: implementations acquire a connection, run inside a transaction where
// more than one statement is involved, and release before returning.
type Store interface {
	// Get returns the active link for code, or an errx.NotFound error.
	Get(ctx context.Context, code string) (Link, error)
	// Exists reports whether any record, active or not, holds code.
	Exists(ctx context.Context, code string) (bool, error)
	// Insert stores a new active link. A taken code is an errx.Conflict error.
	Insert(ctx context.Context, link Link) (Link, error)
	// Update locks the active link for code, hands it to mutate and persists
	// the result. An error from mutate aborts the transaction with no write.
	Update(ctx context.Context, code string, mutate func(Link) (Link, error)) (Link, error)
	// Delete locks the link for code, active or not, and removes it if
	// authorize allows. It returns false when no such link exists.
	Delete(ctx context.Context, code string, authorize func(Link) error) (bool, error)
	// IncrementClicks bumps clicks and stamps last_used_at on the active link.
	// found is false when there is no active link for code.
	IncrementClicks(ctx context.Context, code string, at time.Time) (link Link, found bool, err error)
	// FindByOriginalURL returns active links whose original URL matches exactly.
	FindByOriginalURL(ctx context.Context, originalURL string) ([]Link, error)
	// ListInactive returns every deactivated link.
	ListInactive(ctx context.Context) ([]Link, error)
	// Deactivate flips every active link matching rule to inactive in one
	// statement and returns the affected codes.
	Deactivate(ctx context.Context, rule Rule, now time.Time) ([]string, error)
}

// Rule is a time-based deactivation predicate. Match is the in-process form,
// condition the SQL form; both must select the same links.
type Rule struct {
	Label     string
	Match     func(l Link, now time.Time) bool
	condition func(now time.Time) (sql string, args []any)
}

// ExpiredRule selects links whose expiry has passed.
func ExpiredRule() Rule {
	return Rule{
		Label: "expired",
		Match: func(l Link, now time.Time) bool {
			return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
		},
		condition: func(now time.Time) (string, []any) {
			return "expires_at IS NOT NULL AND expires_at < $2", []any{now}
		},
	}
}

// UnusedRule selects links nobody has followed within threshold: either never
// used and created before the cutoff, or last used before it.
func UnusedRule(threshold time.Duration) Rule {
	return Rule{
		Label: "unused",
		Match: func(l Link, now time.Time) bool {
			cutoff := now.Add(-threshold)
			if l.LastUsedAt == nil {
				return l.CreatedAt.Before(cutoff)
			}
			return l.LastUsedAt.Before(cutoff)
		},
		condition: func(now time.Time) (string, []any) {
			return "(last_used_at IS NULL AND created_at < $2) OR last_used_at < $2",
				[]any{now.Add(-threshold)}
		},
	}
}
