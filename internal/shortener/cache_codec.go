package shortener

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// cachedLink is the serialized projection of a Link kept in the cache.
type cachedLink struct {
	ID          uuid.UUID  `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	CreatedBy   *string    `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Clicks      int64      `json:"clicks"`
	IsActive    bool       `json:"is_active"`
}

func encodeLink(l Link) (string, error) {
	b, err := json.Marshal(cachedLink(l))
	if err != nil {
		return "", fmt.Errorf("encode cached link %q: %w", l.ShortCode, err)
	}
	return string(b), nil
}

func decodeLink(code, raw string) (Link, error) {
	var c cachedLink
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Link{}, fmt.Errorf("decode cached link %q: %w", code, err)
	}
	if c.ShortCode != code || c.OriginalURL == "" {
		return Link{}, fmt.Errorf("decode cached link %q: entry belongs to %q or lacks a url", code, c.ShortCode)
	}
	return Link(c), nil
}
