// Package idgen issues row identifiers for link records.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator generates unique identifiers.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// Func adapts a plain function to Generator.
type Func func() (uuid.UUID, error)

func (f Func) Generate() (uuid.UUID, error) { return f() }

type v7Gen struct {
	retries int
	next    func() (uuid.UUID, error)
}

type Option func(*v7Gen)

// WithRetries sets how many extra attempts are made when the entropy source fails.
// Defaults to 1. Negative values are ignored.
func WithRetries(n int) Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// withSource swaps the underlying uuid constructor; tests use it to inject failures.
func withSource(fn func() (uuid.UUID, error)) Option {
	return func(g *v7Gen) { g.next = fn }
}

// NewV7 returns a Generator producing time-ordered UUID v7 values, which keep
// freshly created links close together in the primary index.
func NewV7(opts ...Option) Generator {
	g := &v7Gen{retries: 1, next: uuid.NewV7}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() (uuid.UUID, error) {
	var last error
	for attempt := 0; attempt <= g.retries; attempt++ {
		id, err := g.next()
		if err == nil {
			return id, nil
		}
		last = err
	}
	return uuid.Nil, fmt.Errorf("uuid v7 generation failed after %d attempts: %w", g.retries+1, last)
}
