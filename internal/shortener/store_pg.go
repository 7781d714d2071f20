package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sundayezeilo/linkkeeper/internal/errx"
	"github.com/sundayezeilo/linkkeeper/internal/idgen"
)

const linkColumns = `id, short_code, original_url, created_by, created_at, updated_at,
	expires_at, last_used_at, clicks, is_active`

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	ids  idgen.Generator
}

// StoreConfig holds optional collaborators for the store.
type StoreConfig struct {
	IDGenerator idgen.Generator
}

// NewPostgresStore returns a Store backed by pool. Row IDs default to UUID v7.
func NewPostgresStore(pool *pgxpool.Pool, config *StoreConfig) *PostgresStore {
	if config == nil {
		config = &StoreConfig{}
	}
	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV7(idgen.WithRetries(1))
	}
	return &PostgresStore{pool: pool, ids: ids}
}

func scanLink(row pgx.Row) (Link, error) {
	var l Link
	err := row.Scan(
		&l.ID,
		&l.ShortCode,
		&l.OriginalURL,
		&l.CreatedBy,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.ExpiresAt,
		&l.LastUsedAt,
		&l.Clicks,
		&l.IsActive,
	)
	return l, err
}

func collectLinks(rows pgx.Rows) ([]Link, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Link, error) {
		return scanLink(row)
	})
}

func (s *PostgresStore) Get(ctx context.Context, code string) (Link, error) {
	const op = "shortener.store.Get"

	link, err := scanLink(s.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE short_code = $1 AND is_active`, code))
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return link, nil
}

func (s *PostgresStore) Exists(ctx context.Context, code string) (bool, error) {
	const op = "shortener.store.Exists"

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM links WHERE short_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, mapStoreError(op, err)
	}
	return exists, nil
}

func (s *PostgresStore) Insert(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.store.Insert"

	if link.ID == uuid.Nil {
		id, err := s.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	created, err := scanLink(s.pool.QueryRow(ctx, `
		INSERT INTO links (id, short_code, original_url, created_by, created_at, updated_at, expires_at, clicks, is_active)
		VALUES ($1, $2, $3, $4, $5, $5, $6, 0, TRUE)
		RETURNING `+linkColumns,
		link.ID, link.ShortCode, link.OriginalURL, link.CreatedBy, link.CreatedAt, link.ExpiresAt,
	))
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return created, nil
}

func (s *PostgresStore) Update(ctx context.Context, code string, mutate func(Link) (Link, error)) (Link, error) {
	const op = "shortener.store.Update"

	var updated Link
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanLink(tx.QueryRow(ctx,
			`SELECT `+linkColumns+` FROM links WHERE short_code = $1 AND is_active FOR UPDATE`, code))
		if err != nil {
			return err
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}

		updated, err = scanLink(tx.QueryRow(ctx, `
			UPDATE links
			SET original_url = $2, expires_at = $3, clicks = $4, updated_at = $5
			WHERE short_code = $1
			RETURNING `+linkColumns,
			code, next.OriginalURL, next.ExpiresAt, next.Clicks, next.UpdatedAt,
		))
		return err
	})
	if err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, code string, authorize func(Link) error) (bool, error) {
	const op = "shortener.store.Delete"

	deleted := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanLink(tx.QueryRow(ctx,
			`SELECT `+linkColumns+` FROM links WHERE short_code = $1 FOR UPDATE`, code))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := authorize(current); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM links WHERE short_code = $1`, code)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, mapStoreError(op, err)
	}
	return deleted, nil
}

func (s *PostgresStore) IncrementClicks(ctx context.Context, code string, at time.Time) (Link, bool, error) {
	const op = "shortener.store.IncrementClicks"

	link, err := scanLink(s.pool.QueryRow(ctx, `
		UPDATE links
		SET clicks = clicks + 1, last_used_at = $2
		WHERE short_code = $1 AND is_active
		RETURNING `+linkColumns,
		code, at,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, false, nil
	}
	if err != nil {
		return Link{}, false, mapStoreError(op, err)
	}
	return link, true, nil
}

func (s *PostgresStore) FindByOriginalURL(ctx context.Context, originalURL string) ([]Link, error) {
	const op = "shortener.store.FindByOriginalURL"

	rows, err := s.pool.Query(ctx,
		`SELECT `+linkColumns+` FROM links WHERE original_url = $1 AND is_active ORDER BY created_at`, originalURL)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	links, err := collectLinks(rows)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return links, nil
}

func (s *PostgresStore) ListInactive(ctx context.Context) ([]Link, error) {
	const op = "shortener.store.ListInactive"

	rows, err := s.pool.Query(ctx,
		`SELECT `+linkColumns+` FROM links WHERE NOT is_active ORDER BY updated_at DESC`)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	links, err := collectLinks(rows)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return links, nil
}

// Deactivate runs as a single UPDATE ... RETURNING, so concurrent sweeps never
// flip or report the same row twice: the loser re-checks is_active after the
// winner's row lock is released.
func (s *PostgresStore) Deactivate(ctx context.Context, rule Rule, now time.Time) ([]string, error) {
	const op = "shortener.store.Deactivate"

	if rule.condition == nil {
		return nil, errx.E(op, errx.Internal, fmt.Errorf("rule %q has no SQL form", rule.Label))
	}

	cond, args := rule.condition(now)
	rows, err := s.pool.Query(ctx, `
		UPDATE links
		SET is_active = FALSE, updated_at = $1
		WHERE is_active AND (`+cond+`)
		RETURNING short_code`,
		append([]any{now}, args...)...,
	)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	return codes, nil
}
