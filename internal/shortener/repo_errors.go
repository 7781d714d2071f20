package shortener

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/linkkeeper/internal/errx"
)

var (
	// ErrCodeSpaceExhausted means every generated short code collided. It is
	// reported with kind Conflict so callers treat it like an existing alias.
	ErrCodeSpaceExhausted = errors.New("could not generate a unique short code")

	ErrLinkNotFound   = errors.New("short link not found")
	ErrAliasTaken     = errors.New("short code already exists")
	ErrNotOwner       = errors.New("not the owner of this link")
	ErrExpiryInPast   = errors.New("expires_at must be in the future")
	ErrExpiryConflict = errors.New("expires_at cannot be both set and cleared")
)

const uniqueViolation = "23505"

func isShortCodeViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == "links_pkey"
}

func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	case isShortCodeViolation(err):
		return errx.E(op, errx.Conflict, ErrAliasTaken)
	case errx.KindOf(err) != errx.Unknown:
		return errx.E(op, errx.KindOf(err), err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}
