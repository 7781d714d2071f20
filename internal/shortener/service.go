package shortener

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/sundayezeilo/linkkeeper/internal/errx"
	"github.com/sundayezeilo/linkkeeper/internal/metrics"
	"github.com/sundayezeilo/linkkeeper/sluggen"
)

const (
	DefaultCodeLength      = 7
	MinCodeLength          = sluggen.MinAliasLength
	MaxCodeLength          = sluggen.MaxAliasLength
	MaxURLLength           = 2048
	DefaultGenerateRetries = 5
)

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	OriginalURL string
	CustomAlias string     // optional; a random code is generated when empty
	ExpiresAt   *time.Time // optional; must be in the future
	CreatedBy   string     // empty for anonymous callers
}

// Service is the request-facing API of the link lifecycle.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Redirect(ctx context.Context, code string) (Link, error)
	Lookup(ctx context.Context, code string) (Link, error)
	Update(ctx context.Context, code string, upd LinkUpdate, principal string) (Link, error)
	Delete(ctx context.Context, code string, principal string) error
	Stats(ctx context.Context, code string, principal string) (Link, error)
	Search(ctx context.Context, originalURL string) ([]Link, error)
	ListExpired(ctx context.Context) ([]Link, error)
}

type service struct {
	repo       Repository
	codes      sluggen.Generator
	codeLength int
	retries    int
	logger     *slog.Logger
	now        func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator   sluggen.Generator
	CodeLength      int
	GenerateRetries int // attempts when generating a unique code (default: 5)
	Logger          *slog.Logger
	Clock           func() time.Time
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codes := config.CodeGenerator
	if codes == nil {
		codes = sluggen.NewBase62()
	}

	length := config.CodeLength
	if length < MinCodeLength || length > MaxCodeLength {
		length = DefaultCodeLength
	}

	retries := config.GenerateRetries
	if retries <= 0 {
		retries = DefaultGenerateRetries
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:       repo,
		codes:      codes,
		codeLength: length,
		retries:    retries,
		logger:     logger,
		now:        now,
	}
}

// Create registers a link under a caller-chosen alias or a fresh random code.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "shortener.service.Create"

	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return Link{}, errx.E(op, errx.Invalid, ErrExpiryInPast)
	}

	link := Link{
		OriginalURL: req.OriginalURL,
		ExpiresAt:   req.ExpiresAt,
	}
	if req.CreatedBy != "" {
		link.CreatedBy = ptr(req.CreatedBy)
	}

	if req.CustomAlias != "" {
		return s.createWithAlias(ctx, link, req.CustomAlias)
	}
	return s.createWithRandomCode(ctx, link)
}

func (s *service) createWithAlias(ctx context.Context, link Link, alias string) (Link, error) {
	const op = "shortener.service.Create"

	if err := sluggen.ValidateAlias(alias); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	taken, err := s.repo.CodeTaken(ctx, alias)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	if taken {
		return Link{}, errx.E(op, errx.Conflict, ErrAliasTaken)
	}

	link.ShortCode = alias
	created, err := s.repo.CreateLink(ctx, link)
	if err != nil {
		// lost a race with a concurrent create of the same alias
		return Link{}, errx.Wrap(op, err)
	}

	metrics.LinksCreated.WithLabelValues("alias").Inc()
	return created, nil
}

func (s *service) createWithRandomCode(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.service.Create"

	for attempt := 1; attempt <= s.retries; attempt++ {
		code, err := s.codes.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		if sluggen.IsReserved(code) {
			continue
		}

		taken, err := s.repo.CodeTaken(ctx, code)
		if err != nil {
			return Link{}, errx.Wrap(op, err)
		}
		if taken {
			metrics.CodeCollisions.Inc()
			s.logger.DebugContext(ctx, "generated code collided", "short_code", code, "attempt", attempt)
			continue
		}

		link.ShortCode = code
		created, err := s.repo.CreateLink(ctx, link)
		if err == nil {
			metrics.LinksCreated.WithLabelValues("generated").Inc()
			return created, nil
		}
		if !errx.Is(err, errx.Conflict) {
			return Link{}, errx.Wrap(op, err)
		}
		metrics.CodeCollisions.Inc()
	}

	s.logger.WarnContext(ctx, "short code generation exhausted", "attempts", s.retries, "code_length", s.codeLength)
	return Link{}, errx.E(op, errx.Conflict, ErrCodeSpaceExhausted)
}

// Redirect resolves code and records the traversal. A failure to record the
// click is logged and does not fail the redirect.
func (s *service) Redirect(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.Redirect"

	link, err := s.Lookup(ctx, code)
	if err != nil {
		if errx.Is(err, errx.NotFound) {
			metrics.Redirects.WithLabelValues("not_found").Inc()
		}
		return Link{}, errx.Wrap(op, err)
	}

	if err := s.repo.RecordClick(ctx, code); err != nil {
		s.logger.WarnContext(ctx, "failed to record click",
			"short_code", code,
			"error", err,
		)
	}

	metrics.Redirects.WithLabelValues("found").Inc()
	return link, nil
}

// Lookup resolves code without counting a click.
func (s *service) Lookup(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.Lookup"

	if err := validateCode(code); err != nil {
		return Link{}, errx.E(op, errx.NotFound, ErrLinkNotFound)
	}

	link, err := s.repo.GetLink(ctx, code)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

func (s *service) Update(ctx context.Context, code string, upd LinkUpdate, principal string) (Link, error) {
	const op = "shortener.service.Update"

	if upd.OriginalURL != nil {
		if err := validateURL(*upd.OriginalURL); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}
	}
	if upd.ClearExpiresAt && upd.ExpiresAt != nil {
		return Link{}, errx.E(op, errx.Invalid, ErrExpiryConflict)
	}
	if upd.ExpiresAt != nil && !upd.ExpiresAt.After(s.now()) {
		return Link{}, errx.E(op, errx.Invalid, ErrExpiryInPast)
	}

	link, err := s.repo.UpdateLink(ctx, code, upd, principal)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

// Delete removes a link the principal owns. A missing link is NotFound.
func (s *service) Delete(ctx context.Context, code string, principal string) error {
	const op = "shortener.service.Delete"

	deleted, err := s.repo.DeleteLink(ctx, code, principal)
	if err != nil {
		return errx.Wrap(op, err)
	}
	if !deleted {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	return nil
}

func (s *service) Stats(ctx context.Context, code string, principal string) (Link, error) {
	const op = "shortener.service.Stats"

	link, err := s.repo.GetLinkStats(ctx, code, principal)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

func (s *service) Search(ctx context.Context, originalURL string) ([]Link, error) {
	const op = "shortener.service.Search"

	if originalURL == "" {
		return nil, errx.E(op, errx.Invalid, errors.New("original_url is required"))
	}

	links, err := s.repo.SearchByOriginalURL(ctx, originalURL)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return links, nil
}

func (s *service) ListExpired(ctx context.Context) ([]Link, error) {
	const op = "shortener.service.ListExpired"

	links, err := s.repo.ListExpired(ctx)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return links, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

// validateCode rejects lookups that could never match a stored code.
func validateCode(code string) error {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return errors.New("invalid short code length")
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return errors.New("invalid short code character")
		}
	}
	return nil
}
