package shortener

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/sundayezeilo/linkkeeper/internal/auth"
	"github.com/sundayezeilo/linkkeeper/internal/errx"
	"github.com/sundayezeilo/linkkeeper/internal/httpx"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// HTTPCreateLinkRequest is the JSON body of POST /v1/links/shorten.
type HTTPCreateLinkRequest struct {
	OriginalURL string     `json:"original_url"`
	CustomAlias string     `json:"custom_alias,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// HTTPUpdateLinkRequest is the JSON body of PUT /v1/links/{code}. An absent
// expires_at leaves the expiry alone; an explicit null clears it.
type HTTPUpdateLinkRequest struct {
	OriginalURL *string      `json:"original_url"`
	ExpiresAt   optionalTime `json:"expires_at"`
}

type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// LinkResponse is the JSON representation of a link.
type LinkResponse struct {
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	CreatedBy   *string    `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Clicks      int64      `json:"clicks"`
	IsActive    bool       `json:"is_active"`
}

// Handler provides HTTP handlers for the link service.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // public origin used to build short URLs (e.g. "https://lnk.example")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// RegisterRoutes mounts the link routes on mux. The literal segments
// "search" and "expired" take precedence over {code}.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/links/shorten", h.CreateLink)
	mux.HandleFunc("GET /v1/links/search", h.Search)
	mux.HandleFunc("GET /v1/links/expired", h.ListExpired)
	mux.HandleFunc("GET /v1/links/{code}", h.Redirect)
	mux.HandleFunc("PUT /v1/links/{code}", h.UpdateLink)
	mux.HandleFunc("DELETE /v1/links/{code}", h.DeleteLink)
	mux.HandleFunc("GET /v1/links/{code}/stats", h.Stats)
	mux.HandleFunc("GET /v1/links/{code}/qr", h.QRCode)
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func (h *Handler) shortURL(code string) string {
	return fmt.Sprintf("%s/v1/links/%s", h.baseURL, code)
}

func (h *Handler) toResponse(l Link) LinkResponse {
	return LinkResponse{
		ShortCode:   l.ShortCode,
		ShortURL:    h.shortURL(l.ShortCode),
		OriginalURL: l.OriginalURL,
		CreatedBy:   l.CreatedBy,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
		ExpiresAt:   l.ExpiresAt,
		LastUsedAt:  l.LastUsedAt,
		Clicks:      l.Clicks,
		IsActive:    l.IsActive,
	}
}

func (h *Handler) toResponses(links []Link) []LinkResponse {
	out := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, h.toResponse(l))
	}
	return out
}

// requirePrincipal writes a 401 and returns false when the request is anonymous.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return "", false
	}
	return string(p), true
}

// CreateLink handles POST /v1/links/shorten.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.OriginalURL) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "original_url is required", nil)
		return
	}

	principal, _ := auth.PrincipalFrom(ctx)
	link, err := h.service.Create(ctx, CreateLinkRequest{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
		CreatedBy:   string(principal),
	})
	if err != nil {
		attrs := []any{"custom_alias", req.CustomAlias}
		if errors.Is(err, ErrCodeSpaceExhausted) {
			attrs = append(attrs, "code_space_exhausted", true)
		}
		httpx.WriteKindError(ctx, w, logger, err, attrs...)
		return
	}

	logger.InfoContext(ctx, "link created",
		"short_code", link.ShortCode,
		"custom_alias", req.CustomAlias != "",
		"anonymous", link.CreatedBy == nil,
	)
	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(link))
}

// Redirect handles GET /v1/links/{code}.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")

	link, err := h.service.Redirect(ctx, code)
	if err != nil {
		httpx.WriteKindError(ctx, w, h.requestLogger(r), err, "short_code", code)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, link.OriginalURL, http.StatusTemporaryRedirect)
}

// Stats handles GET /v1/links/{code}/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	code := r.PathValue("code")

	link, err := h.service.Stats(ctx, code, principal)
	if err != nil {
		httpx.WriteKindError(ctx, w, h.requestLogger(r), err, "short_code", code)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// UpdateLink handles PUT /v1/links/{code}.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	code := r.PathValue("code")
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPUpdateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	upd := LinkUpdate{OriginalURL: req.OriginalURL}
	if req.ExpiresAt.Set {
		upd.ExpiresAt = req.ExpiresAt.Value
		upd.ClearExpiresAt = req.ExpiresAt.Value == nil
	}

	link, err := h.service.Update(ctx, code, upd, principal)
	if err != nil {
		httpx.WriteKindError(ctx, w, logger, err, "short_code", code)
		return
	}

	logger.InfoContext(ctx, "link updated", "short_code", code)
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// DeleteLink handles DELETE /v1/links/{code}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	code := r.PathValue("code")
	logger := h.requestLogger(r)

	if err := h.service.Delete(ctx, code, principal); err != nil {
		httpx.WriteKindError(ctx, w, logger, err, "short_code", code)
		return
	}

	logger.InfoContext(ctx, "link deleted", "short_code", code)
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /v1/links/search?original_url=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	links, err := h.service.Search(ctx, r.URL.Query().Get("original_url"))
	if err != nil {
		httpx.WriteKindError(ctx, w, h.requestLogger(r), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponses(links))
}

// ListExpired handles GET /v1/links/expired.
func (h *Handler) ListExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	links, err := h.service.ListExpired(ctx)
	if err != nil {
		httpx.WriteKindError(ctx, w, h.requestLogger(r), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponses(links))
}

// QRCode handles GET /v1/links/{code}/qr and renders the short URL as a PNG.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")
	logger := h.requestLogger(r)

	size, err := parseQRSize(r.URL.Query().Get("size"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	link, err := h.service.Lookup(ctx, code)
	if err != nil {
		httpx.WriteKindError(ctx, w, logger, err, "short_code", code)
		return
	}

	png, err := qrcode.Encode(h.shortURL(link.ShortCode), qrcode.Medium, size)
	if err != nil {
		httpx.WriteKindError(ctx, w, logger, errx.E("shortener.handler.QRCode", errx.Internal, err), "short_code", code)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func parseQRSize(raw string) (int, error) {
	if raw == "" {
		return defaultQRSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < minQRSize || size > maxQRSize {
		return 0, fmt.Errorf("size must be an integer between %d and %d", minQRSize, maxQRSize)
	}
	return size, nil
}
