package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sundayezeilo/linkkeeper/internal/errx"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already sent
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// WriteKindError translates an errx error into a JSON error response and logs it:
// client-class kinds at Warn, everything else at Error with a generic message so
// store failures never leak to callers.
func WriteKindError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error, attrs ...any) {
	kind := errx.KindOf(err)
	status := ErrorKindToStatus(kind)

	attrs = append(attrs,
		"error", err.Error(),
		"error_kind", kind.String(),
		"operation", errx.OpOf(err),
	)

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", attrs...)
		msg := "an unexpected error occurred"
		if kind == errx.Unavailable {
			msg = "service temporarily unavailable, please retry"
		}
		WriteError(w, status, ErrorKindToCode(kind), msg, nil)
		return
	}

	logger.WarnContext(ctx, "request rejected", attrs...)
	WriteError(w, status, ErrorKindToCode(kind), PublicMessage(err), nil)
}
