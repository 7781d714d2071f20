package httpx

import (
	"errors"
	"net/http"

	"github.com/sundayezeilo/linkkeeper/internal/errx"
)

type kindMapping struct {
	status int
	code   string
}

var kindMappings = map[errx.Kind]kindMapping{
	errx.NotFound:     {http.StatusNotFound, "not_found"},
	errx.Conflict:     {http.StatusConflict, "conflict"},
	errx.Invalid:      {http.StatusBadRequest, "invalid_input"},
	errx.Unauthorized: {http.StatusUnauthorized, "unauthorized"},
	errx.Forbidden:    {http.StatusForbidden, "forbidden"},
	errx.Unavailable:  {http.StatusServiceUnavailable, "unavailable"},
	errx.Internal:     {http.StatusInternalServerError, "internal_error"},
}

var fallbackMapping = kindMapping{http.StatusInternalServerError, "internal_error"}

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
func ErrorKindToStatus(kind errx.Kind) int {
	if m, ok := kindMappings[kind]; ok {
		return m.status
	}
	return fallbackMapping.status
}

// ErrorKindToCode maps errx.Kind to the machine-readable code used in JSON error bodies.
func ErrorKindToCode(kind errx.Kind) string {
	if m, ok := kindMappings[kind]; ok {
		return m.code
	}
	return fallbackMapping.code
}

// PublicMessage returns the text of the innermost non-errx error in err's chain,
// stripping the operation labels that only belong in logs.
func PublicMessage(err error) string {
	for err != nil {
		var e *errx.Error
		if !errors.As(err, &e) {
			return err.Error()
		}
		if e.Err == nil {
			return e.Op
		}
		err = e.Err
	}
	return ""
}
