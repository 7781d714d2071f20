package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sundayezeilo/linkkeeper/internal/errx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]string{"short_code": "abc1234"})

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["short_code"] != "abc1234" {
		t.Errorf("body = %v", got)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusConflict, "conflict", "alias already taken", map[string]string{"alias": "foo"})

	var got ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Error != "conflict" || got.Message != "alias already taken" || got.Details == nil {
		t.Errorf("response = %+v", got)
	}
}

func TestWriteKindError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "client error exposes root message",
			err:         errx.E("shortener.service.Update", errx.Forbidden, errors.New("not the owner of this link")),
			wantStatus:  http.StatusForbidden,
			wantCode:    "forbidden",
			wantMessage: "not the owner of this link",
		},
		{
			name:        "store failure is masked",
			err:         errx.E("shortener.store.Get", errx.Unavailable, errors.New("dial tcp 10.0.0.5:5432: refused")),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    "unavailable",
			wantMessage: "service temporarily unavailable, please retry",
		},
		{
			name:        "untyped error is internal",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_error",
			wantMessage: "an unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteKindError(context.Background(), rr, discardLogger(), tt.err, "short_code", "abc")

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var got ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", got.Error, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}
