package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestLoggerLevelsFollowStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusInternalServerError, "error"},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)

		h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))

		entry := logLine(t, &buf)
		if entry["level"] != tc.level {
			t.Fatalf("status %d logged at %v, want %s", tc.status, entry["level"], tc.level)
		}
		if entry["status"] != float64(tc.status) {
			t.Fatalf("status field = %v, want %d", entry["status"], tc.status)
		}
		if entry["method"] != "GET" || entry["path"] != "/messages" {
			t.Fatalf("unexpected request fields: %v", entry)
		}
	}
}

func TestLoggerIncludesAuthenticatedUser(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stands in for RequireAuth reporting the verified user.
		if u, ok := r.Context().Value(logUserKey).(*logUser); ok {
			u.id = 42
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	Logger(logger)(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))

	entry := logLine(t, &buf)
	if entry["user"] != float64(42) {
		t.Fatalf("user field = %v, want 42", entry["user"])
	}
}

func TestLoggerOmitsUserWhenAnonymous(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	rec := httptest.NewRecorder()
	Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if strings.Contains(buf.String(), `"user"`) {
		t.Fatalf("anonymous request must not carry a user field: %s", buf.String())
	}
}
