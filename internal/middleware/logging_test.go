package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// mockHTTPRecorder はHTTPRecorderのモック。
type mockHTTPRecorder struct {
	method string
	route  string
	status int
}

func (m *mockHTTPRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	m.method, m.route, m.status = method, route, status
}

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func TestLoggingMiddleware_LogsRequestWithRouteAndUser(t *testing.T) {
	logger, buf := newBufferLogger()
	recorder := &mockHTTPRecorder{}

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger, recorder))
	r.Use(NewSessionMiddleware(validSessionRepo("user-42"), ""))
	r.Get("/api/writeups/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/writeups/7", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: "valid-session-id"})
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "http_request" || entry["level"] != "WARN" {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if entry["route"] != "/api/writeups/{id}" || entry["path"] != "/api/writeups/7" {
		t.Errorf("unexpected route/path: %v / %v", entry["route"], entry["path"])
	}
	if entry["user_id"] != "user-42" {
		t.Errorf("user_id = %v, want user-42", entry["user_id"])
	}
	if recorder.route != "/api/writeups/{id}" || recorder.status != http.StatusTeapot || recorder.method != http.MethodGet {
		t.Errorf("unexpected recorded metrics: %+v", recorder)
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		logger, buf := newBufferLogger()
		handler := NewLoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		var entry map[string]any
		json.Unmarshal(buf.Bytes(), &entry)
		if entry["level"] != tt.level {
			t.Errorf("status %d: level = %v, want %s", tt.status, entry["level"], tt.level)
		}
		if entry["route"] != "unmatched" {
			t.Errorf("route = %v, want unmatched", entry["route"])
		}
		if _, ok := entry["user_id"]; ok {
			t.Error("expected no user_id for anonymous request")
		}
	}
}

func TestRecordUserID_WithoutLoggingMiddleware(t *testing.T) {
	// ロギングミドルウェアが無い場合は何もしない
	recordUserID(context.Background(), "user-1")
}
