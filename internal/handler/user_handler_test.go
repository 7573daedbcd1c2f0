package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/writeuptracker/internal/model"
)

func TestUserHandler_Exists(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"registered", true},
		{"empty", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewUserHandler(&mockUserDirectory{
				anyExistsFn: func(ctx context.Context) (bool, error) {
					return tt.exists, nil
				},
			})

			req := httptest.NewRequest(http.MethodGet, "/api/users/exists", nil)
			w := httptest.NewRecorder()
			h.Exists(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var body userExistsResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Exists != tt.exists {
				t.Errorf("exists = %v, want %v", body.Exists, tt.exists)
			}
		})
	}
}

// クエリ文字列は判定に影響しない（メールアドレスによる存在確認はできない）
func TestUserHandler_Exists_IgnoresQuery(t *testing.T) {
	called := 0
	h := NewUserHandler(&mockUserDirectory{
		anyExistsFn: func(ctx context.Context) (bool, error) {
			called++
			return true, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/exists?email=nobody@example.com", nil)
	w := httptest.NewRecorder()
	h.Exists(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if called != 1 {
		t.Errorf("AnyExists called %d times, want 1", called)
	}
}

func TestUserHandler_Exists_RepositoryError(t *testing.T) {
	h := NewUserHandler(&mockUserDirectory{
		anyExistsFn: func(ctx context.Context) (bool, error) {
			return false, errors.New("db down")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/exists", nil)
	w := httptest.NewRecorder()
	h.Exists(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestUserHandler_Me(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	h := NewUserHandler(&mockUserDirectory{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id != "user-123" {
				t.Errorf("id = %q, want user-123", id)
			}
			return &model.User{ID: id, Email: "a@example.com", Name: "Alice", CreatedAt: created}, nil
		},
	})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body userResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID != "user-123" || body.Email != "a@example.com" || body.Name != "Alice" {
		t.Errorf("body = %+v", body)
	}
	if !body.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", body.CreatedAt, created)
	}
}

func TestUserHandler_Me_UserDeleted(t *testing.T) {
	h := NewUserHandler(&mockUserDirectory{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/me", nil), "user-123")
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	apiErr := parseAPIErrorResponse(t, w)
	if apiErr["code"] != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", apiErr["code"], model.ErrCodeUserNotFound)
	}
}

func TestUserHandler_Me_Unauthenticated(t *testing.T) {
	h := NewUserHandler(&mockUserDirectory{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantStatus     int
		wantStatusText string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(&mockHealthChecker{err: tt.err})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			h(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body healthResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Status != tt.wantStatusText {
				t.Errorf("status text = %q, want %q", body.Status, tt.wantStatusText)
			}
		})
	}
}
