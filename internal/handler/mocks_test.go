package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/writeuptracker/internal/middleware"
	"github.com/hitoshi/writeuptracker/internal/model"
)

// --- モック定義 ---

// mockQueryService はWriteupQueryServiceInterfaceのモック実装。
type mockQueryService struct {
	listFn          func(ctx context.Context, userID string, q model.WriteupQuery) (*model.Page[model.WriteupWithRelations], error)
	listWithNotesFn func(ctx context.Context, userID string) ([]model.WriteupWithRelations, error)
	exportFn        func(ctx context.Context, userID string) (string, error)
	statsFn         func(ctx context.Context, userID string) (*model.UserStats, error)
	listLookupsFn   func(ctx context.Context, kind model.LookupKind, search string, page int) (*model.Page[model.Lookup], error)
}

func (m *mockQueryService) List(ctx context.Context, userID string, q model.WriteupQuery) (*model.Page[model.WriteupWithRelations], error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, q)
	}
	return &model.Page[model.WriteupWithRelations]{}, nil
}

func (m *mockQueryService) ListWithNotes(ctx context.Context, userID string) ([]model.WriteupWithRelations, error) {
	if m.listWithNotesFn != nil {
		return m.listWithNotesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockQueryService) ExportNotesMarkdown(ctx context.Context, userID string) (string, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, userID)
	}
	return "", nil
}

func (m *mockQueryService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID)
	}
	return &model.UserStats{}, nil
}

func (m *mockQueryService) ListLookups(ctx context.Context, kind model.LookupKind, search string, page int) (*model.Page[model.Lookup], error) {
	if m.listLookupsFn != nil {
		return m.listLookupsFn(ctx, kind, search, page)
	}
	return &model.Page[model.Lookup]{}, nil
}

// mockAnnotationService はAnnotationServiceInterfaceのモック実装。
type mockAnnotationService struct {
	toggleReadFn func(ctx context.Context, userID string, writeupID int64) (bool, error)
	setNoteFn    func(ctx context.Context, userID string, writeupID int64, content string) (*model.Note, error)
	deleteAllFn  func(ctx context.Context) error
}

func (m *mockAnnotationService) ToggleRead(ctx context.Context, userID string, writeupID int64) (bool, error) {
	if m.toggleReadFn != nil {
		return m.toggleReadFn(ctx, userID, writeupID)
	}
	return false, nil
}

func (m *mockAnnotationService) SetNote(ctx context.Context, userID string, writeupID int64, content string) (*model.Note, error) {
	if m.setNoteFn != nil {
		return m.setNoteFn(ctx, userID, writeupID, content)
	}
	return &model.Note{WriteupID: writeupID, UserID: userID, Content: content}, nil
}

func (m *mockAnnotationService) DeleteAll(ctx context.Context) error {
	if m.deleteAllFn != nil {
		return m.deleteAllFn(ctx)
	}
	return nil
}

// mockIngestService はIngestServiceInterfaceのモック実装。
type mockIngestService struct {
	importFn func(ctx context.Context, body []byte) (*model.IngestResult, error)
	syncFn   func(ctx context.Context) (*model.IngestResult, error)
}

func (m *mockIngestService) ImportJSON(ctx context.Context, body []byte) (*model.IngestResult, error) {
	if m.importFn != nil {
		return m.importFn(ctx, body)
	}
	return &model.IngestResult{}, nil
}

func (m *mockIngestService) SyncFeed(ctx context.Context) (*model.IngestResult, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx)
	}
	return &model.IngestResult{}, nil
}

// mockUserDirectory はUserDirectoryのモック実装。
type mockUserDirectory struct {
	findByIDFn  func(ctx context.Context, id string) (*model.User, error)
	anyExistsFn func(ctx context.Context) (bool, error)
}

func (m *mockUserDirectory) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserDirectory) AnyExists(ctx context.Context) (bool, error) {
	if m.anyExistsFn != nil {
		return m.anyExistsFn(ctx)
	}
	return false, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// mockSessionFinder は "valid-session" のみを有効とみなすSessionFinder。
type mockSessionFinder struct{}

func (mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "valid-session" {
		return &model.Session{ID: id, UserID: "user-123"}, nil
	}
	return nil, nil
}

// --- ヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを設定するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func strPtr(s string) *string { return &s }
