package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/writeup"
)

// WriteupQueryServiceInterface はwriteup参照系ハンドラーが必要とするサービスインターフェース。
type WriteupQueryServiceInterface interface {
	// List は検索条件に一致するwriteupを1ページ分、ユーザーのノート・既読付きで返す。
	List(ctx context.Context, userID string, q model.WriteupQuery) (*model.Page[model.WriteupWithRelations], error)
	// ListWithNotes はユーザーがノートを残したwriteupを返す。
	ListWithNotes(ctx context.Context, userID string) ([]model.WriteupWithRelations, error)
	// ExportNotesMarkdown はユーザーのノートをMarkdownで返す。
	ExportNotesMarkdown(ctx context.Context, userID string) (string, error)
	// Stats はユーザー単位の集計値を返す。
	Stats(ctx context.Context, userID string) (*model.UserStats, error)
	// ListLookups は著者・プログラム・バグ名の一覧を返す。
	ListLookups(ctx context.Context, kind model.LookupKind, search string, page int) (*model.Page[model.Lookup], error)
}

// WriteupHandler はwriteup参照系のHTTPハンドラー。
type WriteupHandler struct {
	service WriteupQueryServiceInterface
	now     func() time.Time
}

// NewWriteupHandler はWriteupHandlerを生成する。
func NewWriteupHandler(service WriteupQueryServiceInterface) *WriteupHandler {
	return &WriteupHandler{
		service: service,
		now:     time.Now,
	}
}

// List はwriteup一覧を取得する。
// GET /api/writeups?search=&authors=&programs=&bugs=&onlyWithNotes=&onlyRead=&sortBy=&sortOrder=&page=
func (h *WriteupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q, err := parseWriteupQuery(r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), userID, q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, writeupPageResponse{
		Items:     toWriteupResponses(page.Items),
		Total:     page.Total,
		PageCount: page.PageCount,
	})
}

// ListNotes はノート付きwriteupの一覧を取得する。
// GET /api/writeups/notes
func (h *WriteupHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.service.ListWithNotes(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWriteupResponses(items))
}

// ExportNotes はノートをMarkdownファイルとしてダウンロードさせる。
// ノートが1件も無い場合は204を返す。
// GET /api/writeups/notes/export
func (h *WriteupHandler) ExportNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	md, err := h.service.ExportNotesMarkdown(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if md == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", writeup.ExportFilename(h.now())))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(md))
}

// Stats はユーザーの集計値を取得する。
// GET /api/me/stats
func (h *WriteupHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalWriteups: stats.TotalWriteups,
		TotalReads:    stats.TotalReads,
		TotalNotes:    stats.TotalNotes,
	})
}

// ListLookups は種別ごとのルックアップ一覧ハンドラーを返す。
// GET /api/authors, /api/programs, /api/bugs ?search=&page=
func (h *WriteupHandler) ListLookups(kind model.LookupKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireUserID(w, r); !ok {
			return
		}

		values := r.URL.Query()
		page, err := parsePage(values.Get("page"))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		result, err := h.service.ListLookups(r.Context(), kind, values.Get("search"), page)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toLookupPageResponse(result))
	}
}

// parseWriteupQuery はクエリ文字列を検索条件に変換する。
// 名前フィルタは繰り返し指定（authors=a&authors=b）と authors[]= の両形式を受け付ける。
// sortBy・sortOrderの値検証はサービス層で行う。
func parseWriteupQuery(values url.Values) (model.WriteupQuery, error) {
	q := model.WriteupQuery{
		Search:    values.Get("search"),
		Authors:   multiValue(values, "authors"),
		Programs:  multiValue(values, "programs"),
		Bugs:      multiValue(values, "bugs"),
		SortBy:    model.SortField(values.Get("sortBy")),
		SortOrder: model.SortOrder(values.Get("sortOrder")),
	}

	var err error
	if q.OnlyWithNotes, err = parseBool("onlyWithNotes", values.Get("onlyWithNotes")); err != nil {
		return q, err
	}
	if q.OnlyRead, err = parseBool("onlyRead", values.Get("onlyRead")); err != nil {
		return q, err
	}
	if q.Page, err = parsePage(values.Get("page")); err != nil {
		return q, err
	}
	return q, nil
}

func multiValue(values url.Values, key string) []string {
	out := append([]string{}, values[key]...)
	return append(out, values[key+"[]"]...)
}

func parseBool(key, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.NewInvalidQueryError(fmt.Sprintf("%s=%s", key, raw))
	}
	return b, nil
}

// parsePage は page パラメータを解析する。未指定は1ページ目。
func parsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, model.NewInvalidQueryError(fmt.Sprintf("page=%s", raw))
	}
	return page, nil
}
