package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// maxNoteBodySize はノート保存リクエストのボディ上限。
const maxNoteBodySize = 1 << 20

// AnnotationServiceInterface はユーザー注釈ハンドラーが必要とするサービスインターフェース。
type AnnotationServiceInterface interface {
	// ToggleRead は既読状態を反転し、反転後の状態を返す。
	ToggleRead(ctx context.Context, userID string, writeupID int64) (bool, error)
	// SetNote はノートを作成または更新する。
	SetNote(ctx context.Context, userID string, writeupID int64, content string) (*model.Note, error)
	// DeleteAll は全writeupと関連データを削除する。
	DeleteAll(ctx context.Context) error
}

// AnnotationHandler は既読・ノート・全削除のHTTPハンドラー。
type AnnotationHandler struct {
	service AnnotationServiceInterface
}

// NewAnnotationHandler はAnnotationHandlerを生成する。
func NewAnnotationHandler(service AnnotationServiceInterface) *AnnotationHandler {
	return &AnnotationHandler{service: service}
}

// ToggleRead はwriteupの既読状態を反転する。
// POST /api/writeups/{id}/read
func (h *AnnotationHandler) ToggleRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	writeupID, ok := writeupIDParam(w, r)
	if !ok {
		return
	}

	isRead, err := h.service.ToggleRead(r.Context(), userID, writeupID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, readStateResponse{WriteupID: writeupID, IsRead: isRead})
}

// SetNote はwriteupにノートを保存する。空文字列も保存する。
// PUT /api/writeups/{id}/note
func (h *AnnotationHandler) SetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	writeupID, ok := writeupIDParam(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBodySize)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPayloadError(err.Error()))
		return
	}
	if req.Content == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPayloadError("content is required"))
		return
	}

	note, err := h.service.SetNote(r.Context(), userID, writeupID, *req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNoteResponse(note))
}

// DeleteAll は全writeupとルックアップ・ノート・既読を削除する。
// DELETE /api/writeups
func (h *AnnotationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	if err := h.service.DeleteAll(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
