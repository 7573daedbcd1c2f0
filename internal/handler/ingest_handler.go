package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// DefaultMaxUploadSize はJSONアップロードの既定上限（64MiB）。
const DefaultMaxUploadSize int64 = 64 << 20

// IngestServiceInterface は取り込みハンドラーが必要とするサービスインターフェース。
type IngestServiceInterface interface {
	// ImportJSON はアップロードされたJSONを取り込む。
	ImportJSON(ctx context.Context, body []byte) (*model.IngestResult, error)
	// SyncFeed は外部フィードを取得して取り込む。
	SyncFeed(ctx context.Context) (*model.IngestResult, error)
}

// IngestHandler はwriteup取り込みのHTTPハンドラー。
type IngestHandler struct {
	service       IngestServiceInterface
	maxUploadSize int64
}

// NewIngestHandler はIngestHandlerを生成する。maxUploadSizeが0以下の場合は既定値を使う。
func NewIngestHandler(service IngestServiceInterface, maxUploadSize int64) *IngestHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &IngestHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// Import はリクエストボディのJSONを取り込む。
// POST /api/writeups/import
func (h *IngestHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(h.maxUploadSize))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPayloadError(err.Error()))
		return
	}

	result, err := h.service.ImportJSON(r.Context(), body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("writeups imported",
		slog.String("user_id", userID),
		slog.Int("count", result.Count()),
	)
	writeJSON(w, http.StatusOK, toIngestResponse(result))
}

// Sync は外部フィードを取得して取り込む。
// POST /api/writeups/sync
func (h *IngestHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	result, err := h.service.SyncFeed(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("writeup feed synced",
		slog.String("user_id", userID),
		slog.Int("count", result.Count()),
	)
	writeJSON(w, http.StatusOK, toIngestResponse(result))
}

func toIngestResponse(result *model.IngestResult) ingestResponse {
	return ingestResponse{
		Success:  true,
		Count:    result.Count(),
		Received: result.Received,
		Invalid:  result.Invalid,
		Skipped:  result.Skipped,
	}
}
