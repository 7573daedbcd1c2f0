// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, ingest, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeWriteupNotFound = "WRITEUP_NOT_FOUND"
	ErrCodeInvalidQuery    = "INVALID_QUERY"
	ErrCodeInvalidPayload  = "INVALID_PAYLOAD"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFeedFetchFailed = "FEED_FETCH_FAILED"
	ErrCodeNoValidWriteups = "NO_VALID_WRITEUPS"
	ErrCodeIngestConflict  = "INGEST_CONFLICT"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeCSRFInvalid     = "CSRF_INVALID"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeInvalidID       = "INVALID_WRITEUP_ID"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)

// NewWriteupNotFoundError はwriteup未検出エラーを生成する。
func NewWriteupNotFoundError(writeupID int64) *APIError {
	return &APIError{
		Code:     ErrCodeWriteupNotFound,
		Message:  fmt.Sprintf("指定されたwriteupが見つかりません: %d", writeupID),
		Category: "validation",
		Action:   "writeup IDを確認してください。",
	}
}

// NewInvalidQueryError は一覧検索パラメータが不正な場合のエラーを生成する。
func NewInvalidQueryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("無効な検索条件です: %s", reason),
		Category: "validation",
		Action:   "sortByはpublishedAtまたはaddedAt、sortOrderはascまたはdesc、pageは1以上を指定してください。",
	}
}

// NewInvalidPayloadError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidPayloadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayload,
		Message:  fmt.Sprintf("リクエストボディが不正です: %s", reason),
		Category: "validation",
		Action:   "JSON形式を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "FEED_URLには http:// または https:// で始まるURLを設定してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、フィードURLへのアクセスがブロックされました。",
		Category: "feed",
		Action:   "ローカルネットワークやプライベートIPのURLはフィードとして利用できません。",
	}
}

// NewFeedFetchFailedError は外部フィード取得失敗エラーを生成する。
func NewFeedFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedFetchFailed,
		Message:  fmt.Sprintf("writeupフィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNoValidWriteupsError は有効なレコードが1件も無かった場合のエラーを生成する。
func NewNoValidWriteupsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoValidWriteups,
		Message:  "有効なwriteupが見つかりませんでした。",
		Category: "ingest",
		Action:   "JSONがwriteupレコードの配列（または data 配列を持つオブジェクト）であることを確認してください。",
	}
}

// NewIngestConflictError は取り込み中の一意制約違反エラーを生成する。
// 同時に取り込みが実行された場合などに発生し、バッチ全体がロールバックされる。
func NewIngestConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeIngestConflict,
		Message:  "writeupの取り込みに失敗しました。",
		Category: "ingest",
		Action:   "他の取り込み処理が完了してから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidWriteupIDError はパスパラメータのwriteup IDが不正な場合のエラーを生成する。
func NewInvalidWriteupIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("無効なwriteup IDです: %q", raw),
		Category: "validation",
		Action:   "writeup IDには正の整数を指定してください。",
	}
}

// NewPayloadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("アップロードサイズが上限（%dバイト）を超えています。", limit),
		Category: "validation",
		Action:   "ファイルを分割してアップロードしてください。",
	}
}
