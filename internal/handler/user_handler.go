package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// UserDirectory はユーザー参照に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	AnyExists(ctx context.Context) (bool, error)
}

// UserHandler はユーザー関連のHTTPハンドラー。
type UserHandler struct {
	users UserDirectory
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserDirectory) *UserHandler {
	return &UserHandler{users: users}
}

// Exists はユーザーが1人以上登録済みかを返す。
// 画面側は登録とログインのどちらを表示するかの判定に使うため、認証を要求しない。
// GET /api/users/exists
func (h *UserHandler) Exists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.users.AnyExists(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userExistsResponse{Exists: exists})
}

// Me はログイン中ユーザーのプロフィールを返す。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		// セッションは有効だがユーザー行が消えている
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
