package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quill/internal/model"
)

// UserServiceInterface はユーザー取得サービスのインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// userResponse はユーザーのAPIレスポンス表現。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// userEnvelope は単一ユーザーのレスポンスエンベロープ。
type userEnvelope struct {
	User userResponse `json:"user"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

// UserHandler はユーザー関連のHTTPハンドラー。
type UserHandler struct {
	userService UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(userService UserServiceInterface) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetUser はGET /api/user/{userId}を処理する。公開プロフィールのため認証不要。
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	found, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(found)})
}
