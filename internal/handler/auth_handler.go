package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/quill/internal/model"
	"github.com/hitoshi/quill/internal/user"
)

// RegisterServiceInterface はユーザー登録サービスのインターフェース。
type RegisterServiceInterface interface {
	Register(ctx context.Context, input *user.RegisterInput) (*model.User, error)
}

// registerRequest はPOST /api/auth/registerのリクエストボディ。
type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthHandler は認証関連のHTTPハンドラー。
// 通常運用ではユーザーはトークン初回検証時に自動作成されるため、
// 明示的な登録エンドポイントはレガシーヘッダー認証が有効な場合のみ提供する。
type AuthHandler struct {
	registerService  RegisterServiceInterface
	legacyHeaderAuth bool
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(registerService RegisterServiceInterface, legacyHeaderAuth bool) *AuthHandler {
	return &AuthHandler{
		registerService:  registerService,
		legacyHeaderAuth: legacyHeaderAuth,
	}
}

// Register はPOST /api/auth/registerを処理する。
// レガシーヘッダー認証が無効な場合は410 Goneを返す。
// 同一メールアドレスでの再登録は既存ユーザーを200で返す（冪等）。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.legacyHeaderAuth {
		gone := model.NewRegistrationGoneError()
		writeAPIErrorResponse(w, http.StatusGone, gone)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyError(w)
		return
	}

	registered, err := h.registerService.Register(r.Context(), &user.RegisterInput{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(registered)})
}
