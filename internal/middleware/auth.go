// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/quill/internal/model"
)

// legacyUserIDHeader は旧クライアント互換のユーザーIDヘッダー。
// トークン検証を伴わないため、設定で明示的に有効化した場合のみ受け付ける。
const legacyUserIDHeader = "X-User-Id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// UserResolver は認証情報からユーザーを解決するインターフェース。
// auth.Resolverの抽象化。
type UserResolver interface {
	Resolve(ctx context.Context, tokenString string) (*model.User, error)
	ResolveLegacy(ctx context.Context, userID string) (*model.User, error)
}

// NewAuthMiddleware は認証必須エンドポイント用のミドルウェアを返す。
// Authorization: Bearerトークンを検証し、認証済みユーザーをコンテキストに注入する。
// legacyHeaderAuthが有効な場合はX-User-Idヘッダーによる認証も受け付ける。
// 認証情報がない・不正な場合は401を返す。
func NewAuthMiddleware(resolver UserResolver, legacyHeaderAuth bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveRequestUser(r, resolver, legacyHeaderAuth)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}
			if user == nil {
				writeUnauthorized(w, nil)
				return
			}

			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware は認証任意エンドポイント用のミドルウェアを返す。
// 認証情報がなければ匿名のまま通過させる。認証情報が付いているのに
// 不正な場合は401を返す（黙って匿名扱いにしない）。
func NewOptionalAuthMiddleware(resolver UserResolver, legacyHeaderAuth bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveRequestUser(r, resolver, legacyHeaderAuth)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}

			ctx := r.Context()
			if user != nil {
				ctx = ContextWithUser(ctx, user)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveRequestUser はリクエストの認証情報からユーザーを解決する。
// 認証情報がない場合は(nil, nil)を返す。
func resolveRequestUser(r *http.Request, resolver UserResolver, legacyHeaderAuth bool) (*model.User, error) {
	if token, ok := bearerToken(r); ok {
		return resolver.Resolve(r.Context(), token)
	}

	if legacyHeaderAuth {
		if userID := r.Header.Get(legacyUserIDHeader); userID != "" {
			return resolver.ResolveLegacy(r.Context(), userID)
		}
	}

	return nil, nil
}

// bearerToken はAuthorizationヘッダーからbearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// writeUnauthorized は401レスポンスを書き込む。
// 解決中の内部エラーはUNAUTHORIZEDに変換せず500として扱う。
func writeUnauthorized(w http.ResponseWriter, err error) {
	if err != nil {
		if apiErr, ok := err.(*model.APIError); ok {
			WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
			return
		}
		slog.Error("failed to resolve request user",
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
		return
	}
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("user not found in context")
	}
	return user.ID, nil
}
