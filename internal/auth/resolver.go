package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/quill/internal/model"
	"github.com/hitoshi/quill/internal/repository"
)

// Resolver はリクエストの認証情報からユーザーを解決する。
// 検証済みトークンのsubjectに対応するユーザーが未登録の場合は自動作成する。
type Resolver struct {
	verifier TokenVerifier
	userRepo repository.UserRepository
}

// NewResolver はResolverを生成する。
func NewResolver(verifier TokenVerifier, userRepo repository.UserRepository) *Resolver {
	return &Resolver{
		verifier: verifier,
		userRepo: userRepo,
	}
}

// Resolve はbearerトークンを検証し、対応するユーザーを返す。
// 未登録ユーザーの場合はトークンのクレームからusersレコードを自動作成する。
// トークンが不正な場合はUNAUTHORIZEDエラーを返す。
func (r *Resolver) Resolve(ctx context.Context, tokenString string) (*model.User, error) {
	identity, err := r.verifier.Verify(tokenString)
	if err != nil {
		slog.Debug("token verification failed", slog.String("error", err.Error()))
		return nil, model.NewUnauthorizedError()
	}

	user, err := r.userRepo.FindByID(ctx, identity.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	// 自動プロビジョニング。IDはIdPのsubjectをそのまま使う。
	created, err := r.userRepo.Create(ctx, &model.User{
		ID:    identity.Subject,
		Email: identity.Email,
		Name:  displayName(identity),
	})
	if err != nil {
		// メールアドレス衝突を含め、プロビジョニング失敗は認証エラーではなく
		// サーバー側の不整合として扱う
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	slog.Info("new user provisioned",
		slog.String("user_id", created.ID),
		slog.String("email", created.Email),
	)

	return created, nil
}

// ResolveLegacy はx-user-idヘッダーのユーザーIDからユーザーを解決する。
// トークン検証を伴わないため、LEGACY_HEADER_AUTHが有効な場合のみ使用すること。
func (r *Resolver) ResolveLegacy(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	user, err := r.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// displayName は表示名を決定する。nameクレームがない場合は
// メールアドレスのローカル部にフォールバックする。
func displayName(identity *Identity) string {
	if identity.Name != "" {
		return identity.Name
	}
	if at := strings.Index(identity.Email, "@"); at > 0 {
		return identity.Email[:at]
	}
	return identity.Subject
}
