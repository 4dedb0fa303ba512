// Package repository はデータ永続化のインターフェースを定義する。
//
// インターフェースの契約はバックエンドに依存しない。プロセス内メモリストアでも
// PostgreSQLでも全操作の意味は同一であり、ローカル実行やテストをDBなしで行える。
// バックエンドは起動時の設定で一括選択される。
package repository

import (
	"context"

	"github.com/hitoshi/quill/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合は(nil, nil)を返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合は(nil, nil)を返す。
	// FindByIDと同一のレコードを返すこと（2つの検索経路の一貫性）。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。IDが空の場合はUUIDを採番し、CreatedAtを現在時刻で設定する。
	// メールアドレスが既に存在する場合はDuplicateEmailエラーを返す。
	Create(ctx context.Context, user *model.User) (*model.User, error)
}

// BlogRepository はブログ記事データの永続化インターフェース。
type BlogRepository interface {
	// FindByID は指定IDのブログを取得する。見つからない場合は(nil, nil)を返す。
	FindByID(ctx context.Context, id string) (*model.Blog, error)

	// FindByIDWithAuthor はブログと解決済みの著者を取得する。
	// ブログが存在しない場合、または著者を解決できない場合（データ整合性違反）は
	// (nil, nil)を返し、後者を個別のエラーとして呼び出し元に露出しない。
	FindByIDWithAuthor(ctx context.Context, id string) (*model.BlogWithAuthor, error)

	// ListByAuthor は指定著者の全ブログをupdated_at降順で返す。下書きも含む。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Blog, error)

	// ListPublished は公開済みブログをcreated_at降順で返す。
	// limit/offsetはフィルタとソートの後に適用される（安定順序上のページネーション）。
	ListPublished(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error)

	// Create はブログを作成する。ID、CreatedAt、UpdatedAtを採番・設定し、Viewsを0にする。
	// 省略されたオプションフィールドは宣言済みデフォルトに正規化する。
	Create(ctx context.Context, blog *model.BlogCreate) (*model.Blog, error)

	// Update は部分更新を既存レコードにマージし、UpdatedAtを現在時刻で再設定する。
	// 指定のないフィールドは変更しない。IDが存在しない場合は(nil, nil)を返す
	// （「未検出」と「権限なし」の区別は上位層が行う）。
	Update(ctx context.Context, id string, updates *model.BlogUpdate) (*model.Blog, error)

	// Delete はブログが存在し、かつauthorIDが著者と一致する場合のみ削除する。
	// 「未検出」と「著者不一致」はどちらもfalseを返し、意図的に区別しない。
	Delete(ctx context.Context, id string, authorID string) (bool, error)

	// IncrementViews は閲覧数カウンタをアトミックに1加算する。
	// ブログが存在しない場合は何もしない。同一IDへの並行呼び出しで更新が失われないこと
	// （read-modify-writeではなく単一の加算式で表現する）。
	IncrementViews(ctx context.Context, id string) error
}
