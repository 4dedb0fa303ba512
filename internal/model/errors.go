// Package model はドメインモデルを定義する。
package model

import "fmt"

// FieldViolation はバリデーションエラーのフィールド単位の詳細を表す。
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// Violationsはバリデーションエラー時のみ設定される。
type APIError struct {
	Code       string           // エラーコード
	Message    string           // エラーメッセージ
	Category   string           // カテゴリ: auth, validation, blog, system
	Action     string           // ユーザー向け対処方法
	Violations []FieldViolation // フィールド単位の違反（バリデーションエラーのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeAccessDenied     = "ACCESS_DENIED"
	ErrCodeBlogNotFound     = "BLOG_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeDuplicateEmail   = "DUPLICATE_EMAIL"
	ErrCodeRegistrationGone = "REGISTRATION_GONE"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証エラーを生成する。
// 認証情報の欠落と検証失敗のどちらでも同じエラーを返す。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAccessDeniedError は認可エラー（他人のリソースへの操作）を生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分が作成したブログに対してのみ実行できます。",
	}
}

// NewBlogNotFoundError はブログ未検出エラーを生成する。
func NewBlogNotFoundError(blogID string) *APIError {
	return &APIError{
		Code:     ErrCodeBlogNotFound,
		Message:  fmt.Sprintf("指定されたブログが見つかりません: %s", blogID),
		Category: "blog",
		Action:   "ブログIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewValidationError はフィールド単位の詳細付きバリデーションエラーを生成する。
func NewValidationError(violations []FieldViolation) *APIError {
	return &APIError{
		Code:       ErrCodeValidationFailed,
		Message:    "入力内容に誤りがあります。",
		Category:   "validation",
		Action:     "errorsの各フィールドを修正して再送信してください。",
		Violations: violations,
	}
}

// NewDuplicateEmailError はメールアドレスの一意性違反エラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
		Action:   "登録済みのアカウントでログインしてください。",
	}
}

// NewRegistrationGoneError は廃止済みの登録エンドポイントへのアクセスエラーを生成する。
func NewRegistrationGoneError() *APIError {
	return &APIError{
		Code:     ErrCodeRegistrationGone,
		Message:  "このエンドポイントは廃止されました。",
		Category: "auth",
		Action:   "Bearerトークンによる認証を使用してください。初回認証時にユーザーは自動作成されます。",
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
