// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultTheme はブログのテーマ未指定時のデフォルト値。
const DefaultTheme = "modern"

// Blog はブログ記事を表す。
// Contentはサニタイズ済みのリッチHTML。ViewsはバックエンドによらずInt64として扱う
// （一部の外部ストアは文字列で保持するが、それはワイヤ表現の都合でありモデルの関心ではない）。
type Blog struct {
	ID          string
	Title       string
	Content     string
	Excerpt     string
	AuthorID    string
	Category    string
	Theme       string
	Tags        []string
	IsPublished bool
	Views       int64
	MediaURLs   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BlogWithAuthor はブログ記事と解決済みの著者を結合した読み取り専用ビュー。
// 永続化されることはない。
type BlogWithAuthor struct {
	Blog
	Author User
}

// BlogCreate はブログ作成時の入力。
// ID、タイムスタンプ、Viewsはストレージ層が付与する。
// 省略されたオプションフィールドは宣言済みデフォルトに正規化される。
type BlogCreate struct {
	Title       string
	Content     string
	Excerpt     string
	AuthorID    string
	Category    string
	Theme       string
	Tags        []string
	IsPublished bool
	MediaURLs   []string
}

// BlogUpdate はブログの部分更新の入力。
// nilフィールドは変更せず、既存の値を維持する。
// スライスはnilのとき未指定、空スライスのとき「空に更新」を意味する。
type BlogUpdate struct {
	Title       *string
	Content     *string
	Excerpt     *string
	Category    *string
	Theme       *string
	Tags        []string
	IsPublished *bool
	MediaURLs   []string
}
