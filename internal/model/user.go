// Package model はドメインモデルを定義する。
package model

import "time"

// User はブログの執筆・閲覧を行うユーザーを表す。
// IDは外部IdP（Firebase/Supabase等）が発行したsubject、または登録時に生成されたUUID。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}
