// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// セッションは外部の認証サービスが発行し、同じsessionsテーブルを共有する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
