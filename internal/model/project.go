package model

import "time"

// Project はユーザーが運用するブランド（投稿の単位）を表す。
type Project struct {
	ID           string
	UserID       string
	Name         string
	Description  string
	WebsiteURL   string
	FeedURL      string // インポート元のブログフィード。未検出の場合は空
	AutoSchedule bool   // trueの場合ワーカーが定期的に自動予約を実行する
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
