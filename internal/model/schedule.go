package model

import "time"

// DayTypeConfig は1種類の曜日区分（平日/週末）の投稿スロット設定。
// Countは表示用でlen(Hours)から導出される。
type DayTypeConfig struct {
	Count int      `json:"count"`
	Hours []string `json:"hours"` // "HH:MM"（ゼロ埋め24時間表記）
}

// ScheduleTemplate はユーザーごとの週次投稿スロットのテンプレート。
type ScheduleTemplate struct {
	Workdays DayTypeConfig `json:"workdays"`
	Weekends DayTypeConfig `json:"weekends"`
}

// SchedulableItem は自動予約の入力となるコンテンツ。
type SchedulableItem struct {
	ID          string
	ScheduledAt *time.Time
}

// ScheduleAssignment は自動予約の結果（1コンテンツにつき1件）。
type ScheduleAssignment struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
