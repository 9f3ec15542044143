package model

import "time"

// ContentKind はコンテンツの種別を表す。
type ContentKind string

const (
	// ContentKindPost はSNS投稿。
	ContentKindPost ContentKind = "post"
	// ContentKindEbook は電子書籍（章単位）。
	ContentKindEbook ContentKind = "ebook"
)

// Valid は種別が定義済みの値かを返す。
func (k ContentKind) Valid() bool {
	return k == ContentKindPost || k == ContentKindEbook
}

// ContentItem はプロジェクトに属する配信待ちのコンテンツを表す。
// ScheduledAtがnilのものが自動予約の対象になる。
type ContentItem struct {
	ID          string
	ProjectID   string
	Kind        ContentKind
	Platform    string // instagram, x, linkedin など。ebookでは空
	Title       string
	Body        string // サニタイズ済みHTML
	SourceURL   string // フィードインポート元の記事URL
	SourceGUID  string // フィードインポート時の重複判定キー
	ScheduledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentFilter はコンテンツ一覧のフィルタ種別を表す。
type ContentFilter string

const (
	// ContentFilterAll は全件を表示するフィルタ。
	ContentFilterAll ContentFilter = "all"
	// ContentFilterScheduled は予約済みのみを表示するフィルタ。
	ContentFilterScheduled ContentFilter = "scheduled"
	// ContentFilterUnscheduled は未予約のみを表示するフィルタ。
	ContentFilterUnscheduled ContentFilter = "unscheduled"
)

// ParsedEntry はブログフィードから取得した未保存の記事データを表す。
// インポーターがフィードをパースした後、ContentItemに変換される。
type ParsedEntry struct {
	GUID        string
	Title       string
	Link        string
	Content     string // 未サニタイズのHTML
	PublishedAt *time.Time
}
