// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/postflow/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーの作成は外部の認証サービスが行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するprojects、content_items、user_settings、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error

	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// ListByUserID はユーザーのプロジェクト一覧を作成日時の古い順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Project, error)

	// CountByUserID はユーザーのプロジェクト数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Update はプロジェクトの名前・説明・URL・自動予約フラグを更新する。
	Update(ctx context.Context, project *model.Project) error

	// Delete は指定IDのプロジェクトを削除する。content_itemsはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ListAutoSchedule はauto_schedule=trueかつ未予約コンテンツを持つプロジェクトを返す。
	ListAutoSchedule(ctx context.Context) ([]*model.Project, error)
}

// ContentRepository はコンテンツデータの永続化インターフェース。
type ContentRepository interface {
	// Create はコンテンツを作成する。
	Create(ctx context.Context, item *model.ContentItem) error

	// FindByID は指定IDのコンテンツを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ContentItem, error)

	// ListByProject はプロジェクトのコンテンツ一覧を作成日時の新しい順で返す。
	// cursorがゼロ値の場合は先頭から取得する。
	// filter: "all"=全件, "scheduled"=予約済みのみ, "unscheduled"=未予約のみ
	ListByProject(ctx context.Context, projectID string, filter model.ContentFilter, cursor time.Time, limit int) ([]*model.ContentItem, error)

	// ListUnscheduled はscheduled_atがNULLのコンテンツをcreated_at昇順（同時刻はid昇順）で返す。
	ListUnscheduled(ctx context.Context, projectID string) ([]model.SchedulableItem, error)

	// LatestScheduledAt はプロジェクト内で最も遅いscheduled_atを返す。予約済みがなければnil。
	LatestScheduledAt(ctx context.Context, projectID string) (*time.Time, error)

	// SetScheduledAt はコンテンツのscheduled_atを設定する。同じ値での再実行は冪等。
	SetScheduledAt(ctx context.Context, itemID string, at time.Time) error

	// ClearScheduledAt はコンテンツのscheduled_atをNULLに戻す。
	ClearScheduledAt(ctx context.Context, itemID string) error

	// Delete は指定IDのコンテンツを削除する。
	Delete(ctx context.Context, id string) error

	// ExistsBySourceGUID はフィードインポート時の重複判定に使う。
	ExistsBySourceGUID(ctx context.Context, projectID, guid string) (bool, error)
}

// ScheduleTemplateRepository は投稿スロット設定の永続化インターフェース。
// user_settings.schedule_template（JSONB）に保存する。
type ScheduleTemplateRepository interface {
	// FindByUserID は保存済みテンプレートを返す。未保存の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.ScheduleTemplate, error)

	// Upsert はユーザーのテンプレートを保存する（存在すれば上書き）。
	Upsert(ctx context.Context, userID string, t model.ScheduleTemplate) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
