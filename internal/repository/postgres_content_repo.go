package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/postflow/internal/model"
)

// PostgresContentRepo はPostgreSQLを使用したコンテンツリポジトリ。
type PostgresContentRepo struct {
	db *sql.DB
}

// NewPostgresContentRepo はPostgresContentRepoを生成する。
func NewPostgresContentRepo(db *sql.DB) *PostgresContentRepo {
	return &PostgresContentRepo{db: db}
}

const contentColumns = `id, project_id, kind, platform, title, body, source_url, source_guid,
	scheduled_at, created_at, updated_at`

func scanContent(row interface{ Scan(...any) error }) (*model.ContentItem, error) {
	c := &model.ContentItem{}
	var kind string
	var platform, title, sourceURL, sourceGUID sql.NullString
	var scheduledAt sql.NullTime
	if err := row.Scan(
		&c.ID, &c.ProjectID, &kind, &platform, &title, &c.Body,
		&sourceURL, &sourceGUID, &scheduledAt, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Kind = model.ContentKind(kind)
	c.Platform = nullStringValue(platform)
	c.Title = nullStringValue(title)
	c.SourceURL = nullStringValue(sourceURL)
	c.SourceGUID = nullStringValue(sourceGUID)
	if scheduledAt.Valid {
		c.ScheduledAt = &scheduledAt.Time
	}
	return c, nil
}

// Create はコンテンツを作成する。
func (r *PostgresContentRepo) Create(ctx context.Context, c *model.ContentItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO content_items (`+contentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.ProjectID, string(c.Kind), nullString(c.Platform), nullString(c.Title), c.Body,
		nullString(c.SourceURL), nullString(c.SourceGUID), c.ScheduledAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コンテンツの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのコンテンツを取得する。見つからない場合はnilを返す。
func (r *PostgresContentRepo) FindByID(ctx context.Context, id string) (*model.ContentItem, error) {
	c, err := scanContent(r.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コンテンツの取得に失敗しました: %w", err)
	}
	return c, nil
}

// ListByProject はプロジェクトのコンテンツ一覧を作成日時の新しい順で返す。
// cursorがゼロ値の場合は先頭から取得する。
func (r *PostgresContentRepo) ListByProject(
	ctx context.Context,
	projectID string,
	filter model.ContentFilter,
	cursor time.Time,
	limit int,
) ([]*model.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE project_id = $1`
	args := []interface{}{projectID}
	argIndex := 2

	// カーソルベースページネーション
	if !cursor.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", argIndex)
		args = append(args, cursor)
		argIndex++
	}

	switch filter {
	case model.ContentFilterScheduled:
		query += " AND scheduled_at IS NOT NULL"
	case model.ContentFilterUnscheduled:
		query += " AND scheduled_at IS NULL"
	case model.ContentFilterAll:
		// 全件: 追加条件なし
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.ContentItem
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("コンテンツ行の読み取りに失敗しました: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// ListUnscheduled はscheduled_atがNULLのコンテンツをcreated_at昇順（同時刻はid昇順）で返す。
func (r *PostgresContentRepo) ListUnscheduled(ctx context.Context, projectID string) ([]model.SchedulableItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM content_items
		 WHERE project_id = $1 AND scheduled_at IS NULL
		 ORDER BY created_at ASC, id ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("未予約コンテンツの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.SchedulableItem
	for rows.Next() {
		var it model.SchedulableItem
		if err := rows.Scan(&it.ID); err != nil {
			return nil, fmt.Errorf("未予約コンテンツ行の読み取りに失敗しました: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未予約コンテンツの走査に失敗しました: %w", err)
	}
	return items, nil
}

// LatestScheduledAt はプロジェクト内で最も遅いscheduled_atを返す。予約済みがなければnil。
func (r *PostgresContentRepo) LatestScheduledAt(ctx context.Context, projectID string) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(scheduled_at) FROM content_items WHERE project_id = $1`,
		projectID,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("最終予約日時の取得に失敗しました: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// SetScheduledAt はコンテンツのscheduled_atを設定する。
func (r *PostgresContentRepo) SetScheduledAt(ctx context.Context, itemID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE content_items SET scheduled_at = $2, updated_at = now() WHERE id = $1`,
		itemID, at,
	)
	if err != nil {
		return fmt.Errorf("予約日時の更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("content item not found: %s", itemID)
	}
	return nil
}

// ClearScheduledAt はコンテンツのscheduled_atをNULLに戻す。
func (r *PostgresContentRepo) ClearScheduledAt(ctx context.Context, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE content_items SET scheduled_at = NULL, updated_at = now() WHERE id = $1`,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("予約の解除に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのコンテンツを削除する。
func (r *PostgresContentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM content_items WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("コンテンツの削除に失敗しました: %w", err)
	}
	return nil
}

// ExistsBySourceGUID はフィードインポート時の重複判定に使う。
func (r *PostgresContentRepo) ExistsBySourceGUID(ctx context.Context, projectID, guid string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM content_items WHERE project_id = $1 AND source_guid = $2
		 )`,
		projectID, guid,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("インポート済み記事の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ContentRepository = (*PostgresContentRepo)(nil)
