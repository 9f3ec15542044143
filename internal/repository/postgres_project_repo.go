package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/postflow/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

const projectColumns = `id, user_id, name, description, website_url, feed_url, auto_schedule, created_at, updated_at`

// scanProject は1行分のプロジェクトを読み取る。
func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	p := &model.Project{}
	var description, websiteURL, feedURL sql.NullString
	if err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &description, &websiteURL, &feedURL,
		&p.AutoSchedule, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Description = nullStringValue(description)
	p.WebsiteURL = nullStringValue(websiteURL)
	p.FeedURL = nullStringValue(feedURL)
	return p, nil
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.Name, nullString(p.Description), nullString(p.WebsiteURL),
		nullString(p.FeedURL), p.AutoSchedule, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	return p, nil
}

// ListByUserID はユーザーのプロジェクト一覧を作成日時の古い順で返す。
func (r *PostgresProjectRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectProjects(rows)
}

// CountByUserID はユーザーのプロジェクト数を返す。
func (r *PostgresProjectRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("プロジェクト数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Update はプロジェクトの名前・説明・URL・自動予約フラグを更新する。
func (r *PostgresProjectRepo) Update(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE projects SET
		    name = $2, description = $3, website_url = $4, feed_url = $5,
		    auto_schedule = $6, updated_at = $7
		 WHERE id = $1`,
		p.ID, p.Name, nullString(p.Description), nullString(p.WebsiteURL),
		nullString(p.FeedURL), p.AutoSchedule, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロジェクトの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのプロジェクトを削除する。
func (r *PostgresProjectRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}
	return nil
}

// ListAutoSchedule はauto_schedule=trueかつ未予約コンテンツを持つプロジェクトを返す。
func (r *PostgresProjectRepo) ListAutoSchedule(ctx context.Context) ([]*model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects p
		 WHERE p.auto_schedule = true
		   AND EXISTS (
		       SELECT 1 FROM content_items c
		       WHERE c.project_id = p.id AND c.scheduled_at IS NULL
		   )
		 ORDER BY p.updated_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("自動予約対象プロジェクトの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectProjects(rows)
}

func collectProjects(rows *sql.Rows) ([]*model.Project, error) {
	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("プロジェクト行の読み取りに失敗しました: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の走査に失敗しました: %w", err)
	}
	return projects, nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
