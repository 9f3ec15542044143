package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/postflow/internal/model"
)

// PostgresScheduleTemplateRepo はuser_settings.schedule_template（JSONB）を扱うリポジトリ。
type PostgresScheduleTemplateRepo struct {
	db *sql.DB
}

// NewPostgresScheduleTemplateRepo はPostgresScheduleTemplateRepoを生成する。
func NewPostgresScheduleTemplateRepo(db *sql.DB) *PostgresScheduleTemplateRepo {
	return &PostgresScheduleTemplateRepo{db: db}
}

// FindByUserID は保存済みテンプレートを返す。
// user_settingsの行がない場合、またはschedule_templateがNULLの場合はnilを返す。
func (r *PostgresScheduleTemplateRepo) FindByUserID(ctx context.Context, userID string) (*model.ScheduleTemplate, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT schedule_template FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿スロット設定の取得に失敗しました: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var t model.ScheduleTemplate
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("投稿スロット設定のデコードに失敗しました: %w", err)
	}
	return &t, nil
}

// Upsert はユーザーのテンプレートを保存する（存在すれば上書き）。
// lib/pqは[]byteをbyteaとして送るため、JSONBには文字列で渡す。
func (r *PostgresScheduleTemplateRepo) Upsert(ctx context.Context, userID string, t model.ScheduleTemplate) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("投稿スロット設定のエンコードに失敗しました: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, schedule_template, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET schedule_template = EXCLUDED.schedule_template, updated_at = now()`,
		userID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("投稿スロット設定の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ScheduleTemplateRepository = (*PostgresScheduleTemplateRepo)(nil)
