package scheduling

import (
	"context"
	"fmt"

	"github.com/hitoshi/postflow/internal/model"
)

// TemplateStore は投稿スロット設定の永続化インターフェース。
type TemplateStore interface {
	TemplateReader
	// Upsert はユーザーのテンプレートを保存する（存在すれば上書き）。
	Upsert(ctx context.Context, userID string, t model.ScheduleTemplate) error
}

// TemplateService は投稿スロット設定の取得・保存を行う。
// 保存時に検証と正規化を済ませることで、Assignに不正な設定が渡らないようにする。
type TemplateService struct {
	store TemplateStore
}

// NewTemplateService はTemplateServiceの新しいインスタンスを生成する。
func NewTemplateService(store TemplateStore) *TemplateService {
	return &TemplateService{store: store}
}

// Get はユーザーのテンプレートを返す。未保存の場合は既定値とisDefault=trueを返す。
func (s *TemplateService) Get(ctx context.Context, userID string) (model.ScheduleTemplate, bool, error) {
	stored, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return model.ScheduleTemplate{}, false, fmt.Errorf("投稿スロット設定の取得に失敗しました: %w", err)
	}
	if stored == nil {
		return DefaultTemplate(), true, nil
	}
	return *stored, false, nil
}

// Save はテンプレートを検証・正規化（重複除去・ソート・Count再計算）して保存する。
func (s *TemplateService) Save(ctx context.Context, userID string, t model.ScheduleTemplate) (model.ScheduleTemplate, error) {
	if err := ValidateTemplate(t); err != nil {
		return model.ScheduleTemplate{}, err
	}
	normalized := NormalizeTemplate(t)
	if err := s.store.Upsert(ctx, userID, normalized); err != nil {
		return model.ScheduleTemplate{}, fmt.Errorf("投稿スロット設定の保存に失敗しました: %w", err)
	}
	return normalized, nil
}
