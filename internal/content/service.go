// Package content はコンテンツ（SNS投稿・電子書籍の章）管理のドメインロジックを提供する。
package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// BodySanitizer はコンテンツ種別に応じて本文をサニタイズする。
type BodySanitizer interface {
	ForKind(kind model.ContentKind, raw string) string
	PlainText(rawHTML string) string
}

// CreateInput はコンテンツ作成時の入力。
type CreateInput struct {
	Kind        string
	Platform    string
	Title       string
	Body        string
	ScheduledAt *time.Time
}

// ListResult はページング付きのコンテンツ一覧。
type ListResult struct {
	Items   []*model.ContentItem
	HasMore bool
}

// Service はコンテンツ管理のサービス層。
// すべての操作でコンテンツが属するプロジェクトの所有者を確認する。
type Service struct {
	projectRepo repository.ProjectRepository
	contentRepo repository.ContentRepository
	sanitizer   BodySanitizer
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	projectRepo repository.ProjectRepository,
	contentRepo repository.ContentRepository,
	sanitizer BodySanitizer,
) *Service {
	return &Service{
		projectRepo: projectRepo,
		contentRepo: contentRepo,
		sanitizer:   sanitizer,
		now:         time.Now,
	}
}

// Create はプロジェクトにコンテンツを追加する。
// ScheduledAtを省略した場合は未予約として作成され、自動予約の対象になる。
func (s *Service) Create(ctx context.Context, userID, projectID string, in CreateInput) (*model.ContentItem, error) {
	if _, err := s.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	kind := model.ContentKind(strings.ToLower(strings.TrimSpace(in.Kind)))
	if !kind.Valid() {
		return nil, model.NewInvalidContentKindError(in.Kind)
	}

	body := s.sanitizer.ForKind(kind, in.Body)
	if strings.TrimSpace(body) == "" {
		return nil, model.NewInvalidRequestError("本文は必須です")
	}

	scheduledAt := truncateToMinute(in.ScheduledAt)
	if scheduledAt != nil && !scheduledAt.After(s.now()) {
		return nil, model.NewScheduleInPastError()
	}

	now := s.now()
	item := &model.ContentItem{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Kind:        kind,
		Platform:    strings.ToLower(strings.TrimSpace(in.Platform)),
		Title:       s.sanitizer.PlainText(in.Title),
		Body:        body,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.contentRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("コンテンツの作成に失敗しました: %w", err)
	}
	return item, nil
}

// List はプロジェクトのコンテンツを作成日時の新しい順で返す。
// filterが空の場合はallとして扱う。cursorには前ページ最後のCreatedAtを渡す。
func (s *Service) List(ctx context.Context, userID, projectID, filter string, cursor time.Time, limit int) (*ListResult, error) {
	if _, err := s.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	f := model.ContentFilter(filter)
	switch f {
	case "":
		f = model.ContentFilterAll
	case model.ContentFilterAll, model.ContentFilterScheduled, model.ContentFilterUnscheduled:
	default:
		return nil, model.NewInvalidFilterError(filter)
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	// 次ページの有無を判定するため1件多く取得する
	items, err := s.contentRepo.ListByProject(ctx, projectID, f, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の取得に失敗しました: %w", err)
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	return &ListResult{Items: items, HasMore: hasMore}, nil
}

// Get はユーザーが所有するプロジェクトのコンテンツを返す。
func (s *Service) Get(ctx context.Context, userID, contentID string) (*model.ContentItem, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	item, err := s.contentRepo.FindByID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("コンテンツの取得に失敗しました: %w", err)
	}
	if item == nil {
		return nil, model.NewContentNotFoundError(contentID)
	}

	p, err := s.projectRepo.FindByID(ctx, item.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if p == nil || p.UserID != userID {
		return nil, model.NewContentNotFoundError(contentID)
	}
	return item, nil
}

// Schedule はコンテンツの予約日時を手動で設定する。
// 過去の日時は指定できない。秒以下は切り捨てる。
func (s *Service) Schedule(ctx context.Context, userID, contentID string, at time.Time) (*model.ContentItem, error) {
	item, err := s.Get(ctx, userID, contentID)
	if err != nil {
		return nil, err
	}
	scheduled := truncateToMinute(&at)
	if !scheduled.After(s.now()) {
		return nil, model.NewScheduleInPastError()
	}

	if err := s.contentRepo.SetScheduledAt(ctx, item.ID, *scheduled); err != nil {
		return nil, fmt.Errorf("予約日時の保存に失敗しました: %w", err)
	}
	item.ScheduledAt = scheduled
	return item, nil
}

// Unschedule はコンテンツの予約を取り消し、自動予約の対象に戻す。
func (s *Service) Unschedule(ctx context.Context, userID, contentID string) (*model.ContentItem, error) {
	item, err := s.Get(ctx, userID, contentID)
	if err != nil {
		return nil, err
	}
	if err := s.contentRepo.ClearScheduledAt(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("予約の取り消しに失敗しました: %w", err)
	}
	item.ScheduledAt = nil
	return item, nil
}

// Delete はコンテンツを削除する。
func (s *Service) Delete(ctx context.Context, userID, contentID string) error {
	item, err := s.Get(ctx, userID, contentID)
	if err != nil {
		return err
	}
	if err := s.contentRepo.Delete(ctx, item.ID); err != nil {
		return fmt.Errorf("コンテンツの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) ownedProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	p, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if p == nil || p.UserID != userID {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return p, nil
}

// truncateToMinute は予約日時を自動予約のスロットと同じ分単位にそろえる。
func truncateToMinute(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Truncate(time.Minute)
	return &v
}
