// Package project はプロジェクト（ブランド）管理のドメインロジックを提供する。
package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/repository"
	"github.com/hitoshi/postflow/internal/security"
)

const (
	// MaxProjectsPerUser は1ユーザーが作成できるプロジェクト数の上限。
	MaxProjectsPerUser = 50
	// maxNameLength はプロジェクト名の最大文字数。
	maxNameLength = 100
)

// URLValidator はURLの静的検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// CreateInput はプロジェクト作成時の入力。
type CreateInput struct {
	Name         string
	Description  string
	WebsiteURL   string
	FeedURL      string
	AutoSchedule bool
}

// UpdateInput はプロジェクト更新時の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name         *string
	Description  *string
	WebsiteURL   *string
	FeedURL      *string
	AutoSchedule *bool
}

// Service はプロジェクト管理のサービス層。
type Service struct {
	projectRepo repository.ProjectRepository
	urls        URLValidator
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(projectRepo repository.ProjectRepository, urls URLValidator) *Service {
	return &Service{
		projectRepo: projectRepo,
		urls:        urls,
		now:         time.Now,
	}
}

// Create はプロジェクトを作成する。
// 名前は必須で、ユーザーあたりMaxProjectsPerUser件まで作成できる。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Project, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.validateURLs(in.WebsiteURL, in.FeedURL); err != nil {
		return nil, err
	}

	count, err := s.projectRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト数の取得に失敗しました: %w", err)
	}
	if count >= MaxProjectsPerUser {
		return nil, model.NewProjectLimitError(MaxProjectsPerUser)
	}

	now := s.now()
	p := &model.Project{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		WebsiteURL:   strings.TrimSpace(in.WebsiteURL),
		FeedURL:      strings.TrimSpace(in.FeedURL),
		AutoSchedule: in.AutoSchedule,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}
	return p, nil
}

// List はユーザーのプロジェクト一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Project, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	projects, err := s.projectRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	return projects, nil
}

// Get はユーザーが所有するプロジェクトを返す。
// 他ユーザーのプロジェクトは存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
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

// Update はプロジェクトの指定されたフィールドだけを更新する。
// WebsiteURLを変更してFeedURLを指定しなかった場合、検出済みのフィードURLはクリアする。
func (s *Service) Update(ctx context.Context, userID, projectID string, in UpdateInput) (*model.Project, error) {
	p, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name, err := validateName(*in.Name)
		if err != nil {
			return nil, err
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.WebsiteURL != nil {
		websiteURL := strings.TrimSpace(*in.WebsiteURL)
		if err := s.validateURLs(websiteURL); err != nil {
			return nil, err
		}
		if websiteURL != p.WebsiteURL && in.FeedURL == nil {
			p.FeedURL = ""
		}
		p.WebsiteURL = websiteURL
	}
	if in.FeedURL != nil {
		feedURL := strings.TrimSpace(*in.FeedURL)
		if err := s.validateURLs(feedURL); err != nil {
			return nil, err
		}
		p.FeedURL = feedURL
	}
	if in.AutoSchedule != nil {
		p.AutoSchedule = *in.AutoSchedule
	}

	p.UpdatedAt = s.now()
	if err := s.projectRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("プロジェクトの更新に失敗しました: %w", err)
	}
	return p, nil
}

// Delete はプロジェクトを削除する。配下のコンテンツも削除される。
func (s *Service) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", model.NewInvalidRequestError("プロジェクト名は必須です")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", model.NewInvalidRequestError(fmt.Sprintf("プロジェクト名は%d文字以内で入力してください", maxNameLength))
	}
	return name, nil
}

// validateURLs は空でないURLをSSRFガードで検証する。空文字列は未設定として許可する。
func (s *Service) validateURLs(urls ...string) error {
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if err := s.urls.ValidateURL(raw); err != nil {
			if errors.Is(err, security.ErrBlockedDestination) {
				return model.NewSSRFBlockedError()
			}
			return model.NewInvalidURLError(raw)
		}
	}
	return nil
}
