// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/repository"
)

// Service はユーザー管理のサービス層。
// プロフィール取得と退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// Me はログイン中のユーザーを返す。
func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// セッションを先に削除してから、ユーザーを削除する。
// projects、content_items、user_settingsはCASCADE削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if _, err := s.Me(ctx, userID); err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
