package repository

import (
	"errors"
	"testing"

	"github.com/hitoshi/postflow/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresSessionRepoが正しく初期化されることを検証
func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// TestPostgresSessionRepo_DeleteExpired は期限切れセッションのみが削除されることを検証する。
func TestPostgresSessionRepo_DeleteExpired(t *testing.T) {
	db := setupRepoTestDB(t)
	userID := insertTestUser(t, db)

	_, err := db.Exec(`INSERT INTO sessions (id, user_id, expires_at) VALUES
		('expired', $1, now() - interval '1 hour'),
		('alive', $1, now() + interval '1 hour')`, userID)
	if err != nil {
		t.Fatalf("セッション挿入に失敗: %v", err)
	}

	repo := NewPostgresSessionRepo(db)
	n, err := repo.DeleteExpired(t.Context())
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	alive, err := repo.FindByID(t.Context(), "alive")
	if err != nil || alive == nil {
		t.Errorf("alive session should remain: %v, %v", alive, err)
	}
	expired, err := repo.FindByID(t.Context(), "expired")
	if err != nil || expired != nil {
		t.Errorf("expired session should be gone: %v, %v", expired, err)
	}
}

// TestPostgresUserRepo_DeleteByID_NotFound は存在しないユーザーの削除がエラーになることを検証する。
func TestPostgresUserRepo_DeleteByID_NotFound(t *testing.T) {
	db := setupRepoTestDB(t)

	repo := NewPostgresUserRepo(db)
	err := repo.DeleteByID(t.Context(), "00000000-0000-0000-0000-000000000000")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}

// TestPostgresUserRepo_FindAndDelete は取得と削除、削除後にnilが返ることを検証する。
func TestPostgresUserRepo_FindAndDelete(t *testing.T) {
	db := setupRepoTestDB(t)
	userID := insertTestUser(t, db)
	repo := NewPostgresUserRepo(db)

	u, err := repo.FindByID(t.Context(), userID)
	if err != nil || u == nil || u.Name != "Test User" {
		t.Fatalf("FindByID() = %+v, %v", u, err)
	}

	if err := repo.DeleteByID(t.Context(), userID); err != nil {
		t.Fatalf("DeleteByID returned error: %v", err)
	}
	if u, err := repo.FindByID(t.Context(), userID); err != nil || u != nil {
		t.Errorf("FindByID after delete = %+v, %v; want nil, nil", u, err)
	}
}
