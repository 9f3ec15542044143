package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/security"
)

// --- モック ---

type mockProjectRepo struct {
	projects map[string]*model.Project
	countFn  func(ctx context.Context, userID string) (int, error)
	createFn func(ctx context.Context, p *model.Project) error
	deleted  []string
}

func newMockProjectRepo(projects ...*model.Project) *mockProjectRepo {
	m := &mockProjectRepo{projects: make(map[string]*model.Project)}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mockProjectRepo) Create(ctx context.Context, p *model.Project) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, p); err != nil {
			return err
		}
	}
	m.projects[p.ID] = p
	return nil
}

func (m *mockProjectRepo) FindByID(_ context.Context, id string) (*model.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProjectRepo) ListByUserID(_ context.Context, userID string) ([]*model.Project, error) {
	var result []*model.Project
	for _, p := range m.projects {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockProjectRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID)
	}
	projects, _ := m.ListByUserID(ctx, userID)
	return len(projects), nil
}

func (m *mockProjectRepo) Update(_ context.Context, p *model.Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *mockProjectRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.projects, id)
	return nil
}

func (m *mockProjectRepo) ListAutoSchedule(context.Context) ([]*model.Project, error) {
	return nil, nil
}

type mockURLValidator struct {
	blocked map[string]error
}

func (m *mockURLValidator) ValidateURL(rawURL string) error {
	return m.blocked[rawURL]
}

func newTestService(repo *mockProjectRepo) *Service {
	s := NewService(repo, &mockURLValidator{blocked: map[string]error{
		"http://10.0.0.1/":   fmt.Errorf("%w: 10.0.0.1", security.ErrBlockedDestination),
		"ftp://example.com/": fmt.Errorf("%w: scheme", security.ErrInvalidURL),
	}})
	s.now = func() time.Time { return time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC) }
	return s
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T (%v)", code, err, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %s, want %s", apiErr.Code, code)
	}
}

func strPtr(s string) *string { return &s }

// --- Create ---

func TestCreate(t *testing.T) {
	repo := newMockProjectRepo()
	s := newTestService(repo)

	p, err := s.Create(context.Background(), "u1", CreateInput{
		Name:         "  Brand A  ",
		WebsiteURL:   "https://brand-a.example.com",
		AutoSchedule: true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if p.ID == "" || p.UserID != "u1" || p.Name != "Brand A" || !p.AutoSchedule {
		t.Errorf("unexpected project: %+v", p)
	}
	if !p.CreatedAt.Equal(s.now()) || !p.UpdatedAt.Equal(s.now()) {
		t.Errorf("timestamps should be set: %+v", p)
	}
	if _, ok := repo.projects[p.ID]; !ok {
		t.Error("project should be persisted")
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		in       CreateInput
		wantCode string
	}{
		{"未認証", "", CreateInput{Name: "A"}, model.ErrCodeUnauthorized},
		{"名前なし", "u1", CreateInput{Name: "   "}, model.ErrCodeInvalidRequest},
		{"名前が長すぎる", "u1", CreateInput{Name: strings.Repeat("あ", 101)}, model.ErrCodeInvalidRequest},
		{"内部アドレス", "u1", CreateInput{Name: "A", WebsiteURL: "http://10.0.0.1/"}, model.ErrCodeSSRFBlocked},
		{"不正なフィードURL", "u1", CreateInput{Name: "A", FeedURL: "ftp://example.com/"}, model.ErrCodeInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockProjectRepo()
			_, err := newTestService(repo).Create(context.Background(), tt.userID, tt.in)
			assertAPIErrorCode(t, err, tt.wantCode)
			if len(repo.projects) != 0 {
				t.Error("nothing should be persisted")
			}
		})
	}
}

func TestCreate_Limit(t *testing.T) {
	repo := newMockProjectRepo()
	repo.countFn = func(context.Context, string) (int, error) { return MaxProjectsPerUser, nil }

	_, err := newTestService(repo).Create(context.Background(), "u1", CreateInput{Name: "A"})
	assertAPIErrorCode(t, err, model.ErrCodeProjectLimit)
}

func TestCreate_RepositoryError(t *testing.T) {
	repo := newMockProjectRepo()
	repo.createFn = func(context.Context, *model.Project) error { return errors.New("db down") }

	_, err := newTestService(repo).Create(context.Background(), "u1", CreateInput{Name: "A"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("repository errors should not become APIError: %v", err)
	}
}

// --- Get / List ---

func TestGet_Ownership(t *testing.T) {
	repo := newMockProjectRepo(&model.Project{ID: "p1", UserID: "u1", Name: "A"})
	s := newTestService(repo)

	if _, err := s.Get(context.Background(), "u1", "p1"); err != nil {
		t.Fatalf("owner should get the project: %v", err)
	}
	_, err := s.Get(context.Background(), "u2", "p1")
	assertAPIErrorCode(t, err, model.ErrCodeProjectNotFound)
	_, err = s.Get(context.Background(), "u1", "missing")
	assertAPIErrorCode(t, err, model.ErrCodeProjectNotFound)
	_, err = s.Get(context.Background(), "", "p1")
	assertAPIErrorCode(t, err, model.ErrCodeUnauthorized)
}

func TestList(t *testing.T) {
	repo := newMockProjectRepo(
		&model.Project{ID: "p1", UserID: "u1"},
		&model.Project{ID: "p2", UserID: "u2"},
	)
	projects, err := newTestService(repo).List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != "p1" {
		t.Errorf("unexpected projects: %+v", projects)
	}
}

// --- Update ---

func TestUpdate_PartialFields(t *testing.T) {
	repo := newMockProjectRepo(&model.Project{
		ID: "p1", UserID: "u1", Name: "A", Description: "desc",
		WebsiteURL: "https://a.example.com", FeedURL: "https://a.example.com/feed.xml",
	})
	s := newTestService(repo)

	on := true
	p, err := s.Update(context.Background(), "u1", "p1", UpdateInput{Name: strPtr("B"), AutoSchedule: &on})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if p.Name != "B" || !p.AutoSchedule {
		t.Errorf("fields should be updated: %+v", p)
	}
	if p.Description != "desc" || p.FeedURL != "https://a.example.com/feed.xml" {
		t.Errorf("unspecified fields should be kept: %+v", p)
	}
	if !p.UpdatedAt.Equal(s.now()) {
		t.Errorf("UpdatedAt = %v", p.UpdatedAt)
	}
}

func TestUpdate_WebsiteChangeClearsDetectedFeed(t *testing.T) {
	repo := newMockProjectRepo(&model.Project{
		ID: "p1", UserID: "u1", Name: "A",
		WebsiteURL: "https://a.example.com", FeedURL: "https://a.example.com/feed.xml",
	})
	s := newTestService(repo)

	p, err := s.Update(context.Background(), "u1", "p1", UpdateInput{WebsiteURL: strPtr("https://b.example.com")})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if p.FeedURL != "" {
		t.Errorf("FeedURL should be cleared, got %s", p.FeedURL)
	}

	p, err = s.Update(context.Background(), "u1", "p1", UpdateInput{
		WebsiteURL: strPtr("https://c.example.com"),
		FeedURL:    strPtr("https://c.example.com/atom.xml"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if p.FeedURL != "https://c.example.com/atom.xml" {
		t.Errorf("explicit FeedURL should be kept, got %s", p.FeedURL)
	}
}

func TestUpdate_Errors(t *testing.T) {
	repo := newMockProjectRepo(&model.Project{ID: "p1", UserID: "u1", Name: "A"})
	s := newTestService(repo)

	_, err := s.Update(context.Background(), "u2", "p1", UpdateInput{Name: strPtr("B")})
	assertAPIErrorCode(t, err, model.ErrCodeProjectNotFound)

	_, err = s.Update(context.Background(), "u1", "p1", UpdateInput{Name: strPtr("")})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRequest)

	_, err = s.Update(context.Background(), "u1", "p1", UpdateInput{WebsiteURL: strPtr("http://10.0.0.1/")})
	assertAPIErrorCode(t, err, model.ErrCodeSSRFBlocked)

	if repo.projects["p1"].Name != "A" {
		t.Error("failed updates should not be persisted")
	}
}

// --- Delete ---

func TestDelete(t *testing.T) {
	repo := newMockProjectRepo(&model.Project{ID: "p1", UserID: "u1"})
	s := newTestService(repo)

	err := s.Delete(context.Background(), "u2", "p1")
	assertAPIErrorCode(t, err, model.ErrCodeProjectNotFound)
	if len(repo.deleted) != 0 {
		t.Fatal("non-owner must not delete")
	}

	if err := s.Delete(context.Background(), "u1", "p1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "p1" {
		t.Errorf("deleted = %v", repo.deleted)
	}
}
