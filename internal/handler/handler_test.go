package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/postflow/internal/content"
	"github.com/hitoshi/postflow/internal/middleware"
	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/project"
)

const (
	testUserID    = "user-123"
	testProjectID = "7f1c2a9e-3b4d-4e5f-8a6b-9c0d1e2f3a4b"
	testContentID = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
)

// --- モック定義 ---

type mockProjectService struct {
	createFn func(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error)
	listFn   func(ctx context.Context, userID string) ([]*model.Project, error)
	getFn    func(ctx context.Context, userID, projectID string) (*model.Project, error)
	updateFn func(ctx context.Context, userID, projectID string, in project.UpdateInput) (*model.Project, error)
	deleteFn func(ctx context.Context, userID, projectID string) error
}

func (m *mockProjectService) Create(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return &model.Project{ID: testProjectID, UserID: userID, Name: in.Name}, nil
}

func (m *mockProjectService) List(ctx context.Context, userID string) ([]*model.Project, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockProjectService) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, projectID)
	}
	return &model.Project{ID: projectID, UserID: userID}, nil
}

func (m *mockProjectService) Update(ctx context.Context, userID, projectID string, in project.UpdateInput) (*model.Project, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, projectID, in)
	}
	return &model.Project{ID: projectID, UserID: userID}, nil
}

func (m *mockProjectService) Delete(ctx context.Context, userID, projectID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, projectID)
	}
	return nil
}

type mockContentService struct {
	createFn     func(ctx context.Context, userID, projectID string, in content.CreateInput) (*model.ContentItem, error)
	listFn       func(ctx context.Context, userID, projectID, filter string, cursor time.Time, limit int) (*content.ListResult, error)
	getFn        func(ctx context.Context, userID, contentID string) (*model.ContentItem, error)
	scheduleFn   func(ctx context.Context, userID, contentID string, at time.Time) (*model.ContentItem, error)
	unscheduleFn func(ctx context.Context, userID, contentID string) (*model.ContentItem, error)
	deleteFn     func(ctx context.Context, userID, contentID string) error
}

func (m *mockContentService) Create(ctx context.Context, userID, projectID string, in content.CreateInput) (*model.ContentItem, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, projectID, in)
	}
	return &model.ContentItem{ID: testContentID, ProjectID: projectID}, nil
}

func (m *mockContentService) List(ctx context.Context, userID, projectID, filter string, cursor time.Time, limit int) (*content.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, projectID, filter, cursor, limit)
	}
	return &content.ListResult{}, nil
}

func (m *mockContentService) Get(ctx context.Context, userID, contentID string) (*model.ContentItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, contentID)
	}
	return &model.ContentItem{ID: contentID}, nil
}

func (m *mockContentService) Schedule(ctx context.Context, userID, contentID string, at time.Time) (*model.ContentItem, error) {
	if m.scheduleFn != nil {
		return m.scheduleFn(ctx, userID, contentID, at)
	}
	return &model.ContentItem{ID: contentID, ScheduledAt: &at}, nil
}

func (m *mockContentService) Unschedule(ctx context.Context, userID, contentID string) (*model.ContentItem, error) {
	if m.unscheduleFn != nil {
		return m.unscheduleFn(ctx, userID, contentID)
	}
	return &model.ContentItem{ID: contentID}, nil
}

func (m *mockContentService) Delete(ctx context.Context, userID, contentID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, contentID)
	}
	return nil
}

type mockScheduleService struct {
	autoFillFn func(ctx context.Context, userID, projectID string) (*autoFillResponse, error)
	previewFn  func(ctx context.Context, userID, projectID string) (*previewResponse, error)
}

func (m *mockScheduleService) AutoFill(ctx context.Context, userID, projectID string) (*autoFillResponse, error) {
	if m.autoFillFn != nil {
		return m.autoFillFn(ctx, userID, projectID)
	}
	return &autoFillResponse{FailedIDs: []string{}, Assignments: []model.ScheduleAssignment{}}, nil
}

func (m *mockScheduleService) Preview(ctx context.Context, userID, projectID string) (*previewResponse, error) {
	if m.previewFn != nil {
		return m.previewFn(ctx, userID, projectID)
	}
	return &previewResponse{Assignments: []model.ScheduleAssignment{}}, nil
}

type mockSettingsService struct {
	getFn  func(ctx context.Context, userID string) (*scheduleSettingsResponse, error)
	saveFn func(ctx context.Context, userID string, t model.ScheduleTemplate) (*scheduleSettingsResponse, error)
}

func (m *mockSettingsService) GetScheduleTemplate(ctx context.Context, userID string) (*scheduleSettingsResponse, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return &scheduleSettingsResponse{}, nil
}

func (m *mockSettingsService) SaveScheduleTemplate(ctx context.Context, userID string, t model.ScheduleTemplate) (*scheduleSettingsResponse, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, userID, t)
	}
	return &scheduleSettingsResponse{ScheduleTemplate: t}, nil
}

type mockImportService struct {
	importFn func(ctx context.Context, userID, projectID string) (*importResponse, error)
}

func (m *mockImportService) Import(ctx context.Context, userID, projectID string) (*importResponse, error) {
	if m.importFn != nil {
		return m.importFn(ctx, userID, projectID)
	}
	return &importResponse{Imported: []contentResponse{}}, nil
}

type mockUserService struct {
	meFn       func(ctx context.Context, userID string) (*userResponse, error)
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Me(ctx context.Context, userID string) (*userResponse, error) {
	if m.meFn != nil {
		return m.meFn(ctx, userID)
	}
	return &userResponse{ID: userID}, nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- 共通ヘルパーのテスト ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{model.NewInvalidContentKindError("x"), http.StatusBadRequest},
		{model.NewInvalidFilterError("x"), http.StatusBadRequest},
		{model.NewInvalidTemplateError([]string{"x"}), http.StatusBadRequest},
		{model.NewScheduleInPastError(), http.StatusBadRequest},
		{model.NewInvalidURLError("x"), http.StatusBadRequest},
		{model.NewSSRFBlockedError(), http.StatusForbidden},
		{model.NewProjectNotFoundError("x"), http.StatusNotFound},
		{model.NewContentNotFoundError("x"), http.StatusNotFound},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewProjectLimitError(50), http.StatusConflict},
		{model.NewNoSlotsError(), http.StatusUnprocessableEntity},
		{model.NewFeedNotDetectedError("x"), http.StatusUnprocessableEntity},
		{model.NewParseFailedError(), http.StatusUnprocessableEntity},
		{model.NewFetchFailedError("x"), http.StatusBadGateway},
		{&model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_NonAPIErrorHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, context.DeadlineExceeded)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != "INTERNAL_ERROR" {
		t.Errorf("code = %q", body["code"])
	}
	if body["message"] == context.DeadlineExceeded.Error() {
		t.Error("internal error detail must not leak")
	}
}
