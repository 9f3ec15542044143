package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/postflow/internal/middleware"
	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	Create(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error)
	List(ctx context.Context, userID string) ([]*model.Project, error)
	Get(ctx context.Context, userID, projectID string) (*model.Project, error)
	// Update はnilでないフィールドだけを更新する。
	Update(ctx context.Context, userID, projectID string, in project.UpdateInput) (*model.Project, error)
	Delete(ctx context.Context, userID, projectID string) error
}

// ProjectHandler はプロジェクト管理のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// createProjectRequest はプロジェクト作成リクエストのボディ。
type createProjectRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	WebsiteURL   string `json:"website_url"`
	FeedURL      string `json:"feed_url"`
	AutoSchedule bool   `json:"auto_schedule"`
}

// updateProjectRequest はプロジェクト更新リクエストのボディ。省略したフィールドは変更しない。
type updateProjectRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	WebsiteURL   *string `json:"website_url,omitempty"`
	FeedURL      *string `json:"feed_url,omitempty"`
	AutoSchedule *bool   `json:"auto_schedule,omitempty"`
}

// projectResponse はプロジェクト情報のAPIレスポンス。
type projectResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	WebsiteURL   string    `json:"website_url"`
	FeedURL      string    `json:"feed_url"`
	AutoSchedule bool      `json:"auto_schedule"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Create はプロジェクトを作成する。
// POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), userID, project.CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		WebsiteURL:   req.WebsiteURL,
		FeedURL:      req.FeedURL,
		AutoSchedule: req.AutoSchedule,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toProjectResponse(p))
}

// List はユーザーのプロジェクト一覧を返す。
// GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	projects, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]projectResponse, len(projects))
	for i, p := range projects {
		resp[i] = toProjectResponse(p)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Get はプロジェクト詳細を返す。
// GET /api/projects/:id
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, model.NewProjectNotFoundError)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), userID, projectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toProjectResponse(p))
}

// Update はプロジェクトを部分更新する。
// PATCH /api/projects/:id
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, model.NewProjectNotFoundError)
	if !ok {
		return
	}

	var req updateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), userID, projectID, project.UpdateInput{
		Name:         req.Name,
		Description:  req.Description,
		WebsiteURL:   req.WebsiteURL,
		FeedURL:      req.FeedURL,
		AutoSchedule: req.AutoSchedule,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toProjectResponse(p))
}

// Delete はプロジェクトを削除する。
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, model.NewProjectNotFoundError)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, projectID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		WebsiteURL:   p.WebsiteURL,
		FeedURL:      p.FeedURL,
		AutoSchedule: p.AutoSchedule,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
