package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/postflow/internal/content"
	"github.com/hitoshi/postflow/internal/middleware"
	"github.com/hitoshi/postflow/internal/model"
)

// ContentServiceInterface はコンテンツハンドラーが必要とするサービスインターフェース。
type ContentServiceInterface interface {
	Create(ctx context.Context, userID, projectID string, in content.CreateInput) (*model.ContentItem, error)
	// List はcursorより前に作成されたコンテンツを新しい順で返す。cursorがゼロ値の場合は先頭から。
	List(ctx context.Context, userID, projectID, filter string, cursor time.Time, limit int) (*content.ListResult, error)
	Get(ctx context.Context, userID, contentID string) (*model.ContentItem, error)
	Schedule(ctx context.Context, userID, contentID string, at time.Time) (*model.ContentItem, error)
	Unschedule(ctx context.Context, userID, contentID string) (*model.ContentItem, error)
	Delete(ctx context.Context, userID, contentID string) error
}

// ContentHandler はコンテンツ管理のHTTPハンドラー。
type ContentHandler struct {
	service ContentServiceInterface
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentServiceInterface) *ContentHandler {
	return &ContentHandler{service: service}
}

// createContentRequest はコンテンツ作成リクエストのボディ。
type createContentRequest struct {
	Kind        string     `json:"kind"`
	Platform    string     `json:"platform"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// scheduleRequest は手動予約リクエストのボディ。
type scheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// contentResponse はコンテンツのAPIレスポンス。
type contentResponse struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Kind        string     `json:"kind"`
	Platform    string     `json:"platform"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	SourceURL   string     `json:"source_url,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// contentListResponse はコンテンツ一覧のレスポンス。
type contentListResponse struct {
	Items      []contentResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}

// Create はプロジェクトにコンテンツを追加する。
// POST /api/projects/:id/contents
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, model.NewProjectNotFoundError)
	if !ok {
		return
	}

	var req createContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.Create(r.Context(), userID, projectID, content.CreateInput{
		Kind:        req.Kind,
		Platform:    req.Platform,
		Title:       req.Title,
		Body:        req.Body,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toContentResponse(item))
}

// List はプロジェクトのコンテンツ一覧を返す。
// GET /api/projects/:id/contents?filter=all|scheduled|unscheduled&cursor=RFC3339&limit=N
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, model.NewProjectNotFoundError)
	if !ok {
		return
	}

	q := r.URL.Query()
	var cursor time.Time
	if raw := q.Get("cursor"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("cursorの形式が不正です。"))
			return
		}
		cursor = parsed
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitは1以上の整数で指定してください。"))
			return
		}
		limit = n
	}

	result, err := h.service.List(r.Context(), userID, projectID, q.Get("filter"), cursor, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := contentListResponse{
		Items:   make([]contentResponse, len(result.Items)),
		HasMore: result.HasMore,
	}
	for i, item := range result.Items {
		resp.Items[i] = toContentResponse(item)
	}
	if result.HasMore && len(result.Items) > 0 {
		resp.NextCursor = result.Items[len(result.Items)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Get はコンテンツ詳細を返す。
// GET /api/contents/:id
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	contentID, ok := pathID(w, r, model.NewContentNotFoundError)
	if !ok {
		return
	}

	item, err := h.service.Get(r.Context(), userID, contentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toContentResponse(item))
}

// Schedule はコンテンツの予約日時を手動で設定する。
// PUT /api/contents/:id/schedule
func (h *ContentHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	contentID, ok := pathID(w, r, model.NewContentNotFoundError)
	if !ok {
		return
	}

	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ScheduledAt == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("scheduled_atを指定してください。"))
		return
	}

	item, err := h.service.Schedule(r.Context(), userID, contentID, *req.ScheduledAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toContentResponse(item))
}

// Unschedule はコンテンツの予約を取り消す。
// DELETE /api/contents/:id/schedule
func (h *ContentHandler) Unschedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	contentID, ok := pathID(w, r, model.NewContentNotFoundError)
	if !ok {
		return
	}

	item, err := h.service.Unschedule(r.Context(), userID, contentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toContentResponse(item))
}

// Delete はコンテンツを削除する。
// DELETE /api/contents/:id
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	contentID, ok := pathID(w, r, model.NewContentNotFoundError)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, contentID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toContentResponse(item *model.ContentItem) contentResponse {
	return contentResponse{
		ID:          item.ID,
		ProjectID:   item.ProjectID,
		Kind:        string(item.Kind),
		Platform:    item.Platform,
		Title:       item.Title,
		Body:        item.Body,
		SourceURL:   item.SourceURL,
		ScheduledAt: item.ScheduledAt,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}
