package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/postflow/internal/middleware"
	"github.com/hitoshi/postflow/internal/model"
)

// ScheduleServiceInterface は自動予約ハンドラーが必要とするサービスインターフェース。
type ScheduleServiceInterface interface {
	// AutoFill は未予約コンテンツをすべて予約し、結果を返す。
	AutoFill(ctx context.Context, userID, projectID string) (*autoFillResponse, error)
	// Preview はAutoFillと同じ割り当てを永続化せずに返す。
	Preview(ctx context.Context, userID, projectID string) (*previewResponse, error)
}

// ScheduleHandler は自動予約のHTTPハンドラー。
type ScheduleHandler struct {
	service ScheduleServiceInterface
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(service ScheduleServiceInterface) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// autoFillResponse は自動予約の実行結果。
type autoFillResponse struct {
	Scheduled   int                        `json:"scheduled"`
	FailedIDs   []string                   `json:"failed_ids"`
	Assignments []model.ScheduleAssignment `json:"assignments"`
}

// previewResponse は自動予約プレビューの結果。
type previewResponse struct {
	Count       int                        `json:"count"`
	Assignments []model.ScheduleAssignment `json:"assignments"`
}

// AutoFill は未予約コンテンツの自動予約を実行する。
// POST /api/projects/:id/schedule/auto-fill
func (h *ScheduleHandler) AutoFill(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, model.NewProjectNotFoundError)
	if !ok {
		return
	}

	result, err := h.service.AutoFill(r.Context(), userID, projectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// Preview は自動予約のプレビューを返す。
// GET /api/projects/:id/schedule/preview
func (h *ScheduleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, model.NewProjectNotFoundError)
	if !ok {
		return
	}

	result, err := h.service.Preview(r.Context(), userID, projectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}
