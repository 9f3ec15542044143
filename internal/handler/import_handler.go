package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/postflow/internal/middleware"
	"github.com/hitoshi/postflow/internal/model"
)

// ImportServiceInterface はフィードインポートハンドラーが必要とするサービスインターフェース。
type ImportServiceInterface interface {
	Import(ctx context.Context, userID, projectID string) (*importResponse, error)
}

// ImportHandler はブログフィードインポートのHTTPハンドラー。
type ImportHandler struct {
	service ImportServiceInterface
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(service ImportServiceInterface) *ImportHandler {
	return &ImportHandler{service: service}
}

// importResponse はインポート結果のレスポンス。
type importResponse struct {
	FeedURL  string            `json:"feed_url"`
	Imported []contentResponse `json:"imported"`
	Skipped  int               `json:"skipped"`
}

// Import はプロジェクトのブログフィードから記事を取り込む。
// POST /api/projects/:id/import
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(w, r, model.NewProjectNotFoundError)
	if !ok {
		return
	}

	result, err := h.service.Import(r.Context(), userID, projectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}
