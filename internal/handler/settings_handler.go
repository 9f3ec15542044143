package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/postflow/internal/middleware"
	"github.com/hitoshi/postflow/internal/model"
)

// SettingsServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	// GetScheduleTemplate は保存済みの投稿スロット設定、未保存なら既定値を返す。
	GetScheduleTemplate(ctx context.Context, userID string) (*scheduleSettingsResponse, error)
	// SaveScheduleTemplate は検証・正規化した設定を保存して返す。
	SaveScheduleTemplate(ctx context.Context, userID string, t model.ScheduleTemplate) (*scheduleSettingsResponse, error)
}

// SettingsHandler はユーザー設定のHTTPハンドラー。
type SettingsHandler struct {
	service SettingsServiceInterface
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// scheduleSettingsResponse は投稿スロット設定のレスポンス。
type scheduleSettingsResponse struct {
	model.ScheduleTemplate
	IsDefault bool `json:"is_default"`
}

// GetSchedule は投稿スロット設定を返す。
// GET /api/settings/schedule
func (h *SettingsHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetScheduleTemplate(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// PutSchedule は投稿スロット設定を保存する。countは送信値を無視してhoursから再計算する。
// PUT /api/settings/schedule
func (h *SettingsHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req model.ScheduleTemplate
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.SaveScheduleTemplate(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
