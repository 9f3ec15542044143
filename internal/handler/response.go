package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/postflow/internal/middleware"
	"github.com/hitoshi/postflow/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限（1MiB）。
const maxRequestBodySize = 1 << 20

// requireUserID はコンテキストから認証済みユーザーIDを取り出す。
// 取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// pathID はURLパスパラメータ{id}を取り出す。
// UUIDとして解釈できない値は存在しないリソースとみなし、notFoundのエラーを書き込む。
func pathID(w http.ResponseWriter, r *http.Request, notFound func(id string) *model.APIError) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFound(raw))
		return "", false
	}
	return id.String(), true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidURL,
		model.ErrCodeInvalidContentKind, model.ErrCodeInvalidFilter,
		model.ErrCodeInvalidTemplate, model.ErrCodeScheduleInPast:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeProjectNotFound, model.ErrCodeContentNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeProjectLimit:
		return http.StatusConflict
	case model.ErrCodeNoSlots, model.ErrCodeFeedNotDetected, model.ErrCodeParseFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
