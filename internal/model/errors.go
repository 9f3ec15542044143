// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, project, content, schedule, import, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeProjectNotFound    = "PROJECT_NOT_FOUND"
	ErrCodeProjectLimit       = "PROJECT_LIMIT"
	ErrCodeContentNotFound    = "CONTENT_NOT_FOUND"
	ErrCodeInvalidContentKind = "INVALID_CONTENT_KIND"
	ErrCodeInvalidFilter      = "INVALID_FILTER"
	ErrCodeInvalidTemplate    = "INVALID_SCHEDULE_TEMPLATE"
	ErrCodeNoSlots            = "NO_SCHEDULE_SLOTS"
	ErrCodeScheduleInPast     = "SCHEDULE_IN_PAST"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeFeedNotDetected    = "FEED_NOT_DETECTED"
	ErrCodeFetchFailed        = "FETCH_FAILED"
	ErrCodeParseFailed        = "PARSE_FAILED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
// 他ユーザーのプロジェクトへのアクセスも存在を隠すためこのエラーを返す。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID),
		Category: "project",
		Action:   "プロジェクトIDを確認してください。",
	}
}

// NewProjectLimitError はプロジェクト作成上限エラーを生成する。
func NewProjectLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeProjectLimit,
		Message:  fmt.Sprintf("プロジェクト数が上限（%d件）に達しています。", limit),
		Category: "project",
		Action:   "不要なプロジェクトを削除してから、新しいプロジェクトを作成してください。",
	}
}

// NewContentNotFoundError はコンテンツ未検出エラーを生成する。
func NewContentNotFoundError(contentID string) *APIError {
	return &APIError{
		Code:     ErrCodeContentNotFound,
		Message:  fmt.Sprintf("指定されたコンテンツが見つかりません: %s", contentID),
		Category: "content",
		Action:   "コンテンツIDを確認してください。",
	}
}

// NewInvalidContentKindError は不正なコンテンツ種別エラーを生成する。
func NewInvalidContentKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidContentKind,
		Message:  fmt.Sprintf("無効なコンテンツ種別です: %s", kind),
		Category: "validation",
		Action:   "種別には post または ebook を指定してください。",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(filter string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタです: %s", filter),
		Category: "validation",
		Action:   "フィルタには all、scheduled、unscheduled のいずれかを指定してください。",
	}
}

// NewInvalidTemplateError は投稿スロット設定が不正な場合のエラーを生成する。
// problemsには検出したすべての問題を渡す。
func NewInvalidTemplateError(problems []string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTemplate,
		Message:  fmt.Sprintf("投稿スロットの設定が不正です: %s", strings.Join(problems, "; ")),
		Category: "schedule",
		Action:   "時刻はHH:MM形式（例: 09:00）で指定してください。",
	}
}

// NewNoSlotsError は平日・週末ともに投稿スロットが空の場合のエラーを生成する。
func NewNoSlotsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoSlots,
		Message:  "平日と週末の両方で投稿時刻が設定されていません。",
		Category: "schedule",
		Action:   "平日または週末のいずれかに少なくとも1つの投稿時刻を設定してください。",
	}
}

// NewScheduleInPastError は過去日時への予約エラーを生成する。
func NewScheduleInPastError() *APIError {
	return &APIError{
		Code:     ErrCodeScheduleInPast,
		Message:  "過去の日時には予約できません。",
		Category: "schedule",
		Action:   "現在より後の日時を指定してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "import",
		Action:   "ブログのフィードURLを直接入力するか、WebサイトのURLを確認してください。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "import",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "import",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
