package handler

import (
	"context"

	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/scheduling"
	"github.com/hitoshi/postflow/internal/source"
	"github.com/hitoshi/postflow/internal/user"
)

// ScheduleServiceAdapter は scheduling.Service を ScheduleServiceInterface に適合させるアダプタ。
type ScheduleServiceAdapter struct {
	svc *scheduling.Service
}

// NewScheduleServiceAdapter はScheduleServiceAdapterを生成する。
func NewScheduleServiceAdapter(svc *scheduling.Service) *ScheduleServiceAdapter {
	return &ScheduleServiceAdapter{svc: svc}
}

// AutoFill は自動予約を実行しhandlerレスポンス型で返す。
func (a *ScheduleServiceAdapter) AutoFill(ctx context.Context, userID, projectID string) (*autoFillResponse, error) {
	result, err := a.svc.AutoFill(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return toAutoFillResponse(result), nil
}

// Preview は自動予約のプレビューをhandlerレスポンス型で返す。
func (a *ScheduleServiceAdapter) Preview(ctx context.Context, userID, projectID string) (*previewResponse, error) {
	assignments, err := a.svc.Preview(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if assignments == nil {
		assignments = []model.ScheduleAssignment{}
	}
	return &previewResponse{Count: len(assignments), Assignments: assignments}, nil
}

// toAutoFillResponse はJSONでnullにならないよう空スライスを補う。
func toAutoFillResponse(result *scheduling.Result) *autoFillResponse {
	resp := &autoFillResponse{
		Scheduled:   result.Scheduled,
		FailedIDs:   result.Failed,
		Assignments: result.Assignments,
	}
	if resp.FailedIDs == nil {
		resp.FailedIDs = []string{}
	}
	if resp.Assignments == nil {
		resp.Assignments = []model.ScheduleAssignment{}
	}
	return resp
}

// SettingsServiceAdapter は scheduling.TemplateService を SettingsServiceInterface に適合させるアダプタ。
type SettingsServiceAdapter struct {
	svc *scheduling.TemplateService
}

// NewSettingsServiceAdapter はSettingsServiceAdapterを生成する。
func NewSettingsServiceAdapter(svc *scheduling.TemplateService) *SettingsServiceAdapter {
	return &SettingsServiceAdapter{svc: svc}
}

// GetScheduleTemplate は投稿スロット設定をhandlerレスポンス型で返す。
func (a *SettingsServiceAdapter) GetScheduleTemplate(ctx context.Context, userID string) (*scheduleSettingsResponse, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	t, isDefault, err := a.svc.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &scheduleSettingsResponse{ScheduleTemplate: t, IsDefault: isDefault}, nil
}

// SaveScheduleTemplate は投稿スロット設定を保存しhandlerレスポンス型で返す。
func (a *SettingsServiceAdapter) SaveScheduleTemplate(ctx context.Context, userID string, t model.ScheduleTemplate) (*scheduleSettingsResponse, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	saved, err := a.svc.Save(ctx, userID, t)
	if err != nil {
		return nil, err
	}
	return &scheduleSettingsResponse{ScheduleTemplate: saved}, nil
}

// ImportServiceAdapter は source.Importer を ImportServiceInterface に適合させるアダプタ。
type ImportServiceAdapter struct {
	importer *source.Importer
}

// NewImportServiceAdapter はImportServiceAdapterを生成する。
func NewImportServiceAdapter(importer *source.Importer) *ImportServiceAdapter {
	return &ImportServiceAdapter{importer: importer}
}

// Import はフィードインポートを実行しhandlerレスポンス型で返す。
func (a *ImportServiceAdapter) Import(ctx context.Context, userID, projectID string) (*importResponse, error) {
	result, err := a.importer.Import(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	resp := &importResponse{
		FeedURL:  result.FeedURL,
		Imported: make([]contentResponse, len(result.Imported)),
		Skipped:  result.Skipped,
	}
	for i, item := range result.Imported {
		resp.Imported[i] = toContentResponse(item)
	}
	return resp, nil
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Me はログイン中のユーザーをhandlerレスポンス型で返す。
func (a *UserServiceAdapter) Me(ctx context.Context, userID string) (*userResponse, error) {
	u, err := a.svc.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}, nil
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}
