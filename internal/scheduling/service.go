package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/postflow/internal/model"
)

// TemplateReader はユーザーの投稿スロット設定を取得するインターフェース。
type TemplateReader interface {
	// FindByUserID は保存済みテンプレートを返す。未保存の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.ScheduleTemplate, error)
}

// ProjectFinder はプロジェクトの所有者確認に使うインターフェース。
type ProjectFinder interface {
	FindByID(ctx context.Context, id string) (*model.Project, error)
}

// ContentScheduleStore は自動予約に必要なコンテンツ操作のインターフェース。
type ContentScheduleStore interface {
	// ListUnscheduled はscheduled_atがNULLのコンテンツをcreated_at昇順（同時刻はid昇順）で返す。
	ListUnscheduled(ctx context.Context, projectID string) ([]model.SchedulableItem, error)
	// LatestScheduledAt はプロジェクト内で最も遅いscheduled_atを返す。予約済みがなければnil。
	LatestScheduledAt(ctx context.Context, projectID string) (*time.Time, error)
	// SetScheduledAt はコンテンツのscheduled_atを設定する。冪等。
	SetScheduledAt(ctx context.Context, itemID string, at time.Time) error
}

// RunRecorder は自動予約の実行結果をメトリクスに記録するインターフェース。
type RunRecorder interface {
	RecordAutoFill(scheduled, failed int, duration time.Duration)
}

// Config は自動予約の動作パラメータ。
type Config struct {
	// LeadTime は現在時刻からカーソル初期値までの猶予（デフォルト: 30分）。
	LeadTime time.Duration
	// Timeout は1回の実行全体の上限時間（デフォルト: 30秒）。0以下で無制限。
	Timeout time.Duration
	// ResumeFromLast がtrueの場合、既存の最終予約日時より後からカーソルを開始する。
	ResumeFromLast bool
}

// DefaultConfig はデフォルトの自動予約設定を返す。
func DefaultConfig() Config {
	return Config{
		LeadTime:       30 * time.Minute,
		Timeout:        30 * time.Second,
		ResumeFromLast: true,
	}
}

// Result は自動予約1回分の結果。
type Result struct {
	Scheduled   int
	Failed      []string // 永続化に失敗したコンテンツID
	Assignments []model.ScheduleAssignment
}

// Service は自動予約のオーケストレーションを行うサービス層。
// テンプレート取得 → 未予約コンテンツ取得 → Assign → 1件ずつ永続化 の流れを統括する。
type Service struct {
	templates TemplateReader
	projects  ProjectFinder
	contents  ContentScheduleStore
	recorder  RunRecorder
	logger    *slog.Logger
	config    Config
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(
	templates TemplateReader,
	projects ProjectFinder,
	contents ContentScheduleStore,
	recorder RunRecorder,
	logger *slog.Logger,
	config Config,
) *Service {
	return &Service{
		templates: templates,
		projects:  projects,
		contents:  contents,
		recorder:  recorder,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// AutoFill はユーザーが所有するプロジェクトの未予約コンテンツをすべて予約する。
// 未認証（userIDが空）の場合は何もせずにエラーを返す。
// 個別の永続化失敗では中断せず、失敗したIDをResult.Failedに集約する。
func (s *Service) AutoFill(ctx context.Context, userID, projectID string) (*Result, error) {
	project, err := s.authorize(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, project)
}

// Preview はAutoFillと同じ割り当てを計算するが、永続化は行わない。
func (s *Service) Preview(ctx context.Context, userID, projectID string) ([]model.ScheduleAssignment, error) {
	project, err := s.authorize(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	assignments, _, err := s.plan(ctx, project)
	return assignments, err
}

// Run は所有者確認済みのプロジェクトに対して自動予約を実行する。
// ワーカーからはこちらを直接呼び出す。
func (s *Service) Run(ctx context.Context, project *model.Project) (*Result, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	start := time.Now()

	assignments, cursor, err := s.plan(ctx, project)
	if err != nil {
		return nil, err
	}

	result := &Result{Assignments: assignments}
	for i, a := range assignments {
		if ctx.Err() != nil {
			for _, rest := range assignments[i:] {
				result.Failed = append(result.Failed, rest.ID)
			}
			s.logger.Warn("自動予約が時間内に完了しませんでした",
				slog.String("project_id", project.ID),
				slog.Int("remaining", len(assignments)-i),
				slog.String("error", ctx.Err().Error()),
			)
			break
		}
		if err := s.contents.SetScheduledAt(ctx, a.ID, a.ScheduledAt); err != nil {
			s.logger.Error("予約日時の保存に失敗しました",
				slog.String("project_id", project.ID),
				slog.String("content_id", a.ID),
				slog.String("error", err.Error()),
			)
			result.Failed = append(result.Failed, a.ID)
			continue
		}
		result.Scheduled++
	}

	duration := time.Since(start)
	if s.recorder != nil {
		s.recorder.RecordAutoFill(result.Scheduled, len(result.Failed), duration)
	}
	s.logger.Info("自動予約が完了しました",
		slog.String("project_id", project.ID),
		slog.Time("cursor_start", cursor),
		slog.Int("scheduled", result.Scheduled),
		slog.Int("failed", len(result.Failed)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return result, nil
}

// authorize は呼び出し元がプロジェクトの所有者であることを確認する。
func (s *Service) authorize(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return project, nil
}

// plan はテンプレートと未予約コンテンツを読み込み、割り当てを計算する。
// 戻り値の2番目はカーソルの初期値。
func (s *Service) plan(ctx context.Context, project *model.Project) ([]model.ScheduleAssignment, time.Time, error) {
	tmpl, err := s.loadTemplate(ctx, project.UserID)
	if err != nil {
		return nil, time.Time{}, err
	}
	// 設定エラーは1件も割り当てる前に報告する
	if err := ValidateTemplate(tmpl); err != nil {
		return nil, time.Time{}, err
	}

	items, err := s.contents.ListUnscheduled(ctx, project.ID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("未予約コンテンツの取得に失敗しました: %w", err)
	}

	cursor, err := s.startCursor(ctx, project.ID)
	if err != nil {
		return nil, time.Time{}, err
	}

	assignments, err := Assign(tmpl, items, cursor)
	if err != nil {
		return nil, time.Time{}, err
	}
	return assignments, cursor, nil
}

// loadTemplate は保存済みテンプレートを返す。未保存の場合は既定値を返す。
func (s *Service) loadTemplate(ctx context.Context, userID string) (model.ScheduleTemplate, error) {
	stored, err := s.templates.FindByUserID(ctx, userID)
	if err != nil {
		return model.ScheduleTemplate{}, fmt.Errorf("投稿スロット設定の取得に失敗しました: %w", err)
	}
	if stored == nil {
		return DefaultTemplate(), nil
	}
	return *stored, nil
}

// startCursor はカーソルの初期値を決める。
// 基本は現在時刻+LeadTime。ResumeFromLastが有効で既存の予約がそれより後にある場合は、
// 最終予約日時から再開して既存スケジュールの後ろに続ける。
func (s *Service) startCursor(ctx context.Context, projectID string) (time.Time, error) {
	cursor := s.now().Add(s.config.LeadTime)
	if !s.config.ResumeFromLast {
		return cursor, nil
	}
	latest, err := s.contents.LatestScheduledAt(ctx, projectID)
	if err != nil {
		return time.Time{}, fmt.Errorf("最終予約日時の取得に失敗しました: %w", err)
	}
	if latest != nil && latest.After(cursor) {
		return latest.In(cursor.Location()), nil
	}
	return cursor, nil
}
