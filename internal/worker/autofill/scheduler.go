// Package autofill はauto_scheduleが有効なプロジェクトの定期自動予約ワーカーを提供する。
// cron式（@every 15m など）で起動し、semaphoreパターンでプロジェクト単位の並列数を制御する。
package autofill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/scheduling"
)

// defaultMaxConcurrency はmaxConcurrencyが未指定の場合の並列数。
const defaultMaxConcurrency = 4

// ProjectLister は自動予約対象のプロジェクトを列挙するインターフェース。
type ProjectLister interface {
	// ListAutoSchedule はauto_schedule=trueかつ未予約コンテンツを持つプロジェクトを返す。
	ListAutoSchedule(ctx context.Context) ([]*model.Project, error)
}

// Runner は1プロジェクト分の自動予約を実行するインターフェース。
// scheduling.Serviceが満たす。
type Runner interface {
	Run(ctx context.Context, project *model.Project) (*scheduling.Result, error)
}

// ErrorRecorder は自動予約の失敗をエラーコード別に記録するインターフェース。
type ErrorRecorder interface {
	RecordAutoFillError(code string)
}

// specParser は標準の5フィールドに加え、秒フィールドと@every等の記述子を受け付ける。
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec はcron式を検証してスケジュールを返す。
func ParseSpec(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("cron spec is empty")
	}
	sched, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return sched, nil
}

// Scheduler は自動予約のスケジューリングと並列制御を行う。
type Scheduler struct {
	projects       ProjectLister
	runner         Runner
	recorder       ErrorRecorder
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。recorderはnilでもよい。
func NewScheduler(
	projects ProjectLister,
	runner Runner,
	recorder ErrorRecorder,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Scheduler{
		projects:       projects,
		runner:         runner,
		recorder:       recorder,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start はcron式に従ってRunOnceを定期実行する。起動直後にも1回実行する。
// 前回のサイクルが終わっていない場合、そのトリガーはスキップする。
// コンテキストがキャンセルされるまでブロックし、実行中のサイクルの完了を待ってから戻る。
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	sched, err := ParseSpec(spec)
	if err != nil {
		return err
	}

	c := cron.New(
		cron.WithParser(specParser),
		cron.WithLogger(slogCronLogger{logger: s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(slogCronLogger{logger: s.logger})),
	)
	c.Schedule(sched, cron.FuncJob(func() { s.runLogged(ctx) }))

	s.logger.Info("自動予約スケジューラを開始しました",
		slog.String("spec", spec),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	s.runLogged(ctx)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info("自動予約スケジューラを停止しました")
	return nil
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("自動予約サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は対象プロジェクトを1回取得し、並列で自動予約を実行する。
// 個別プロジェクトの失敗はログとメトリクスに記録し、サイクルは継続する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	projects, err := s.projects.ListAutoSchedule(ctx)
	if err != nil {
		return fmt.Errorf("自動予約対象プロジェクトの取得に失敗: %w", err)
	}

	if len(projects) == 0 {
		s.logger.Info("自動予約対象のプロジェクトはありません")
		return nil
	}

	s.logger.Info("自動予約サイクルを開始します",
		slog.Int("project_count", len(projects)),
	)

	var (
		mu        sync.Mutex
		scheduled int
		failed    int
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, project := range projects {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(p *model.Project) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			result, err := s.runner.Run(ctx, p)
			if err != nil {
				s.recordError(err)
				s.logger.Error("プロジェクトの自動予約に失敗しました",
					slog.String("project_id", p.ID),
					slog.String("user_id", p.UserID),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			mu.Lock()
			scheduled += result.Scheduled
			failed += len(result.Failed)
			mu.Unlock()
		}(project)
	}

	wg.Wait()

	s.logger.Info("自動予約サイクルが完了しました",
		slog.Int("project_count", len(projects)),
		slog.Int("scheduled", scheduled),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// recordError はAPIErrorならそのコード、それ以外はinternalとして記録する。
func (s *Scheduler) recordError(err error) {
	if s.recorder == nil {
		return
	}
	code := "internal"
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		code = strings.ToLower(apiErr.Code)
	}
	s.recorder.RecordAutoFillError(code)
}

// slogCronLogger はcron.Loggerをslogに接続するアダプタ。
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
