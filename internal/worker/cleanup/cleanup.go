// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 日次バッチで expires_at を過ぎたセッションを削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除するインターフェース。
// repository.SessionRepositoryが満たす。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Recorder は削除件数を記録するインターフェース。
type Recorder interface {
	RecordSessionsCleaned(n int64)
}

// DefaultInterval はジョブの実行間隔。
const DefaultInterval = 24 * time.Hour

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 冪等であり、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	recorder Recorder
	logger   *slog.Logger
	Interval time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sessions SessionPurger, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
		Interval: DefaultInterval,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsCleaned(deleted)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Loop はctxがキャンセルされるまでInterval毎にRunを実行する。
// 起動直後にも1回実行する。個々の失敗はログに残して継続する。
func (j *CleanupJob) Loop(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = j.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
