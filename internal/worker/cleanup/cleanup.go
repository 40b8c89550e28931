// Package cleanup は期限切れセッションと使用済み・期限切れの再設定トークンを
// 定期的に削除するジョブを提供する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
)

// 削除対象の種別（メトリクスのラベル）
const (
	KindSessions    = "sessions"
	KindResetTokens = "reset_tokens"
)

// SessionSweeper は期限切れセッションを削除する。repository.SessionRepositoryが満たす。
type SessionSweeper interface {
	DeleteExpired(ctx context.Context, nowMs int64) (int64, error)
}

// ResetTokenSweeper は使用済みまたは期限切れの再設定トークンを削除する。
// repository.PasswordResetRepositoryが満たす。
type ResetTokenSweeper interface {
	DeleteStale(ctx context.Context, nowMs int64) (int64, error)
}

// CleanupJob は認証関連の不要データを削除するジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	sessions SessionSweeper
	resets   ResetTokenSweeper
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。mcがnilの場合は記録しない。
func NewCleanupJob(sessions SessionSweeper, resets ResetTokenSweeper, logger *slog.Logger, mc metrics.MetricsCollector) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CleanupJob{
		sessions: sessions,
		resets:   resets,
		logger:   logger,
		metrics:  mc,
		now:      time.Now,
	}
}

// Run は1回分の削除を行う。片方が失敗してももう片方は実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	nowMs := start.UnixMilli()

	sessions, sessErr := j.sessions.DeleteExpired(ctx, nowMs)
	if sessErr != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", sessErr.Error()),
		)
	} else {
		j.metrics.RecordCleanup(KindSessions, sessions)
	}

	resets, resetErr := j.resets.DeleteStale(ctx, nowMs)
	if resetErr != nil {
		j.logger.Error("再設定トークンの削除に失敗しました",
			slog.String("error", resetErr.Error()),
		)
	} else {
		j.metrics.RecordCleanup(KindResetTokens, resets)
	}

	if sessErr != nil {
		return fmt.Errorf("セッションの削除に失敗: %w", sessErr)
	}
	if resetErr != nil {
		return fmt.Errorf("再設定トークンの削除に失敗: %w", resetErr)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_reset_tokens", resets),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降はintervalごとに実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
