// Package cleanup は購入済み買い物アイテムの自動削除ジョブを提供する。
// 購入から保持期間（デフォルト30日）を超過したアイテムを全ユーザー横断で削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kitchenstock/internal/metrics"
)

// DefaultRetentionDays は購入済みアイテムのデフォルト保持日数。
const DefaultRetentionDays = 30

// Purger は購入済みアイテムを一括削除するストレージのインターフェース。
// repository.MemoryStore と repository.PostgresShoppingItemRepo が満たす。
type Purger interface {
	PurgeBoughtBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過した購入済みアイテムの削除ジョブ。
// 冪等であり、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	purger        Purger
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	now           func() time.Time
	RetentionDays int // 購入済みアイテムの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// mがnilの場合はメトリクスを記録しない。
func NewCleanupJob(purger Purger, logger *slog.Logger, m metrics.MetricsCollector) *CleanupJob {
	if m == nil {
		m = metrics.Nop{}
	}
	return &CleanupJob{
		purger:        purger,
		logger:        logger,
		metrics:       m,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
	}
}

// Cutoff は削除の境界時刻を返す。これより前に購入されたアイテムが対象。
func (j *CleanupJob) Cutoff() time.Time {
	return j.now().UTC().AddDate(0, 0, -j.RetentionDays)
}

// Run は保持期間を超過した購入済みアイテムを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	if j.RetentionDays <= 0 {
		return fmt.Errorf("保持日数が不正です: %d", j.RetentionDays)
	}

	start := time.Now()
	cutoff := j.Cutoff()

	deleted, err := j.purger.PurgeBoughtBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("買い物アイテムのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("買い物アイテムのクリーンアップに失敗: %w", err)
	}

	j.metrics.RecordBoughtItemsPurged(deleted)
	j.logger.Info("買い物アイテムのクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降interval間隔で繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。個々の失敗はログに残して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました", slog.Duration("interval", interval))

	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
