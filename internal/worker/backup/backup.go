// Package backup はJSONドキュメントの定期スナップショットと、
// 保持期間を超過したスナップショットの削除ジョブを提供する。
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hitoshi/brandhub/internal/metrics"
	"github.com/hitoshi/brandhub/internal/repository"
)

// DefaultRetentionDays はスナップショットのデフォルト保持日数。
const DefaultRetentionDays = 14

// Snapshotter はスナップショットの作成と一覧を提供する。datastore.Adapterが満たす。
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
	Backups() ([]repository.BackupFile, error)
}

// Result は1回のバックアップ実行の結果。
type Result struct {
	Path   string `json:"path"`
	Pruned int    `json:"pruned"`
}

// Job はスナップショット作成と古いスナップショットの削除を行うジョブ。
// 削除対象がない場合もエラーにならないため、何度実行してもよい。
type Job struct {
	store         Snapshotter
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	RetentionDays int // 0以下の場合は削除しない

	now    func() time.Time
	remove func(path string) error
}

// NewJob は新しいJobを生成する。metricsはnilでもよい。
func NewJob(store Snapshotter, logger *slog.Logger, m metrics.MetricsCollector) *Job {
	return &Job{
		store:         store,
		logger:        logger,
		metrics:       m,
		RetentionDays: DefaultRetentionDays,
		now:           time.Now,
		remove:        os.Remove,
	}
}

// Run はスナップショットを作成し、RetentionDays日より前のスナップショットを削除する。
// 作成したばかりのスナップショットは削除対象にしない。
func (j *Job) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	path, err := j.store.Snapshot(ctx)
	if err != nil {
		j.logger.Error("スナップショットの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		j.record(err, 0)
		return nil, fmt.Errorf("スナップショットの作成に失敗: %w", err)
	}

	pruned, err := j.prune(path)
	j.record(err, pruned)
	if err != nil {
		j.logger.Error("古いスナップショットの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("pruned", pruned),
		)
		return &Result{Path: path, Pruned: pruned}, fmt.Errorf("スナップショットの削除に失敗: %w", err)
	}

	j.logger.Info("バックアップジョブが完了しました",
		slog.String("path", path),
		slog.Int("pruned", pruned),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return &Result{Path: path, Pruned: pruned}, nil
}

// Start はintervalごとにRunを実行する。コンテキストがキャンセルされるまで継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("バックアップスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("バックアップスケジューラを停止しました")
			return
		case <-ticker.C:
			// エラーはRun内でログ出力済み
			_, _ = j.Run(ctx)
		}
	}
}

func (j *Job) prune(current string) (int, error) {
	if j.RetentionDays <= 0 {
		return 0, nil
	}

	backups, err := j.store.Backups()
	if err != nil {
		return 0, err
	}

	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)
	pruned := 0
	var errs []error
	for _, b := range backups {
		if b.Path == current || !b.CreatedAt.Before(cutoff) {
			continue
		}
		if err := j.remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		pruned++
	}
	return pruned, errors.Join(errs...)
}

func (j *Job) record(err error, pruned int) {
	if j.metrics != nil {
		j.metrics.RecordBackup(err, pruned)
	}
}
