// Package datastore はリレーショナルバックエンドとJSONバックエンドを切り替えるアダプタを提供する。
//
// リレーショナルバックエンドが有効な場合はそちらを優先し、ドメイン上の結果（未検出・重複）以外の
// エラーが発生した場合はログを出力して同じ操作をJSONバックエンドで再実行する。
package datastore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/brandhub/internal/metrics"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/repository"
)

// Mode はアダプタが現在使用しているバックエンドを表す。
type Mode string

const (
	// ModeJSON はJSONファイルのみを使用している状態。
	ModeJSON Mode = "json"

	// ModeRelational はリレーショナルバックエンドを優先している状態。
	ModeRelational Mode = "relational"

	// ModeDegraded はリレーショナルバックエンドが有効だが初期化に失敗し、JSONのみで動作している状態。
	ModeDegraded Mode = "degraded"
)

const (
	backendJSON       = "json"
	backendRelational = "relational"
)

// Relational はリレーショナルバックエンドに必要な操作。
type Relational interface {
	repository.Store
	Ping(ctx context.Context) error
	Initialize(ctx context.Context) error
}

// FileStore はJSONバックエンドに必要な操作。常にフォールバック先として使われる。
type FileStore interface {
	repository.Store
	Snapshot(ctx context.Context) (string, error)
	Backups() ([]repository.BackupFile, error)
}

// Options はAdapterの設定。
type Options struct {
	// Enabled がfalseの場合、relationalは使用しない。
	Enabled bool
	Logger  *slog.Logger
	Metrics metrics.MetricsCollector
}

// Adapter はバックエンドを選択して委譲するデータストア。
// プロセス起動時に1つだけ生成し、ハンドラーやサービスに注入する。
type Adapter struct {
	file       FileStore
	relational Relational
	enabled    bool
	logger     *slog.Logger
	metrics    metrics.MetricsCollector

	initOnce sync.Once
	active   atomic.Bool
	degraded atomic.Bool
}

// NewAdapter は新しいAdapterを生成する。relationalはnilでもよい。
func NewAdapter(file FileStore, relational Relational, opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		file:       file,
		relational: relational,
		enabled:    opts.Enabled && relational != nil,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// EnsureInitialized はリレーショナルバックエンドの疎通確認とテーブル作成をプロセスで一度だけ行う。
// 失敗してもエラーは返さず、以降はJSONのみで動作する。
// 並行して初回呼び出しがあっても初期化は一度だけ実行され、全呼び出しはその完了を待つ。
func (a *Adapter) EnsureInitialized(ctx context.Context) {
	a.initOnce.Do(func() {
		if !a.enabled {
			a.logger.Info("datastore initialized", slog.String("mode", string(ModeJSON)))
			return
		}

		if err := a.relational.Ping(ctx); err != nil {
			a.markDegraded("ping", err)
			return
		}
		if err := a.relational.Initialize(ctx); err != nil {
			a.markDegraded("initialize", err)
			return
		}

		a.active.Store(true)
		a.logger.Info("datastore initialized", slog.String("mode", string(ModeRelational)))
	})
}

// Mode は現在のバックエンドの状態を返す。
func (a *Adapter) Mode() Mode {
	switch {
	case a.active.Load():
		return ModeRelational
	case a.degraded.Load():
		return ModeDegraded
	default:
		return ModeJSON
	}
}

func (a *Adapter) markDegraded(stage string, err error) {
	a.degraded.Store(true)
	a.logger.Warn("backend degraded",
		slog.String("stage", stage),
		slog.String("mode", string(ModeDegraded)),
		slog.String("error", err.Error()),
	)
}

// call はoperationを優先バックエンドで実行し、必要に応じてJSONバックエンドで再実行する。
func call[T any](ctx context.Context, a *Adapter, operation string, fn func(repository.Store) (T, error)) (T, error) {
	a.EnsureInitialized(ctx)

	if a.active.Load() {
		result, err := run(a, backendRelational, operation, a.relational, fn)
		if err == nil || model.IsDomainOutcome(err) {
			return result, err
		}
		a.logger.Warn("backend degraded",
			slog.String("operation", operation),
			slog.String("fallback", backendJSON),
			slog.String("error", err.Error()),
		)
		if a.metrics != nil {
			a.metrics.RecordStoreFallback(operation)
		}
	}

	return run(a, backendJSON, operation, a.file, fn)
}

func run[T any](a *Adapter, backend, operation string, store repository.Store, fn func(repository.Store) (T, error)) (T, error) {
	start := time.Now()
	result, err := fn(store)
	if a.metrics != nil {
		a.metrics.RecordStoreLatency(backend, time.Since(start))
		a.metrics.RecordStoreOperation(backend, operation, err)
	}
	return result, err
}
