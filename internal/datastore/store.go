package datastore

import (
	"context"

	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/repository"
)

// --- 購読者 ---

// ListSubscribers は全購読者を返す。
func (a *Adapter) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	return call(ctx, a, "ListSubscribers", func(s repository.Store) ([]model.Subscriber, error) {
		return s.ListSubscribers(ctx)
	})
}

// FindSubscriber はメールアドレスで購読者を検索する。見つからない場合はnilを返す。
func (a *Adapter) FindSubscriber(ctx context.Context, email string) (*model.Subscriber, error) {
	return call(ctx, a, "FindSubscriber", func(s repository.Store) (*model.Subscriber, error) {
		return s.FindSubscriber(ctx, email)
	})
}

// CreateSubscriber は購読者を作成する。
// フォールバック時にも同じ入力で再実行できるよう、バックエンドごとにコピーを渡す。
func (a *Adapter) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	created, err := call(ctx, a, "CreateSubscriber", func(s repository.Store) (model.Subscriber, error) {
		attempt := *sub
		err := s.CreateSubscriber(ctx, &attempt)
		return attempt, err
	})
	if err != nil {
		return err
	}
	*sub = created
	return nil
}

// UpdateSubscriber は購読者を部分更新する。
func (a *Adapter) UpdateSubscriber(ctx context.Context, email string, patch model.SubscriberPatch) (*model.Subscriber, error) {
	return call(ctx, a, "UpdateSubscriber", func(s repository.Store) (*model.Subscriber, error) {
		return s.UpdateSubscriber(ctx, email, patch)
	})
}

// DeleteSubscriber は購読者を削除する。
func (a *Adapter) DeleteSubscriber(ctx context.Context, email string) error {
	_, err := call(ctx, a, "DeleteSubscriber", func(s repository.Store) (struct{}, error) {
		return struct{}{}, s.DeleteSubscriber(ctx, email)
	})
	return err
}

// --- 記事 ---

// ListPosts は全記事を返す。
func (a *Adapter) ListPosts(ctx context.Context) ([]model.Post, error) {
	return call(ctx, a, "ListPosts", func(s repository.Store) ([]model.Post, error) {
		return s.ListPosts(ctx)
	})
}

// FindPost は指定IDの記事を取得する。見つからない場合はnilを返す。
func (a *Adapter) FindPost(ctx context.Context, id string) (*model.Post, error) {
	return call(ctx, a, "FindPost", func(s repository.Store) (*model.Post, error) {
		return s.FindPost(ctx, id)
	})
}

// CreatePost は記事を作成する。
func (a *Adapter) CreatePost(ctx context.Context, post *model.Post) error {
	created, err := call(ctx, a, "CreatePost", func(s repository.Store) (model.Post, error) {
		attempt := *post
		err := s.CreatePost(ctx, &attempt)
		return attempt, err
	})
	if err != nil {
		return err
	}
	*post = created
	return nil
}

// UpdatePost は記事を部分更新する。
func (a *Adapter) UpdatePost(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	return call(ctx, a, "UpdatePost", func(s repository.Store) (*model.Post, error) {
		return s.UpdatePost(ctx, id, patch)
	})
}

// DeletePost は記事を削除する。
func (a *Adapter) DeletePost(ctx context.Context, id string) error {
	_, err := call(ctx, a, "DeletePost", func(s repository.Store) (struct{}, error) {
		return struct{}{}, s.DeletePost(ctx, id)
	})
	return err
}

// --- 集計・設定 ---

// ComputeAnalytics は集計を計算する。
func (a *Adapter) ComputeAnalytics(ctx context.Context) (*model.AnalyticsReport, error) {
	return call(ctx, a, "ComputeAnalytics", func(s repository.Store) (*model.AnalyticsReport, error) {
		return s.ComputeAnalytics(ctx)
	})
}

// UpdateAnalytics は編集者設定の集計値を更新する。
func (a *Adapter) UpdateAnalytics(ctx context.Context, patch model.AnalyticsPatch) (*model.Analytics, error) {
	return call(ctx, a, "UpdateAnalytics", func(s repository.Store) (*model.Analytics, error) {
		return s.UpdateAnalytics(ctx, patch)
	})
}

// GetSettings はサイト設定を取得する。
func (a *Adapter) GetSettings(ctx context.Context) (*model.Settings, error) {
	return call(ctx, a, "GetSettings", func(s repository.Store) (*model.Settings, error) {
		return s.GetSettings(ctx)
	})
}

// UpdateSettings はサイト設定を更新する。
func (a *Adapter) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (*model.Settings, error) {
	return call(ctx, a, "UpdateSettings", func(s repository.Store) (*model.Settings, error) {
		return s.UpdateSettings(ctx, patch)
	})
}

// --- バックアップ ---

// Snapshot はJSONドキュメントのスナップショットを作成する。バックエンドの状態に関わらずJSON側で行う。
func (a *Adapter) Snapshot(ctx context.Context) (string, error) {
	path, err := a.file.Snapshot(ctx)
	if a.metrics != nil {
		a.metrics.RecordStoreOperation(backendJSON, "Snapshot", err)
	}
	return path, err
}

// Backups は既存のスナップショット一覧を返す。
func (a *Adapter) Backups() ([]repository.BackupFile, error) {
	return a.file.Backups()
}

// compile-time interface check
var _ repository.Store = (*Adapter)(nil)
