// Package repository はデータ永続化のインターフェースと、
// JSONファイル・PostgreSQLの2種類のバックエンド実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/brandhub/internal/model"
)

// SubscriberRepository は購読者データの永続化インターフェース。
type SubscriberRepository interface {
	// ListSubscribers は全購読者を登録順で返す。
	ListSubscribers(ctx context.Context) ([]model.Subscriber, error)

	// FindSubscriber はメールアドレス（大文字小文字を区別しない）で購読者を検索する。
	// 見つからない場合はnilを返す。
	FindSubscriber(ctx context.Context, email string) (*model.Subscriber, error)

	// CreateSubscriber は購読者を作成する。
	// IDが空の場合は時刻順のIDを採番する。同一メールアドレスが存在する場合はErrDuplicateEmailを返す。
	CreateSubscriber(ctx context.Context, sub *model.Subscriber) error

	// UpdateSubscriber はトップレベルのフィールド単位で購読者を部分更新し、更新後の値を返す。
	// 存在しない場合はErrNotFoundを返す。
	UpdateSubscriber(ctx context.Context, email string, patch model.SubscriberPatch) (*model.Subscriber, error)

	// DeleteSubscriber は購読者レコードを完全に削除する。存在しない場合はErrNotFoundを返す。
	DeleteSubscriber(ctx context.Context, email string) error
}

// PostRepository は記事データの永続化インターフェース。
type PostRepository interface {
	// ListPosts は全記事を登録順で返す。
	ListPosts(ctx context.Context) ([]model.Post, error)

	// FindPost は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindPost(ctx context.Context, id string) (*model.Post, error)

	// CreatePost は記事を作成する。同一IDが存在する場合はErrDuplicatePostを返す。
	CreatePost(ctx context.Context, post *model.Post) error

	// UpdatePost はトップレベルのフィールド単位で記事を部分更新し、更新後の値を返す。
	// 存在しない場合はErrNotFoundを返す。
	UpdatePost(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error)

	// DeletePost は記事を削除する。存在しない場合はErrNotFoundを返す。
	DeletePost(ctx context.Context, id string) error
}

// SiteRepository は集計とサイト設定の永続化インターフェース。
type SiteRepository interface {
	// ComputeAnalytics は現在の購読者・記事から集計を計算する。
	ComputeAnalytics(ctx context.Context) (*model.AnalyticsReport, error)

	// UpdateAnalytics は編集者設定の集計値を更新する。
	UpdateAnalytics(ctx context.Context, patch model.AnalyticsPatch) (*model.Analytics, error)

	// GetSettings はサイト設定を取得する。
	GetSettings(ctx context.Context) (*model.Settings, error)

	// UpdateSettings はサイト設定を上書き更新する。
	UpdateSettings(ctx context.Context, patch model.SettingsPatch) (*model.Settings, error)
}

// Store は1つのバックエンドが提供するCRUD操作の全体。
// JSONStoreとPostgresStoreはどちらもこれを満たし、アダプタから交換可能に使われる。
type Store interface {
	SubscriberRepository
	PostRepository
	SiteRepository
}
