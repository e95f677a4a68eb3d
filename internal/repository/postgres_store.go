package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/brandhub/internal/model"
	"github.com/lib/pq"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pqUniqueViolation = "23505"

// MigrateFunc はテーブル作成を行う関数。database.MigrateFuncを注入する。
type MigrateFunc func(ctx context.Context) error

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore はPostgreSQLを使用したバックエンド。
// subscribers、posts、analytics、settingsの4テーブルに対してJSONStoreと同じ操作を提供する。
type PostgresStore struct {
	db      *sql.DB
	migrate MigrateFunc
	seed    *model.Document
}

// NewPostgresStore はPostgresStoreを生成する。
// migrateがnilの場合、Initializeはテーブル作成を行わず初期データ投入のみ行う。
func NewPostgresStore(db *sql.DB, migrate MigrateFunc, seed *model.Document) *PostgresStore {
	return &PostgresStore{db: db, migrate: migrate, seed: seed}
}

// Ping はデータベースへの疎通を確認する。
func (r *PostgresStore) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Initialize はテーブルを作成し、analytics・settings・postsが空の場合に初期データを投入する。
// 冪等であり、プロセス起動のたびに呼び出してよい。
func (r *PostgresStore) Initialize(ctx context.Context) error {
	if r.migrate != nil {
		if err := r.migrate(ctx); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	if r.seed == nil {
		return nil
	}

	empty, err := r.isEmpty(ctx, "analytics")
	if err != nil {
		return err
	}
	if empty {
		if err := r.saveAnalytics(ctx, r.seed.Analytics); err != nil {
			return err
		}
	}

	empty, err = r.isEmpty(ctx, "settings")
	if err != nil {
		return err
	}
	if empty {
		if err := r.saveSettings(ctx, r.seed.Settings); err != nil {
			return err
		}
	}

	empty, err = r.isEmpty(ctx, "posts")
	if err != nil {
		return err
	}
	if empty {
		for i := range r.seed.Posts {
			post := r.seed.Posts[i]
			if err := r.CreatePost(ctx, &post); err != nil && !errors.Is(err, model.ErrDuplicatePost) {
				return fmt.Errorf("failed to seed post %s: %w", post.ID, err)
			}
		}
	}

	return nil
}

// isEmpty はテーブルに行が存在しないかを返す。tableは固定の内部値のみ渡すこと。
func (r *PostgresStore) isEmpty(ctx context.Context, table string) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count == 0, nil
}

// --- 集計・設定 ---

// ComputeAnalytics は現在の購読者・記事から集計を計算する。
func (r *PostgresStore) ComputeAnalytics(ctx context.Context) (*model.AnalyticsReport, error) {
	subs, err := r.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := r.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := r.loadAnalytics(ctx)
	if err != nil {
		return nil, err
	}
	return BuildAnalyticsReport(subs, posts, *stored), nil
}

// UpdateAnalytics は編集者設定の集計値を更新し、件数・閲覧数のスナップショットも書き換える。
func (r *PostgresStore) UpdateAnalytics(ctx context.Context, patch model.AnalyticsPatch) (*model.Analytics, error) {
	stored, err := r.loadAnalytics(ctx)
	if err != nil {
		return nil, err
	}
	patch.Apply(stored)

	subs, err := r.ListSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := r.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	report := BuildAnalyticsReport(subs, posts, *stored)
	stored.TotalSubscribers = report.TotalSubscribers
	stored.TotalPosts = report.TotalPosts
	stored.TotalViews = report.TotalViews
	stored.PopularPosts = report.PopularPosts

	if err := r.saveAnalytics(ctx, *stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// GetSettings はサイト設定を取得する。行が存在しない場合はゼロ値を返す。
func (r *PostgresStore) GetSettings(ctx context.Context) (*model.Settings, error) {
	s := &model.Settings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT site_name, site_description, maintenance_mode, allow_registrations, max_subscribers, featured_posts_limit
		 FROM settings WHERE id = 1`,
	).Scan(&s.SiteName, &s.SiteDescription, &s.MaintenanceMode, &s.AllowRegistrations, &s.MaxSubscribers, &s.FeaturedPostsLimit)
	if err == sql.ErrNoRows {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

// UpdateSettings はサイト設定を更新する。
func (r *PostgresStore) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (*model.Settings, error) {
	s, err := r.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	patch.Apply(s)
	if err := r.saveSettings(ctx, *s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresStore) loadAnalytics(ctx context.Context) (*model.Analytics, error) {
	a := &model.Analytics{}
	var popular pq.StringArray
	var engagement []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT total_views, total_subscribers, total_posts, monthly_growth, popular_posts, user_engagement
		 FROM analytics WHERE id = 1`,
	).Scan(&a.TotalViews, &a.TotalSubscribers, &a.TotalPosts, &a.MonthlyGrowth, &popular, &engagement)
	if err == sql.ErrNoRows {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	a.PopularPosts = []string(popular)
	if len(engagement) > 0 {
		if err := json.Unmarshal(engagement, &a.UserEngagement); err != nil {
			return nil, fmt.Errorf("failed to decode user_engagement: %w", err)
		}
	}
	return a, nil
}

func (r *PostgresStore) saveAnalytics(ctx context.Context, a model.Analytics) error {
	engagement, err := json.Marshal(a.UserEngagement)
	if err != nil {
		return fmt.Errorf("failed to encode user_engagement: %w", err)
	}
	popular := a.PopularPosts
	if popular == nil {
		popular = []string{}
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO analytics (id, total_views, total_subscribers, total_posts, monthly_growth, popular_posts, user_engagement, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   total_views = EXCLUDED.total_views,
		   total_subscribers = EXCLUDED.total_subscribers,
		   total_posts = EXCLUDED.total_posts,
		   monthly_growth = EXCLUDED.monthly_growth,
		   popular_posts = EXCLUDED.popular_posts,
		   user_engagement = EXCLUDED.user_engagement,
		   updated_at = EXCLUDED.updated_at`,
		a.TotalViews, a.TotalSubscribers, a.TotalPosts, a.MonthlyGrowth, pq.Array(popular), engagement, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save analytics: %w", err)
	}
	return nil
}

func (r *PostgresStore) saveSettings(ctx context.Context, s model.Settings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (id, site_name, site_description, maintenance_mode, allow_registrations, max_subscribers, featured_posts_limit, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   site_name = EXCLUDED.site_name,
		   site_description = EXCLUDED.site_description,
		   maintenance_mode = EXCLUDED.maintenance_mode,
		   allow_registrations = EXCLUDED.allow_registrations,
		   max_subscribers = EXCLUDED.max_subscribers,
		   featured_posts_limit = EXCLUDED.featured_posts_limit,
		   updated_at = EXCLUDED.updated_at`,
		s.SiteName, s.SiteDescription, s.MaintenanceMode, s.AllowRegistrations, s.MaxSubscribers, s.FeaturedPostsLimit, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// isUniqueViolation はerrがPostgreSQLの一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
