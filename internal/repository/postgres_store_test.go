package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var subscriberRowColumns = []string{
	"id", "email", "name", "plan", "status", "subscribed_at", "last_active", "unsubscribed_at", "resubscribed_at",
	"unsubscribe_reason", "tutorials_completed", "ai_tools_used", "learning_streak", "preferences", "progress",
}

var postRowColumns = []string{
	"id", "title", "description", "content", "category", "featured", "date", "read_time", "author", "tags", "views", "likes",
}

func newMockStore(t *testing.T, migrate MigrateFunc, seed *model.Document) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, migrate, seed), mock
}

func subscriberRow(email string, subscribedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(subscriberRowColumns).AddRow(
		"sub-1", email, "Reader", "free", "active", subscribedAt, subscribedAt, nil, nil,
		"", 2, 1, 3, []byte(`{"newsletter":true,"theme":"dark"}`), []byte(`{"completedTutorials":["t1"],"bookmarkedPosts":[]}`),
	)
}

func TestPostgresStore_FindSubscriber_NotFound(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE email = \$1`).
		WithArgs("reader@example.com").
		WillReturnRows(sqlmock.NewRows(subscriberRowColumns))

	got, err := store.FindSubscriber(context.Background(), " Reader@Example.com ")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindSubscriber_DecodesJSONColumns(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE email = \$1`).
		WithArgs("reader@example.com").
		WillReturnRows(subscriberRow("reader@example.com", at))

	got, err := store.FindSubscriber(context.Background(), "reader@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, model.PlanFree, got.Plan)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Nil(t, got.UnsubscribedAt)
	require.NotNil(t, got.Preferences.Newsletter)
	assert.True(t, *got.Preferences.Newsletter)
	assert.Equal(t, "dark", got.Preferences.Theme)
	assert.Equal(t, []string{"t1"}, got.Progress.CompletedTutorials)
	assert.Equal(t, 3, got.LearningStreak)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 一意制約違反がErrDuplicateEmailに変換されること
func TestPostgresStore_CreateSubscriber_UniqueViolation(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)

	mock.ExpectExec(`INSERT INTO subscribers`).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	err := store.CreateSubscriber(context.Background(), &model.Subscriber{Email: "dup@example.com"})
	assert.ErrorIs(t, err, model.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSubscriber_OtherErrorIsWrapped(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)

	mock.ExpectExec(`INSERT INTO subscribers`).
		WillReturnError(errors.New("connection reset"))

	err := store.CreateSubscriber(context.Background(), &model.Subscriber{Email: "a@example.com"})
	require.Error(t, err)
	assert.False(t, model.IsDomainOutcome(err))
}

// 行ロックを取得してから全カラムを書き戻すこと
func TestPostgresStore_UpdateSubscriber(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM subscribers WHERE email = \$1 FOR UPDATE`).
		WithArgs("reader@example.com").
		WillReturnRows(subscriberRow("reader@example.com", at))
	mock.ExpectExec(`UPDATE subscribers SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := store.UpdateSubscriber(context.Background(), "reader@example.com", model.SubscriberPatch{
		Preferences: &model.Preferences{Theme: "light"},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Preferences.Newsletter)
	assert.Equal(t, "light", updated.Preferences.Theme)
	assert.Equal(t, "Reader", updated.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSubscriber_NotFound(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(subscriberRowColumns))
	mock.ExpectRollback()

	_, err := store.UpdateSubscriber(context.Background(), "ghost@example.com", model.SubscriberPatch{})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSubscriber_NotFound(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)

	mock.ExpectExec(`DELETE FROM subscribers WHERE email = \$1`).
		WithArgs("ghost@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteSubscriber(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPostgresStore_ListPosts_ScansTags(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)

	mock.ExpectQuery(`SELECT .+ FROM posts ORDER BY seq ASC`).
		WillReturnRows(sqlmock.NewRows(postRowColumns).
			AddRow("first", "First", "d", "c", "general", true, "2026-01-01", "1 min read", "Editorial Team", "{go,ai}", 5, 1).
			AddRow("second", "Second", "d", "c", "general", false, "2026-01-02", "2 min read", "Editorial Team", "{}", 0, 0))

	posts, err := store.ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, []string{"go", "ai"}, posts[0].Tags)
	assert.Equal(t, []string{}, posts[1].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreatePost_UniqueViolation(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)

	mock.ExpectExec(`INSERT INTO posts`).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	err := store.CreatePost(context.Background(), &model.Post{ID: "first"})
	assert.ErrorIs(t, err, model.ErrDuplicatePost)
}

func TestPostgresStore_GetSettings_EmptyTable(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)

	mock.ExpectQuery(`FROM settings WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"site_name"}))

	got, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Settings{}, *got)
}

// 空のテーブルのみに初期データを投入すること
func TestPostgresStore_Initialize_SeedsEmptyTables(t *testing.T) {
	migrated := false
	migrate := func(ctx context.Context) error {
		migrated = true
		return nil
	}
	seed := &model.Document{
		Posts:     []model.Post{{ID: "welcome", Title: "Welcome"}},
		Analytics: model.Analytics{MonthlyGrowth: 5},
		Settings:  model.Settings{SiteName: "Brand Hub"},
	}
	store, mock := newMockStore(t, migrate, seed)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM analytics`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO analytics`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM settings`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO posts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Initialize(context.Background()))
	assert.True(t, migrated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Initialize_MigrationError(t *testing.T) {
	store, _ := newMockStore(t, func(ctx context.Context) error {
		return errors.New("permission denied")
	}, nil)

	err := store.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create tables")
}

func TestPostgresStore_ComputeAnalytics(t *testing.T) {
	store, mock := newMockStore(t, nil, nil)
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM subscribers ORDER BY seq ASC`).
		WillReturnRows(subscriberRow("reader@example.com", at))
	mock.ExpectQuery(`FROM posts ORDER BY seq ASC`).
		WillReturnRows(sqlmock.NewRows(postRowColumns).
			AddRow("low", "Low", "", "", "general", false, "2026-01-01", "1 min read", "a", "{}", 1, 0).
			AddRow("high", "High", "", "", "general", false, "2026-01-02", "1 min read", "a", "{}", 9, 0))
	mock.ExpectQuery(`FROM analytics WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"total_views", "total_subscribers", "total_posts", "monthly_growth", "popular_posts", "user_engagement"}).
			AddRow(0, 0, 0, 7.5, "{}", []byte(`{"weekly":0.8}`)))

	report, err := store.ComputeAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalSubscribers)
	assert.Equal(t, 1, report.ActiveSubscribers)
	assert.Equal(t, 10, report.TotalViews)
	assert.Equal(t, 7.5, report.MonthlyGrowth)
	assert.Equal(t, map[string]float64{"weekly": 0.8}, report.UserEngagement)
	assert.Equal(t, []string{"high", "low"}, report.PopularPosts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db, nil, nil)

	mock.ExpectPing().WillReturnError(errors.New("down"))

	err = store.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}
