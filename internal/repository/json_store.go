package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/brandhub/internal/model"
)

// backupTimeLayout はバックアップファイル名に埋め込むタイムスタンプの形式。
const backupTimeLayout = "20060102T150405.000000000"

// JSONStore は全コレクションを1つのJSONファイルに保存するバックエンド。
// 更新はファイル全体の読み込み・変更・書き戻しで行い、プロセス内ではmutexで直列化する。
// 複数プロセスからの同時書き込みは保護しない（後勝ち）。
type JSONStore struct {
	path string
	seed *model.Document
	now  func() time.Time

	mu sync.Mutex
}

// NewJSONStore はJSONStoreを生成する。
// seedはファイルが存在しない場合に初回書き込みされるデータ。nilの場合は空のドキュメントを使う。
func NewJSONStore(path string, seed *model.Document) *JSONStore {
	return &JSONStore{
		path: path,
		seed: seed,
		now:  time.Now,
	}
}

// Path はデータファイルのパスを返す。
func (s *JSONStore) Path() string {
	return s.path
}

// ReadAll はドキュメント全体を読み込む。
// ファイルが存在しない場合はシードデータで作成してから返す。
// 読み込み・パースに失敗した場合はErrStoreUnavailableをラップして返す。
func (s *JSONStore) ReadAll(ctx context.Context) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// WriteAll はドキュメント全体でファイルを上書きする。
func (s *JSONStore) WriteAll(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(s.path, doc)
}

// Snapshot は現在のドキュメントをタイムスタンプ付きの兄弟ファイルに書き出し、そのパスを返す。
func (s *JSONStore) Snapshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return "", err
	}

	backupPath := s.backupPath(s.now())
	if err := s.writeLocked(backupPath, doc); err != nil {
		return "", err
	}
	return backupPath, nil
}

// BackupFile はスナップショットファイルの情報。
type BackupFile struct {
	Path      string
	CreatedAt time.Time
}

// Backups は既存のスナップショットを作成日時の昇順で返す。
func (s *JSONStore) Backups() ([]BackupFile, error) {
	prefix := s.backupPrefix()
	matches, err := filepath.Glob(prefix + "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupFile, 0, len(matches))
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(m, prefix), ".json")
		createdAt, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			continue
		}
		backups = append(backups, BackupFile{Path: m, CreatedAt: createdAt})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.Before(backups[j].CreatedAt)
	})
	return backups, nil
}

// --- 購読者 ---

// ListSubscribers は全購読者を登録順で返す。
func (s *JSONStore) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	doc, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Subscribers, nil
}

// FindSubscriber はメールアドレスで購読者を検索する。見つからない場合はnilを返す。
func (s *JSONStore) FindSubscriber(ctx context.Context, email string) (*model.Subscriber, error) {
	doc, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexSubscriber(doc.Subscribers, email); i >= 0 {
		sub := doc.Subscribers[i]
		return &sub, nil
	}
	return nil, nil
}

// CreateSubscriber は購読者を追加する。
func (s *JSONStore) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	return s.mutate(func(doc *model.Document) error {
		if indexSubscriber(doc.Subscribers, sub.Email) >= 0 {
			return model.ErrDuplicateEmail
		}
		prepareNewSubscriber(sub, s.now())
		doc.Subscribers = append(doc.Subscribers, *sub)
		return nil
	})
}

// UpdateSubscriber は購読者を部分更新する。
func (s *JSONStore) UpdateSubscriber(ctx context.Context, email string, patch model.SubscriberPatch) (*model.Subscriber, error) {
	var updated model.Subscriber
	err := s.mutate(func(doc *model.Document) error {
		i := indexSubscriber(doc.Subscribers, email)
		if i < 0 {
			return model.ErrNotFound
		}
		patch.Apply(&doc.Subscribers[i])
		updated = doc.Subscribers[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSubscriber は購読者を削除する。
func (s *JSONStore) DeleteSubscriber(ctx context.Context, email string) error {
	return s.mutate(func(doc *model.Document) error {
		i := indexSubscriber(doc.Subscribers, email)
		if i < 0 {
			return model.ErrNotFound
		}
		doc.Subscribers = append(doc.Subscribers[:i], doc.Subscribers[i+1:]...)
		return nil
	})
}

// --- 記事 ---

// ListPosts は全記事を登録順で返す。
func (s *JSONStore) ListPosts(ctx context.Context) ([]model.Post, error) {
	doc, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Posts, nil
}

// FindPost は指定IDの記事を取得する。見つからない場合はnilを返す。
func (s *JSONStore) FindPost(ctx context.Context, id string) (*model.Post, error) {
	doc, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexPost(doc.Posts, id); i >= 0 {
		post := doc.Posts[i]
		return &post, nil
	}
	return nil, nil
}

// CreatePost は記事を追加する。
func (s *JSONStore) CreatePost(ctx context.Context, post *model.Post) error {
	return s.mutate(func(doc *model.Document) error {
		if indexPost(doc.Posts, post.ID) >= 0 {
			return model.ErrDuplicatePost
		}
		if post.Tags == nil {
			post.Tags = []string{}
		}
		doc.Posts = append(doc.Posts, *post)
		return nil
	})
}

// UpdatePost は記事を部分更新する。
func (s *JSONStore) UpdatePost(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	var updated model.Post
	err := s.mutate(func(doc *model.Document) error {
		i := indexPost(doc.Posts, id)
		if i < 0 {
			return model.ErrNotFound
		}
		patch.Apply(&doc.Posts[i])
		updated = doc.Posts[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePost は記事を削除する。
func (s *JSONStore) DeletePost(ctx context.Context, id string) error {
	return s.mutate(func(doc *model.Document) error {
		i := indexPost(doc.Posts, id)
		if i < 0 {
			return model.ErrNotFound
		}
		doc.Posts = append(doc.Posts[:i], doc.Posts[i+1:]...)
		return nil
	})
}

// --- 集計・設定 ---

// ComputeAnalytics は現在のコレクションから集計を計算する。
func (s *JSONStore) ComputeAnalytics(ctx context.Context) (*model.AnalyticsReport, error) {
	doc, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return BuildAnalyticsReport(doc.Subscribers, doc.Posts, doc.Analytics), nil
}

// UpdateAnalytics は編集者設定の集計値を更新する。
// 保存される件数・閲覧数のスナップショットも現在値で書き換える。
func (s *JSONStore) UpdateAnalytics(ctx context.Context, patch model.AnalyticsPatch) (*model.Analytics, error) {
	var updated model.Analytics
	err := s.mutate(func(doc *model.Document) error {
		patch.Apply(&doc.Analytics)
		report := BuildAnalyticsReport(doc.Subscribers, doc.Posts, doc.Analytics)
		doc.Analytics.TotalSubscribers = report.TotalSubscribers
		doc.Analytics.TotalPosts = report.TotalPosts
		doc.Analytics.TotalViews = report.TotalViews
		doc.Analytics.PopularPosts = report.PopularPosts
		updated = doc.Analytics
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetSettings はサイト設定を取得する。
func (s *JSONStore) GetSettings(ctx context.Context) (*model.Settings, error) {
	doc, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	settings := doc.Settings
	return &settings, nil
}

// UpdateSettings はサイト設定を更新する。
func (s *JSONStore) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (*model.Settings, error) {
	var updated model.Settings
	err := s.mutate(func(doc *model.Document) error {
		patch.Apply(&doc.Settings)
		updated = doc.Settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// --- 内部処理 ---

// mutate はロックを保持したままドキュメントを読み込み、fnで変更して書き戻す。
// fnがエラーを返した場合は書き戻さない。
func (s *JSONStore) mutate(fn func(doc *model.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.writeLocked(s.path, doc)
}

// readLocked はファイルを読み込む。呼び出し側でmuを保持していること。
func (s *JSONStore) readLocked() (*model.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		seed := s.seed
		if seed == nil {
			seed = &model.Document{}
		}
		if err := s.writeLocked(s.path, seed); err != nil {
			return nil, err
		}
		data, err = os.ReadFile(s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w: %v", s.path, model.ErrStoreUnavailable, err)
	}

	doc := &model.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w: %v", s.path, model.ErrStoreUnavailable, err)
	}
	if doc.Subscribers == nil {
		doc.Subscribers = []model.Subscriber{}
	}
	if doc.Posts == nil {
		doc.Posts = []model.Post{}
	}
	return doc, nil
}

// writeLocked はドキュメントを整形済みJSONでpathに書き込む。
func (s *JSONStore) writeLocked(path string, doc *model.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w: %v", model.ErrStoreUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w: %v", model.ErrStoreUnavailable, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w: %v", path, model.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *JSONStore) backupPrefix() string {
	return strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".backup-"
}

func (s *JSONStore) backupPath(at time.Time) string {
	return s.backupPrefix() + at.UTC().Format(backupTimeLayout) + ".json"
}

func indexSubscriber(subs []model.Subscriber, email string) int {
	key := model.NormalizeEmail(email)
	for i := range subs {
		if model.NormalizeEmail(subs[i].Email) == key {
			return i
		}
	}
	return -1
}

func indexPost(posts []model.Post, id string) int {
	for i := range posts {
		if posts[i].ID == id {
			return i
		}
	}
	return -1
}

// compile-time interface check
var _ Store = (*JSONStore)(nil)
