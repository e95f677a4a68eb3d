// Package post はブログ記事の作成・更新・公開一覧を提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/repository"
	"github.com/hitoshi/brandhub/internal/security"
)

// maxSlugLength はタイトル由来のIDの最大長。
const maxSlugLength = 60

// wordsPerMinute は読了時間の算出に使う1分あたりの単語数。
const wordsPerMinute = 200

const (
	defaultCategory = "general"
	defaultAuthor   = "Editorial Team"
	dateLayout      = "2006-01-02"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces       = regexp.MustCompile(`\s+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// Store は記事サービスが利用するデータストア操作。
type Store interface {
	repository.PostRepository
	GetSettings(ctx context.Context) (*model.Settings, error)
}

// CreateInput は記事作成の入力。IDが空の場合はタイトルから生成する。
type CreateInput struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Category    string   `json:"category,omitempty"`
	Featured    bool     `json:"featured,omitempty"`
	Date        string   `json:"date,omitempty"`
	Author      string   `json:"author,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Service は記事に関するビジネスロジックを提供する。
type Service struct {
	store     Store
	sanitizer security.Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(store Store, sanitizer security.Sanitizer) *Service {
	return &Service{
		store:     store,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Create は記事を作成する。
// 本文はサニタイズし、タイトル・説明文はタグを除去する。未指定の項目には既定値を設定する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Post, error) {
	title := s.sanitizer.StripTags(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", model.ErrInvalidInput)
	}

	id := Slugify(in.ID)
	if id == "" {
		id = Slugify(title)
	}
	if id == "" {
		return nil, fmt.Errorf("title must contain alphanumeric characters: %w", model.ErrInvalidInput)
	}

	content := s.sanitizer.SanitizeHTML(in.Content)

	post := &model.Post{
		ID:          id,
		Title:       title,
		Description: s.sanitizer.StripTags(in.Description),
		Content:     content,
		Category:    strings.TrimSpace(in.Category),
		Featured:    in.Featured,
		Date:        strings.TrimSpace(in.Date),
		ReadTime:    s.readTime(content),
		Author:      strings.TrimSpace(in.Author),
		Tags:        normalizeTags(in.Tags),
	}
	if post.Category == "" {
		post.Category = defaultCategory
	}
	if post.Date == "" {
		post.Date = s.now().Format(dateLayout)
	}
	if post.Author == "" {
		author, err := s.defaultAuthor(ctx)
		if err != nil {
			return nil, err
		}
		post.Author = author
	}

	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("category", post.Category),
	)
	return post, nil
}

// Update は記事を部分更新する。本文が指定された場合はサニタイズし、読了時間も再計算する。
func (s *Service) Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	if patch.Title != nil {
		title := s.sanitizer.StripTags(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("title must not be empty: %w", model.ErrInvalidInput)
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc := s.sanitizer.StripTags(*patch.Description)
		patch.Description = &desc
	}
	if patch.Content != nil {
		content := s.sanitizer.SanitizeHTML(*patch.Content)
		patch.Content = &content
		if patch.ReadTime == nil {
			rt := s.readTime(content)
			patch.ReadTime = &rt
		}
	}
	if patch.Tags != nil {
		tags := normalizeTags(*patch.Tags)
		patch.Tags = &tags
	}

	return s.store.UpdatePost(ctx, id, patch)
}

// Delete は記事を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	slog.Info("post deleted", slog.String("post_id", id))
	return nil
}

// List は全記事を登録順で返す。
func (s *Service) List(ctx context.Context) ([]model.Post, error) {
	return s.store.ListPosts(ctx)
}

// Find は記事を取得する。存在しない場合はErrNotFoundを返す。
func (s *Service) Find(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.store.FindPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, model.ErrNotFound
	}
	return post, nil
}

// ListFeatured は注目記事を登録順で返す。
// Settings.FeaturedPostsLimitが正の値の場合はその件数までに制限する。
func (s *Service) ListFeatured(ctx context.Context) ([]model.Post, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	featured := []model.Post{}
	for _, p := range posts {
		if !p.Featured {
			continue
		}
		if settings.FeaturedPostsLimit > 0 && len(featured) >= settings.FeaturedPostsLimit {
			break
		}
		featured = append(featured, p)
	}
	return featured, nil
}

func (s *Service) defaultAuthor(ctx context.Context) (string, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get settings: %w", err)
	}
	if name := strings.TrimSpace(settings.SiteName); name != "" {
		return name, nil
	}
	return defaultAuthor, nil
}

func (s *Service) readTime(content string) string {
	return ReadTime(s.sanitizer.StripTags(content))
}

// Slugify はタイトルからURLに使えるIDを生成する。
// 小文字化し、英数字・空白・ハイフン以外を除去したうえで空白をハイフンにまとめ、60文字で切り詰める。
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// ReadTime はプレーンテキストの単語数から "N min read" 形式の読了時間を返す。最小は1分。
func ReadTime(text string) string {
	words := len(strings.Fields(text))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

// normalizeTags は前後空白を除去し、空要素と重複を取り除く。
func normalizeTags(tags []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
