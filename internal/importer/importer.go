// Package importer は外部のRSS/Atomフィードからブログ記事を取り込む。
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/brandhub/internal/metrics"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/post"
	"github.com/hitoshi/brandhub/internal/security"
	"github.com/mmcdole/gofeed"
)

const (
	// DefaultTimeout はフィード取得のデフォルトタイムアウト。
	DefaultTimeout = 10 * time.Second

	// DefaultMaxSize はレスポンスボディの最大サイズ（5MB）。
	DefaultMaxSize int64 = 5 * 1024 * 1024

	userAgent  = "BrandHub/1.0 Feed Importer"
	accept     = "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*"
	dateLayout = "2006-01-02"
)

var (
	// ErrFeedNotDetected はURLからRSS/Atomフィードを特定できなかったことを示す。
	ErrFeedNotDetected = errors.New("feed not detected")

	// ErrFetchFailed はフィードの取得に失敗したことを示す。
	ErrFetchFailed = errors.New("fetch failed")

	// ErrParseFailed はフィードの解析に失敗したことを示す。
	ErrParseFailed = errors.New("parse failed")
)

// インポート失敗理由。メトリクスのラベルに使う。
const (
	reasonInvalidURL  = "invalid_url"
	reasonBlocked     = "blocked"
	reasonFetch       = "fetch"
	reasonNotDetected = "not_detected"
	reasonParse       = "parse"
	reasonStore       = "store"
)

// PostCreator は取り込んだ記事を保存する。post.Serviceが満たす。
type PostCreator interface {
	Create(ctx context.Context, in post.CreateInput) (*model.Post, error)
}

// Options はImporterの設定。
type Options struct {
	Timeout time.Duration
	MaxSize int64
	Metrics metrics.MetricsCollector
}

// Result はインポートの結果。
type Result struct {
	FeedURL string   `json:"feedUrl"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	PostIDs []string `json:"postIds"`
}

// Importer はフィードの検出・取得・解析と記事の作成を行う。
type Importer struct {
	guard   security.URLGuard
	client  *http.Client
	posts   PostCreator
	parser  *gofeed.Parser
	maxSize int64
	metrics metrics.MetricsCollector
}

// New はImporterを生成する。HTTPクライアントはguardが提供するSSRF防止付きのものを使う。
func New(guard security.URLGuard, posts PostCreator, opts Options) *Importer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	return &Importer{
		guard:   guard,
		client:  guard.Client(opts.Timeout),
		posts:   posts,
		parser:  gofeed.NewParser(),
		maxSize: opts.MaxSize,
		metrics: opts.Metrics,
	}
}

// Detect はURLがフィードならそのまま、HTMLページならhead内のalternateリンクから
// 最適なフィードURLを返す。
func (im *Importer) Detect(ctx context.Context, rawURL string) (string, error) {
	feedURL, _, err := im.resolve(ctx, rawURL)
	if err != nil {
		im.recordFailure(err)
		return "", err
	}
	return feedURL, nil
}

// Import はフィードの各エントリを記事として作成する。
// 同一IDの記事が既に存在するエントリや、タイトルのないエントリはスキップする。
func (im *Importer) Import(ctx context.Context, rawURL string) (*Result, error) {
	feedURL, body, err := im.resolve(ctx, rawURL)
	if err != nil {
		im.recordFailure(err)
		return nil, err
	}

	feed, err := im.parser.Parse(bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrParseFailed, err)
		im.recordFailure(err)
		return nil, err
	}

	result := &Result{FeedURL: feedURL, PostIDs: []string{}}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		created, err := im.posts.Create(ctx, toCreateInput(item))
		switch {
		case errors.Is(err, model.ErrDuplicatePost), errors.Is(err, model.ErrInvalidInput):
			result.Skipped++
		case err != nil:
			im.record(result.Created)
			if im.metrics != nil {
				im.metrics.RecordImportFailure(reasonStore)
			}
			return result, fmt.Errorf("failed to create post: %w", err)
		default:
			result.Created++
			result.PostIDs = append(result.PostIDs, created.ID)
		}
	}

	im.record(result.Created)
	slog.Info("feed imported",
		slog.String("feed_url", feedURL),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// resolve はURLを検証・取得し、フィードURLとそのボディを返す。
// HTMLの場合は検出したフィードURLを改めて取得する。
func (im *Importer) resolve(ctx context.Context, rawURL string) (string, []byte, error) {
	rawURL = strings.TrimSpace(rawURL)

	contentType, body, err := im.fetch(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}
	if isFeedResponse(contentType, body) {
		return rawURL, body, nil
	}
	if !isHTMLResponse(contentType) {
		return "", nil, fmt.Errorf("%w: %s", ErrFeedNotDetected, rawURL)
	}

	best := selectBest(parseFeedLinks(body, rawURL), rawURL)
	if best == nil {
		return "", nil, fmt.Errorf("%w: %s", ErrFeedNotDetected, rawURL)
	}

	_, body, err = im.fetch(ctx, best.URL)
	if err != nil {
		return "", nil, err
	}
	return best.URL, body, nil
}

func (im *Importer) fetch(ctx context.Context, rawURL string) (string, []byte, error) {
	if err := im.guard.Validate(rawURL); err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", security.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := im.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(body)) > im.maxSize {
		return "", nil, fmt.Errorf("%w: response exceeds %d bytes", ErrFetchFailed, im.maxSize)
	}
	return resp.Header.Get("Content-Type"), body, nil
}

func (im *Importer) record(created int) {
	if im.metrics != nil && created > 0 {
		im.metrics.RecordPostsImported(created)
	}
}

func (im *Importer) recordFailure(err error) {
	if im.metrics == nil {
		return
	}
	im.metrics.RecordImportFailure(failureReason(err))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, security.ErrBlockedDestination):
		return reasonBlocked
	case errors.Is(err, security.ErrInvalidURL):
		return reasonInvalidURL
	case errors.Is(err, ErrFeedNotDetected):
		return reasonNotDetected
	case errors.Is(err, ErrParseFailed):
		return reasonParse
	default:
		return reasonFetch
	}
}

// toCreateInput はフィードのエントリを記事作成の入力に変換する。
// 本文がない場合は概要を本文として使う。
func toCreateInput(item *gofeed.Item) post.CreateInput {
	in := post.CreateInput{
		Title:       item.Title,
		Description: item.Description,
		Content:     item.Content,
		Tags:        item.Categories,
	}
	if strings.TrimSpace(in.Content) == "" {
		in.Content = item.Description
	}

	switch {
	case item.PublishedParsed != nil:
		in.Date = item.PublishedParsed.UTC().Format(dateLayout)
	case item.UpdatedParsed != nil:
		in.Date = item.UpdatedParsed.UTC().Format(dateLayout)
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		in.Author = item.Authors[0].Name
	}
	return in
}
