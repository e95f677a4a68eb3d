package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/brandhub/internal/auth"
	"github.com/hitoshi/brandhub/internal/datastore"
	"github.com/hitoshi/brandhub/internal/importer"
	"github.com/hitoshi/brandhub/internal/middleware"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/post"
	"github.com/hitoshi/brandhub/internal/subscriber"
	"github.com/hitoshi/brandhub/internal/worker/backup"
)

// --- モック定義 ---

// mockSubscriberService はSubscriberServiceInterfaceのモック実装。
type mockSubscriberService struct {
	subscribeFn         func(ctx context.Context, in subscriber.SubscribeInput) (*model.Subscriber, error)
	unsubscribeFn       func(ctx context.Context, email, reason string) (*model.Subscriber, error)
	resubscribeFn       func(ctx context.Context, email string) (*model.Subscriber, error)
	updatePreferencesFn func(ctx context.Context, email string, prefs model.Preferences) (*model.Subscriber, error)
	completeTutorialFn  func(ctx context.Context, email, tutorialID string) (*model.Subscriber, error)
	toggleBookmarkFn    func(ctx context.Context, email, postID string) (*model.Subscriber, error)
	listFn              func(ctx context.Context) ([]model.Subscriber, error)
	findFn              func(ctx context.Context, email string) (*model.Subscriber, error)
	updateFn            func(ctx context.Context, email string, patch model.SubscriberPatch) (*model.Subscriber, error)
	deleteFn            func(ctx context.Context, email string) error
}

func (m *mockSubscriberService) Subscribe(ctx context.Context, in subscriber.SubscribeInput) (*model.Subscriber, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, in)
	}
	return &model.Subscriber{Email: in.Email}, nil
}

func (m *mockSubscriberService) Unsubscribe(ctx context.Context, email, reason string) (*model.Subscriber, error) {
	if m.unsubscribeFn != nil {
		return m.unsubscribeFn(ctx, email, reason)
	}
	return &model.Subscriber{Email: email, Status: model.StatusUnsubscribed}, nil
}

func (m *mockSubscriberService) Resubscribe(ctx context.Context, email string) (*model.Subscriber, error) {
	if m.resubscribeFn != nil {
		return m.resubscribeFn(ctx, email)
	}
	return &model.Subscriber{Email: email, Status: model.StatusActive}, nil
}

func (m *mockSubscriberService) UpdatePreferences(ctx context.Context, email string, prefs model.Preferences) (*model.Subscriber, error) {
	if m.updatePreferencesFn != nil {
		return m.updatePreferencesFn(ctx, email, prefs)
	}
	return &model.Subscriber{Email: email, Preferences: prefs}, nil
}

func (m *mockSubscriberService) CompleteTutorial(ctx context.Context, email, tutorialID string) (*model.Subscriber, error) {
	if m.completeTutorialFn != nil {
		return m.completeTutorialFn(ctx, email, tutorialID)
	}
	return &model.Subscriber{Email: email}, nil
}

func (m *mockSubscriberService) ToggleBookmark(ctx context.Context, email, postID string) (*model.Subscriber, error) {
	if m.toggleBookmarkFn != nil {
		return m.toggleBookmarkFn(ctx, email, postID)
	}
	return &model.Subscriber{Email: email}, nil
}

func (m *mockSubscriberService) List(ctx context.Context) ([]model.Subscriber, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.Subscriber{}, nil
}

func (m *mockSubscriberService) Find(ctx context.Context, email string) (*model.Subscriber, error) {
	if m.findFn != nil {
		return m.findFn(ctx, email)
	}
	return nil, model.ErrNotFound
}

func (m *mockSubscriberService) Update(ctx context.Context, email string, patch model.SubscriberPatch) (*model.Subscriber, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, email, patch)
	}
	return &model.Subscriber{Email: email}, nil
}

func (m *mockSubscriberService) Delete(ctx context.Context, email string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, email)
	}
	return nil
}

// mockPostService はPostServiceInterfaceのモック実装。
type mockPostService struct {
	listFn         func(ctx context.Context) ([]model.Post, error)
	listFeaturedFn func(ctx context.Context) ([]model.Post, error)
	findFn         func(ctx context.Context, id string) (*model.Post, error)
	createFn       func(ctx context.Context, in post.CreateInput) (*model.Post, error)
	updateFn       func(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error)
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockPostService) List(ctx context.Context) ([]model.Post, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.Post{}, nil
}

func (m *mockPostService) ListFeatured(ctx context.Context) ([]model.Post, error) {
	if m.listFeaturedFn != nil {
		return m.listFeaturedFn(ctx)
	}
	return []model.Post{}, nil
}

func (m *mockPostService) Find(ctx context.Context, id string) (*model.Post, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, model.ErrNotFound
}

func (m *mockPostService) Create(ctx context.Context, in post.CreateInput) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &model.Post{ID: in.ID, Title: in.Title}, nil
}

func (m *mockPostService) Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return &model.Post{ID: id}, nil
}

func (m *mockPostService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockSiteRepository はrepository.SiteRepositoryのモック実装。
type mockSiteRepository struct {
	computeAnalyticsFn func(ctx context.Context) (*model.AnalyticsReport, error)
	updateAnalyticsFn  func(ctx context.Context, patch model.AnalyticsPatch) (*model.Analytics, error)
	getSettingsFn      func(ctx context.Context) (*model.Settings, error)
	updateSettingsFn   func(ctx context.Context, patch model.SettingsPatch) (*model.Settings, error)
}

func (m *mockSiteRepository) ComputeAnalytics(ctx context.Context) (*model.AnalyticsReport, error) {
	if m.computeAnalyticsFn != nil {
		return m.computeAnalyticsFn(ctx)
	}
	return &model.AnalyticsReport{}, nil
}

func (m *mockSiteRepository) UpdateAnalytics(ctx context.Context, patch model.AnalyticsPatch) (*model.Analytics, error) {
	if m.updateAnalyticsFn != nil {
		return m.updateAnalyticsFn(ctx, patch)
	}
	return &model.Analytics{}, nil
}

func (m *mockSiteRepository) GetSettings(ctx context.Context) (*model.Settings, error) {
	if m.getSettingsFn != nil {
		return m.getSettingsFn(ctx)
	}
	return &model.Settings{}, nil
}

func (m *mockSiteRepository) UpdateSettings(ctx context.Context, patch model.SettingsPatch) (*model.Settings, error) {
	if m.updateSettingsFn != nil {
		return m.updateSettingsFn(ctx, patch)
	}
	settings := &model.Settings{}
	patch.Apply(settings)
	return settings, nil
}

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	authenticateFn func(identifier, secret string) (*auth.Identity, error)
	issueTokenFn   func(identity auth.Identity) (string, error)
	ttl            time.Duration
}

func (m *mockAuthService) Authenticate(identifier, secret string) (*auth.Identity, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(identifier, secret)
	}
	return nil, model.ErrInvalidCredentials
}

func (m *mockAuthService) IssueToken(identity auth.Identity) (string, error) {
	if m.issueTokenFn != nil {
		return m.issueTokenFn(identity)
	}
	return "token", nil
}

func (m *mockAuthService) TTL() time.Duration { return m.ttl }

// mockTokenVerifier はmiddleware.TokenVerifierのモック実装。
type mockTokenVerifier struct {
	verifyFn func(token string) (*auth.Claims, error)
}

func (m *mockTokenVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return nil, model.ErrMalformedToken
}

// mockHealth はHealthCheckerのモック実装。
type mockHealth struct {
	mode datastore.Mode
}

func (m *mockHealth) Mode() datastore.Mode { return m.mode }

// mockBackupRunner はBackupRunnerのモック実装。
type mockBackupRunner struct {
	runFn func(ctx context.Context) (*backup.Result, error)
}

func (m *mockBackupRunner) Run(ctx context.Context) (*backup.Result, error) {
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return &backup.Result{}, nil
}

// mockFeedImporter はFeedImporterのモック実装。
type mockFeedImporter struct {
	importFn func(ctx context.Context, rawURL string) (*importer.Result, error)
}

func (m *mockFeedImporter) Import(ctx context.Context, rawURL string) (*importer.Result, error) {
	if m.importFn != nil {
		return m.importFn(ctx, rawURL)
	}
	return &importer.Result{FeedURL: rawURL}, nil
}

// --- ヘルパー ---

// adminVerifier は"admin-token"のみを管理者として受け入れる。
func adminVerifier() *mockTokenVerifier {
	return &mockTokenVerifier{
		verifyFn: func(token string) (*auth.Claims, error) {
			if token != "admin-token" {
				return nil, model.ErrMalformedToken
			}
			return &auth.Claims{
				Identity: auth.Identity{ID: auth.AdminID, Identifier: "admin@example.com", Role: auth.RoleAdmin},
				IssuedAt: time.Now().UnixMilli(),
			}, nil
		},
	}
}

// newTestDeps は全てモックで構成したRouterDepsを返す。
func newTestDeps() *RouterDeps {
	return &RouterDeps{
		AuthService:       &mockAuthService{ttl: 24 * time.Hour},
		TokenVerifier:     adminVerifier(),
		SubscriberService: &mockSubscriberService{},
		PostService:       &mockPostService{},
		Site:              &mockSiteRepository{},
		Health:            &mockHealth{mode: datastore.ModeJSON},
		Backup:            &mockBackupRunner{},
		Importer:          &mockFeedImporter{},
	}
}

// decodeErrorBody はエラーレスポンスのボディをデコードする。
func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// serveHandler はルーターを通さずにハンドラーを直接呼び出す。
func serveHandler(h http.HandlerFunc, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, path, nil))
	return rec
}
