package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/hitoshi/brandhub/internal/datastore"
	"github.com/hitoshi/brandhub/internal/importer"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/security"
	"github.com/hitoshi/brandhub/internal/worker/backup"
)

// --- /health ---

func TestHealth_ReportsDatastoreMode(t *testing.T) {
	deps := newTestDeps()
	deps.Health = &mockHealth{mode: datastore.ModeDegraded}

	rec := serve(t, deps, http.MethodGet, "/health", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got healthResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Status != "ok" || got.Datastore != "degraded" {
		t.Errorf("health = %+v", got)
	}
}

// --- 設定 ---

func TestSiteHandler_GetSettings_Public(t *testing.T) {
	deps := newTestDeps()
	deps.Site = &mockSiteRepository{
		getSettingsFn: func(ctx context.Context) (*model.Settings, error) {
			return &model.Settings{SiteName: "Brand Hub", AllowRegistrations: true}, nil
		},
	}

	rec := serve(t, deps, http.MethodGet, "/api/settings", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got model.Settings
	json.NewDecoder(rec.Body).Decode(&got)
	if got.SiteName != "Brand Hub" {
		t.Errorf("siteName = %q", got.SiteName)
	}
}

func TestSiteHandler_UpdateSettings(t *testing.T) {
	rec := serve(t, newTestDeps(), http.MethodPut, "/api/admin/settings", `{"maxSubscribers":50}`, "admin-token")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got model.Settings
	json.NewDecoder(rec.Body).Decode(&got)
	if got.MaxSubscribers != 50 {
		t.Errorf("maxSubscribers = %d, want 50", got.MaxSubscribers)
	}
}

func TestSiteHandler_UpdateSettings_RequiresAdmin(t *testing.T) {
	rec := serve(t, newTestDeps(), http.MethodPut, "/api/admin/settings", `{"maxSubscribers":50}`, "")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// --- 集計 ---

func TestSiteHandler_GetAnalytics_StoreUnavailable(t *testing.T) {
	deps := newTestDeps()
	deps.Site = &mockSiteRepository{
		computeAnalyticsFn: func(ctx context.Context) (*model.AnalyticsReport, error) {
			return nil, fmt.Errorf("failed to read: %w", model.ErrStoreUnavailable)
		},
	}

	rec := serve(t, deps, http.MethodGet, "/api/admin/analytics", "", "admin-token")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestSiteHandler_UpdateAnalytics(t *testing.T) {
	deps := newTestDeps()
	deps.Site = &mockSiteRepository{
		updateAnalyticsFn: func(ctx context.Context, patch model.AnalyticsPatch) (*model.Analytics, error) {
			if patch.MonthlyGrowth == nil || *patch.MonthlyGrowth != 12.5 {
				t.Errorf("monthlyGrowth = %v", patch.MonthlyGrowth)
			}
			if patch.UserEngagement != nil {
				t.Error("userEngagement should be absent")
			}
			a := &model.Analytics{}
			patch.Apply(a)
			return a, nil
		},
	}

	rec := serve(t, deps, http.MethodPut, "/api/admin/analytics", `{"monthlyGrowth":12.5}`, "admin-token")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// --- バックアップ ---

func TestAdminHandler_Backup(t *testing.T) {
	deps := newTestDeps()
	deps.Backup = &mockBackupRunner{
		runFn: func(ctx context.Context) (*backup.Result, error) {
			return &backup.Result{Path: "/data/site.backup-1.json", Pruned: 2}, nil
		},
	}

	rec := serve(t, deps, http.MethodPost, "/api/admin/backup", "", "admin-token")

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var got backup.Result
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Pruned != 2 {
		t.Errorf("pruned = %d, want 2", got.Pruned)
	}
}

func TestAdminHandler_Backup_Failure(t *testing.T) {
	deps := newTestDeps()
	deps.Backup = &mockBackupRunner{
		runFn: func(ctx context.Context) (*backup.Result, error) {
			return nil, errors.New("disk full")
		},
	}

	rec := serve(t, deps, http.MethodPost, "/api/admin/backup", "", "admin-token")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// --- 取り込み ---

func TestAdminHandler_Import_Success(t *testing.T) {
	deps := newTestDeps()
	deps.Importer = &mockFeedImporter{
		importFn: func(ctx context.Context, rawURL string) (*importer.Result, error) {
			return &importer.Result{FeedURL: rawURL + "/feed.xml", Created: 2, PostIDs: []string{"a", "b"}}, nil
		},
	}

	rec := serve(t, deps, http.MethodPost, "/api/admin/import", `{"url":" https://blog.example.com "}`, "admin-token")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got importer.Result
	json.NewDecoder(rec.Body).Decode(&got)
	if got.FeedURL != "https://blog.example.com/feed.xml" || got.Created != 2 {
		t.Errorf("result = %+v", got)
	}
}

func TestAdminHandler_Import_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"SSRFブロック", fmt.Errorf("%w: 127.0.0.1", security.ErrBlockedDestination), http.StatusForbidden, model.ErrCodeSSRFBlocked},
		{"不正なURL", security.ErrInvalidURL, http.StatusBadRequest, model.ErrCodeInvalidURL},
		{"フィード未検出", importer.ErrFeedNotDetected, http.StatusUnprocessableEntity, model.ErrCodeFeedNotDetected},
		{"取得失敗", fmt.Errorf("%w: unexpected status 500", importer.ErrFetchFailed), http.StatusBadGateway, model.ErrCodeFetchFailed},
		{"解析失敗", importer.ErrParseFailed, http.StatusUnprocessableEntity, model.ErrCodeParseFailed},
		{"保存失敗", fmt.Errorf("failed to create post: %w", model.ErrStoreUnavailable), http.StatusServiceUnavailable, model.ErrCodeStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.Importer = &mockFeedImporter{
				importFn: func(ctx context.Context, rawURL string) (*importer.Result, error) {
					return &importer.Result{FeedURL: rawURL}, tt.err
				},
			}

			rec := serve(t, deps, http.MethodPost, "/api/admin/import", `{"url":"https://blog.example.com"}`, "admin-token")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if body := decodeErrorBody(t, rec); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAdminHandler_Import_EmptyURL(t *testing.T) {
	deps := newTestDeps()
	deps.Importer = &mockFeedImporter{
		importFn: func(ctx context.Context, rawURL string) (*importer.Result, error) {
			t.Error("Import should not be called")
			return nil, nil
		},
	}

	rec := serve(t, deps, http.MethodPost, "/api/admin/import", `{"url":"  "}`, "admin-token")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// --- エラーマッピング ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		apiErr *model.APIError
		want   int
	}{
		{model.NewInvalidRequestError(), http.StatusBadRequest},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewForbiddenError(), http.StatusForbidden},
		{model.NewPostNotFoundError("x"), http.StatusNotFound},
		{model.NewDuplicateEmailError(), http.StatusConflict},
		{model.NewRateLimitedError(), http.StatusTooManyRequests},
		{model.NewFetchFailedError("x"), http.StatusBadGateway},
		{model.NewStoreUnavailableError(), http.StatusServiceUnavailable},
		{model.NewInternalError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.apiErr.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.apiErr); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.apiErr.Code, got, tt.want)
			}
		})
	}
}
