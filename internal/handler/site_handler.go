package handler

import (
	"net/http"

	"github.com/hitoshi/brandhub/internal/datastore"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/repository"
)

// SiteHandler はサイト設定と集計のHTTPハンドラー。
type SiteHandler struct {
	store repository.SiteRepository
}

// NewSiteHandler はSiteHandlerを生成する。
func NewSiteHandler(store repository.SiteRepository) *SiteHandler {
	return &SiteHandler{store: store}
}

// GetSettings はサイト設定を返す。
// GET /api/settings
func (h *SiteHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings はサイト設定を上書き更新する。
// PUT /api/admin/settings
func (h *SiteHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	settings, err := h.store.UpdateSettings(r.Context(), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// GetAnalytics は現在の購読者・記事から計算した集計を返す。
// GET /api/admin/analytics
func (h *SiteHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.ComputeAnalytics(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// UpdateAnalytics は編集者が設定する集計値を更新する。
// PUT /api/admin/analytics
func (h *SiteHandler) UpdateAnalytics(w http.ResponseWriter, r *http.Request) {
	var patch model.AnalyticsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	analytics, err := h.store.UpdateAnalytics(r.Context(), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// HealthChecker はデータストアの状態を報告する。datastore.Adapterが満たす。
type HealthChecker interface {
	Mode() datastore.Mode
}

type healthResponse struct {
	Status    string `json:"status"`
	Datastore string `json:"datastore"`
}

// Health はプロセスの稼働状態と使用中のバックエンドを返す。
// バックエンドが縮退していても200を返す。
// GET /health
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "ok",
			Datastore: string(checker.Mode()),
		})
	}
}
