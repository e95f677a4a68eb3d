package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/brandhub/internal/importer"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/worker/backup"
)

// BackupRunner はスナップショットを作成する。backup.Jobが満たす。
type BackupRunner interface {
	Run(ctx context.Context) (*backup.Result, error)
}

// FeedImporter は外部フィードから記事を取り込む。importer.Importerが満たす。
type FeedImporter interface {
	Import(ctx context.Context, rawURL string) (*importer.Result, error)
}

var (
	_ BackupRunner = (*backup.Job)(nil)
	_ FeedImporter = (*importer.Importer)(nil)
)

// AdminHandler はバックアップと記事取り込みの管理者向けHTTPハンドラー。
type AdminHandler struct {
	backup   BackupRunner
	importer FeedImporter
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(backup BackupRunner, importer FeedImporter) *AdminHandler {
	return &AdminHandler{
		backup:   backup,
		importer: importer,
	}
}

type importRequest struct {
	URL string `json:"url"`
}

// Backup はJSONドキュメントのスナップショットを作成する。
// POST /api/admin/backup
func (h *AdminHandler) Backup(w http.ResponseWriter, r *http.Request) {
	result, err := h.backup.Run(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Import は指定URLのRSS/Atomフィードから記事を取り込む。
// 一部の記事の保存に失敗した場合も、それまでに作成した記事はそのまま残る。
// POST /api/admin/import
func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが指定されていません"))
		return
	}

	result, err := h.importer.Import(r.Context(), url)
	if err != nil {
		if result != nil && result.Created > 0 {
			slog.Warn("import partially completed",
				slog.String("url", url),
				slog.Int("created", result.Created),
				slog.String("error", err.Error()),
			)
		}
		handleImportError(w, err, url)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
