package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/subscriber"
)

// SubscriberServiceInterface は購読者ハンドラーが必要とするサービスインターフェース。
type SubscriberServiceInterface interface {
	Subscribe(ctx context.Context, in subscriber.SubscribeInput) (*model.Subscriber, error)
	Unsubscribe(ctx context.Context, email, reason string) (*model.Subscriber, error)
	Resubscribe(ctx context.Context, email string) (*model.Subscriber, error)
	UpdatePreferences(ctx context.Context, email string, prefs model.Preferences) (*model.Subscriber, error)
	CompleteTutorial(ctx context.Context, email, tutorialID string) (*model.Subscriber, error)
	ToggleBookmark(ctx context.Context, email, postID string) (*model.Subscriber, error)

	// 管理者向け
	List(ctx context.Context) ([]model.Subscriber, error)
	Find(ctx context.Context, email string) (*model.Subscriber, error)
	Update(ctx context.Context, email string, patch model.SubscriberPatch) (*model.Subscriber, error)
	Delete(ctx context.Context, email string) error
}

var _ SubscriberServiceInterface = (*subscriber.Service)(nil)

// SubscriberHandler は購読者関連のHTTPハンドラー。
type SubscriberHandler struct {
	service SubscriberServiceInterface
}

// NewSubscriberHandler はSubscriberHandlerを生成する。
func NewSubscriberHandler(service SubscriberServiceInterface) *SubscriberHandler {
	return &SubscriberHandler{service: service}
}

type unsubscribeRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type resubscribeRequest struct {
	Email string `json:"email"`
}

type completeTutorialRequest struct {
	TutorialID string `json:"tutorialId"`
}

type toggleBookmarkRequest struct {
	PostID string `json:"postId"`
}

// Subscribe は新規購読を登録する。
// POST /api/subscribe
func (h *SubscriberHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscriber.SubscribeInput
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.service.Subscribe(r.Context(), req)
	if err != nil {
		handleSubscriberError(w, err, req.Email)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe は購読を解除する。
// POST /api/unsubscribe
func (h *SubscriberHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.service.Unsubscribe(r.Context(), req.Email, req.Reason)
	if err != nil {
		handleSubscriberError(w, err, req.Email)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Resubscribe は解除済みの購読を再開する。
// POST /api/resubscribe
func (h *SubscriberHandler) Resubscribe(w http.ResponseWriter, r *http.Request) {
	var req resubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.service.Resubscribe(r.Context(), req.Email)
	if err != nil {
		handleSubscriberError(w, err, req.Email)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// UpdatePreferences は購読者の設定を置き換える。
// PUT /api/subscribers/{email}/preferences
func (h *SubscriberHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	var prefs model.Preferences
	if !decodeJSON(w, r, &prefs) {
		return
	}

	sub, err := h.service.UpdatePreferences(r.Context(), email, prefs)
	if err != nil {
		handleSubscriberError(w, err, email)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// CompleteTutorial はチュートリアルの完了を記録する。
// POST /api/subscribers/{email}/tutorials
func (h *SubscriberHandler) CompleteTutorial(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	var req completeTutorialRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.service.CompleteTutorial(r.Context(), email, req.TutorialID)
	if err != nil {
		handleSubscriberError(w, err, email)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ToggleBookmark は記事のブックマークを切り替える。
// POST /api/subscribers/{email}/bookmarks
func (h *SubscriberHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	var req toggleBookmarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PostID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	sub, err := h.service.ToggleBookmark(r.Context(), email, req.PostID)
	if err != nil {
		handleSubscriberError(w, err, email)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ListSubscribers は全購読者を返す。
// GET /api/admin/subscribers
func (h *SubscriberHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetSubscriber は購読者を1件返す。
// GET /api/admin/subscribers/{email}
func (h *SubscriberHandler) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	sub, err := h.service.Find(r.Context(), email)
	if err != nil {
		handleSubscriberError(w, err, email)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// UpdateSubscriber は購読者をトップレベルのフィールド単位で部分更新する。
// PATCH /api/admin/subscribers/{email}
func (h *SubscriberHandler) UpdateSubscriber(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	var patch model.SubscriberPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	sub, err := h.service.Update(r.Context(), email, patch)
	if err != nil {
		handleSubscriberError(w, err, email)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// DeleteSubscriber は購読者レコードを削除する。
// DELETE /api/admin/subscribers/{email}
func (h *SubscriberHandler) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), email); err != nil {
		handleSubscriberError(w, err, email)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// emailParam はパスの{email}をデコードして返す。
// chiはRawPathでルーティングするため、%40等のエスケープはここで戻す。
func emailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "email")
	email, err := url.PathUnescape(raw)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidEmailError(raw))
		return "", false
	}
	return email, true
}
