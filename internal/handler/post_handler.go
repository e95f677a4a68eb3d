package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/post"
)

// PostServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	List(ctx context.Context) ([]model.Post, error)
	ListFeatured(ctx context.Context) ([]model.Post, error)
	Find(ctx context.Context, id string) (*model.Post, error)
	Create(ctx context.Context, in post.CreateInput) (*model.Post, error)
	Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error)
	Delete(ctx context.Context, id string) error
}

var _ PostServiceInterface = (*post.Service)(nil)

// PostHandler は記事関連のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// ListPosts は全記事を返す。
// GET /api/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// ListFeatured は注目記事を返す。
// GET /api/posts/featured
func (h *PostHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListFeatured(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// GetPost は記事を1件返す。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.Find(r.Context(), id)
	if err != nil {
		handlePostError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePost は記事を作成する。IDを省略した場合はタイトルから生成する。
// POST /api/admin/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in post.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		id := in.ID
		if id == "" {
			id = post.Slugify(in.Title)
		}
		handlePostError(w, err, id)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdatePost は記事を部分更新する。
// PATCH /api/admin/posts/{id}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch model.PostPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	p, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		handlePostError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePost は記事を削除する。
// DELETE /api/admin/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handlePostError(w, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
