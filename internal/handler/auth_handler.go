package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/brandhub/internal/auth"
	"github.com/hitoshi/brandhub/internal/middleware"
	"github.com/hitoshi/brandhub/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするインターフェース。auth.Gateが満たす。
type AuthServiceInterface interface {
	Authenticate(identifier, secret string) (*auth.Identity, error)
	IssueToken(identity auth.Identity) (string, error)
	TTL() time.Duration
}

var _ AuthServiceInterface = (*auth.Gate)(nil)

// AuthHandler は管理者ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	now     func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
		now:     time.Now,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	User      auth.Identity `json:"user"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

type verifyResponse struct {
	Valid bool          `json:"valid"`
	User  auth.Identity `json:"user"`
}

// Login は管理者の資格情報を検証し、ベアラートークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, err := h.service.Authenticate(req.Email, req.Password)
	if err != nil {
		slog.Warn("admin login failed", slog.String("client_ip", middleware.ClientIP(r)))
		handleServiceError(w, err)
		return
	}

	issuedAt := h.now()
	token, err := h.service.IssueToken(*identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("admin logged in", slog.String("identity_id", identity.ID))
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		User:      *identity,
		ExpiresAt: issuedAt.Add(h.service.TTL()).UTC(),
	})
}

// Verify はトークンが有効であることを確認し、アイデンティティを返す。
// トークンの検証は管理者ミドルウェアが行う。
// GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, User: identity})
}
