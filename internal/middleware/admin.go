// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/brandhub/internal/auth"
	"github.com/hitoshi/brandhub/internal/model"
)

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みアイデンティティを格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はベアラートークンの検証に必要なインターフェース。auth.Gateが満たす。
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// NewAdminMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// 管理者ロールのアイデンティティのみを通過させるミドルウェアを返す。
// トークンがない・不正・期限切れの場合は401、管理者でない場合は403を返す。
func NewAdminMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				if !errors.Is(err, model.ErrTokenExpired) && !errors.Is(err, model.ErrMalformedToken) {
					slog.Error("failed to verify token",
						slog.String("error", err.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			identity := claims.Identity
			if !auth.IsAdmin(&identity) {
				slog.Warn("non-admin identity rejected",
					slog.String("identity_id", identity.ID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			noteIdentity(r.Context(), identity.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// BearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// IdentityFromContext はリクエストコンテキストから認証済みアイデンティティを取得する。
// 管理者ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(auth.Identity)
	return identity, ok && identity.ID != ""
}

// ContextWithIdentity はコンテキストにアイデンティティを注入する。
func ContextWithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
