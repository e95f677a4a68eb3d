// Package auth は管理者の認証とベアラートークンの発行・検証を提供する。
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/brandhub/internal/model"
)

const (
	// RoleAdmin は唯一の管理者ロール。
	RoleAdmin = "admin"

	// AdminID は管理者アイデンティティの固定ID。
	AdminID = "admin"

	// DefaultTokenTTL はトークンの既定の有効期間。
	DefaultTokenTTL = 24 * time.Hour
)

// Identity は認証済みの利用者。
type Identity struct {
	ID         string `json:"id"`
	Identifier string `json:"email"`
	Role       string `json:"role"`
}

// Claims はトークンに埋め込まれる内容。IssuedAtはUnixミリ秒。
type Claims struct {
	Identity
	IssuedAt int64 `json:"iat"`
}

// IssuedTime は発行時刻を返す。
func (c *Claims) IssuedTime() time.Time {
	return time.UnixMilli(c.IssuedAt)
}

// GateConfig はGateの設定。
type GateConfig struct {
	AdminIdentifier string
	AdminSecret     string
	TokenSecret     string
	TokenTTL        time.Duration
}

// Gate は単一の管理者アイデンティティを認証し、トークンを発行・検証する。
// トークンはHS256署名のJWTで、サーバー側には保存しない。
type Gate struct {
	identifier string
	secret     string
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewGate はGateを生成する。TokenTTLが0以下の場合は24時間を使う。
func NewGate(cfg GateConfig) *Gate {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Gate{
		identifier: cfg.AdminIdentifier,
		secret:     cfg.AdminSecret,
		signingKey: []byte(cfg.TokenSecret),
		ttl:        ttl,
		now:        time.Now,
	}
}

// WithClock は時刻取得関数を差し替えたGateを返す。
func (g *Gate) WithClock(now func() time.Time) *Gate {
	clone := *g
	clone.now = now
	return &clone
}

// TTL はトークンの有効期間を返す。
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Authenticate は識別子とシークレットを設定値と比較する。
// 識別子は大文字小文字を区別しない。一致しない場合はErrInvalidCredentialsを返す。
func (g *Gate) Authenticate(identifier, secret string) (*Identity, error) {
	if g.identifier == "" || g.secret == "" {
		return nil, model.ErrInvalidCredentials
	}

	idOK := subtle.ConstantTimeCompare(
		[]byte(model.NormalizeEmail(identifier)),
		[]byte(model.NormalizeEmail(g.identifier)),
	) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(g.secret)) == 1
	if !idOK || !secretOK {
		return nil, model.ErrInvalidCredentials
	}

	return &Identity{
		ID:         AdminID,
		Identifier: model.NormalizeEmail(g.identifier),
		Role:       RoleAdmin,
	}, nil
}

// IssueToken はidentityに発行時刻を付与して署名したトークンを返す。
func (g *Gate) IssueToken(identity Identity) (string, error) {
	claims := tokenClaims{Claims{Identity: identity, IssuedAt: g.now().UnixMilli()}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// VerifyToken はトークンを検証して内容を返す。
// 形式・署名が不正な場合はErrMalformedToken、発行から有効期間以上経過している場合はErrTokenExpiredを返す。
// iatはミリ秒のため、期限判定はライブラリの検証を使わずここで行う。
func (g *Gate) VerifyToken(token string) (*Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims,
		func(*jwt.Token) (any, error) { return g.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.IssuedAt == 0 {
		return nil, model.ErrMalformedToken
	}

	if g.now().Sub(claims.IssuedTime()) >= g.ttl {
		return nil, model.ErrTokenExpired
	}
	return &claims.Claims, nil
}

// IsAdmin はidentityが管理者ロールを持つかを返す。
func IsAdmin(identity *Identity) bool {
	return identity != nil && identity.Role == RoleAdmin
}

// tokenClaims はClaimsをjwt.Claimsとして扱うためのラッパー。
// 登録済みクレームの検証は行わないため、iatとsub以外は空を返す。
type tokenClaims struct {
	Claims
}

func (c tokenClaims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (c tokenClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c tokenClaims) GetIssuer() (string, error) { return "", nil }
func (c tokenClaims) GetSubject() (string, error) { return c.ID, nil }
func (c tokenClaims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

func (c tokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(c.IssuedTime()), nil
}
