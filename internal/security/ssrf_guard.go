package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	// ErrInvalidURL はURLとして解釈できない、またはスキーム・ホストが不正な場合のエラー。
	ErrInvalidURL = errors.New("invalid url")

	// ErrBlockedDestination は内部ネットワーク宛てのURLを拒否した場合のエラー。
	ErrBlockedDestination = errors.New("blocked destination")
)

// URLGuard はインポート対象URLの検証と、内部ネットワークに接続しないHTTPクライアントを提供する。
type URLGuard interface {
	// Validate はDNS解決を伴わない静的な検証を行う。
	Validate(rawURL string) error
	// Client はtimeoutを設定したSSRF防止付きのHTTPクライアントを返す。
	Client(timeout time.Duration) *http.Client
}

// blockedPrefixes は接続を拒否するアドレス範囲。
// クライアント側はsafeurlがDNS解決後のIPを検証するため、DNS再バインディングもそちらで防ぐ。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // クラウドメタデータ
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Guard はURLGuardの実装。
type Guard struct {
	schemes []string
	ports   []uint16
}

// NewGuard はhttp/httpsの80・443番ポートのみを許可するGuardを生成する。
func NewGuard() *Guard {
	return &Guard{
		schemes: []string{"http", "https"},
		ports:   []uint16{80, 443},
	}
}

// Validate はURLのスキーム・ホストを検証する。
func (g *Guard) Validate(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !g.allowedScheme(parsed.Scheme) {
		return fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidURL, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("%w: %s", ErrBlockedDestination, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, prefix := range blockedPrefixes {
			if prefix.Contains(addr) {
				return fmt.Errorf("%w: %s", ErrBlockedDestination, addr)
			}
		}
	}
	return nil
}

// Client はsafeurlでラップしたHTTPクライアントを返す。
// プライベート・ループバック・リンクローカル宛ての接続はダイヤル時に拒否される。
func (g *Guard) Client(timeout time.Duration) *http.Client {
	ports := make([]int, len(g.ports))
	for i, p := range g.ports {
		ports[i] = int(p)
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(g.schemes...).
		SetAllowedPorts(ports...).
		Build()
	return safeurl.Client(config).Client
}

func (g *Guard) allowedScheme(scheme string) bool {
	for _, s := range g.schemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ URLGuard = (*Guard)(nil)
