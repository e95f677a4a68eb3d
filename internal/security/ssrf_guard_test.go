package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestGuard_Client_Timeout はタイムアウト設定が反映されることを検証する。
func TestGuard_Client_Timeout(t *testing.T) {
	client := NewGuard().Client(5 * time.Second)

	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected custom transport")
	}
}

// TestGuard_Client_BlocksLoopback はループバックのhttptestサーバーへの接続が拒否されることを検証する。
func TestGuard_Client_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	if _, err := NewGuard().Client(5 * time.Second).Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback request")
	}
}

func TestGuard_Validate_Public(t *testing.T) {
	guard := NewGuard()

	for _, u := range []string{
		"https://example.com",
		"https://blog.example.com/feed.xml",
		"http://news.example.org/rss",
		"https://93.184.216.34/atom.xml",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.Validate(u); err != nil {
				t.Errorf("Validate(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestGuard_Validate_Blocked(t *testing.T) {
	guard := NewGuard()

	for _, u := range []string{
		"http://10.0.0.1/feed",
		"http://172.16.5.4/feed",
		"http://192.168.1.100/feed",
		"http://127.0.0.1/feed",
		"http://localhost/feed",
		"http://api.localhost/feed",
		"http://169.254.169.254/latest/meta-data/",
		"http://0.0.0.0/feed",
		"http://100.64.0.1/feed",
		"http://[::1]/feed",
		"http://[fe80::1]/feed",
		"http://[::ffff:127.0.0.1]/feed",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.Validate(u); !errors.Is(err, ErrBlockedDestination) {
				t.Errorf("Validate(%q) = %v, want ErrBlockedDestination", u, err)
			}
		})
	}
}

func TestGuard_Validate_Invalid(t *testing.T) {
	guard := NewGuard()

	for _, u := range []string{
		"",
		"   ",
		"not-a-url",
		"ftp://example.com/feed",
		"file:///etc/passwd",
		"https://",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.Validate(u); !errors.Is(err, ErrInvalidURL) {
				t.Errorf("Validate(%q) = %v, want ErrInvalidURL", u, err)
			}
		})
	}
}
